package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// WaitForCondition blocks until the condition in req holds. Failures are
// WaitTimeoutErrors. An explicit timeout wait always sleeps the full
// duration and only a cancelled ctx ends it early.
func (c *Core) WaitForCondition(ctx context.Context, page browser.Page, req WaitRequest) (err error) {
	ctx, done := c.step(ctx, "wait", string(req.Kind), "Wait for "+string(req.Kind), Fields{
		"kind":    string(req.Kind),
		"target":  describe(req.Target),
		"pattern": req.Pattern,
	})
	defer func() { done(err) }()

	invalid := func(msg string) error {
		return c.fail(ctx, NewWaitTimeoutError(msg, nil).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Kind)), nil)
	}

	if req.Kind == WaitTimeout {
		return c.sleep(ctx, req.Duration)
	}
	if page == nil && req.Kind != WaitElementState {
		return invalid("no page to wait on")
	}
	if cerr := ctx.Err(); cerr != nil {
		return c.fail(ctx, NewWaitTimeoutError("wait cancelled", cerr).WithOperation(string(req.Kind)), nil)
	}

	timeout := preferDuration(req.Timeout, c.defaults.WaitTimeout)
	var werr error
	switch req.Kind {
	case WaitElementState:
		if req.Target == nil {
			return invalid("element wait needs a target")
		}
		state := req.State
		if state == "" {
			state = browser.StateVisible
		}
		werr = req.Target.WaitFor(state, timeout)

	case WaitLoadState:
		state := req.LoadState
		if state == "" {
			state = browser.LoadStateLoad
		}
		werr = page.WaitForLoadState(state, timeout)

	case WaitNetworkIdle:
		werr = page.WaitForLoadState(browser.LoadStateNetworkIdle, timeout)

	case WaitFunction:
		if req.Expression == "" {
			return invalid("function wait needs an expression")
		}
		werr = page.WaitForFunction(req.Expression, timeout)

	case WaitURL:
		if req.Pattern == "" {
			return invalid("url wait needs a pattern")
		}
		werr = page.WaitForURL(req.Pattern, timeout)

	case WaitNetworkRequest, WaitNetworkResponse:
		kind := browser.EventRequest
		if req.Kind == WaitNetworkResponse {
			kind = browser.EventResponse
		}
		var ev browser.Event
		ev, werr = page.ExpectEvent(kind, req.Trigger, browser.ExpectOptions{
			URLPattern: req.Pattern,
			Timeout:    timeout,
		})
		if werr == nil {
			c.sink.Info(ctx, "Network event observed", eventFields(ev))
		}

	default:
		return invalid(fmt.Sprintf("unknown wait kind %q", req.Kind))
	}

	if werr != nil {
		return c.fail(ctx, NewWaitTimeoutError(fmt.Sprintf("%s condition not met within %s", req.Kind, timeout), werr).
			WithOperation(string(req.Kind)).
			WithTarget(describe(req.Target)), Fields{"pattern": req.Pattern})
	}
	c.sink.Info(ctx, "Condition met", Fields{"kind": string(req.Kind), "target": describe(req.Target)})
	return nil
}

func (c *Core) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		c.sink.Info(ctx, "Waited", Fields{"duration": d.String()})
		return nil
	case <-ctx.Done():
		return c.fail(ctx, NewWaitTimeoutError("explicit wait cancelled", ctx.Err()).
			WithOperation(string(WaitTimeout)), Fields{"duration": d.String()})
	}
}

func eventFields(ev browser.Event) Fields {
	f := Fields{"event": string(ev.Kind)}
	switch {
	case ev.Request != nil:
		f["url"] = ev.Request.URL()
		f["method"] = ev.Request.Method()
	case ev.Response != nil:
		f["url"] = ev.Response.URL()
		f["status"] = ev.Response.Status()
	}
	return f
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Resolve turns a request into a lazy handle. Nothing is enumerated except
// for the advisory visibility probe, whose outcome is only logged unless the
// request sets RequireVisible.
func (c *Core) Resolve(ctx context.Context, page browser.Page, req ResolutionRequest) (h *Handle, err error) {
	name := "<nil>"
	if req.Strategy != nil {
		name = req.Strategy.Name()
	}
	ctx, done := c.step(ctx, "resolve", name, fmt.Sprintf("Locate element by %s %q", name, req.Value), Fields{
		"strategy": name,
		"selector": req.Value,
	})
	defer func() { done(err) }()

	if req.Strategy == nil {
		return nil, c.fail(ctx, NewResolutionError("no lookup strategy given", nil).
			WithCode(ErrCodeUnknownStrategy).
			WithOperation(name), Fields{"selector": req.Value})
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, c.fail(ctx, NewResolutionError("selector value is empty", nil).
			WithCode(ErrCodeEmptySelector).
			WithOperation(name), nil)
	}
	if verr := c.validateStruct(req.Options); verr != nil {
		return nil, c.fail(ctx, NewResolutionError("invalid lookup options", verr).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(name).
			WithTarget(req.Value), nil)
	}
	if page == nil {
		return nil, c.fail(ctx, NewResolutionError("no page to resolve against", nil).
			WithOperation(name).
			WithTarget(req.Value), nil)
	}

	var scope browser.Scope = page
	if req.Frame != "" {
		scope = page.FrameLocator(req.Frame)
	}

	h = &Handle{
		locator:  req.Strategy.locate(scope, req.Value, req.Options),
		Strategy: req.Strategy,
		Options:  req.Options,
		scope:    scope,
	}
	if req.Combinator != Identity {
		if h, err = c.Apply(ctx, h, req.Combinator, req.Args); err != nil {
			return nil, err
		}
	}

	c.sink.Info(ctx, "Element located", Fields{
		"strategy": name,
		"selector": req.Value,
		"locator":  h.Describe(),
	})

	visible, perr := h.IsVisible()
	switch {
	case perr != nil:
		c.sink.Error(ctx, "Visibility check failed", Fields{
			"locator": h.Describe(),
			"cause":   perr.Error(),
		})
	case visible:
		c.sink.Info(ctx, "Element is visible", Fields{"locator": h.Describe()})
	default:
		c.sink.Error(ctx, "Element is not visible", Fields{"locator": h.Describe()})
	}
	if req.RequireVisible && !visible {
		return nil, c.fail(ctx, NewResolutionError("element is not visible", perr).
			WithCode(ErrCodeNotVisible).
			WithOperation(name).
			WithTarget(h.Describe()), nil)
	}
	return h, nil
}

// ResolveAll resolves req and returns one handle per current match, in
// document order. Unlike Resolve it enumerates the matches.
func (c *Core) ResolveAll(ctx context.Context, page browser.Page, req ResolutionRequest) ([]*Handle, error) {
	h, err := c.Resolve(ctx, page, req)
	if err != nil {
		return nil, err
	}
	n, err := h.Count()
	if err != nil {
		return nil, c.fail(ctx, NewResolutionError("failed to count matches", err).
			WithOperation(h.Strategy.Name()).
			WithTarget(h.Describe()), nil)
	}
	out := make([]*Handle, n)
	for i := range out {
		out[i] = h.derive(h.Nth(i))
	}
	c.sink.Info(ctx, "Elements located", Fields{"locator": h.Describe(), "count": n})
	return out, nil
}

// derive wraps a locator produced from h, keeping h's strategy and scope.
func (h *Handle) derive(l browser.Locator) *Handle {
	return &Handle{
		locator:  l,
		Strategy: h.Strategy,
		Options:  h.Options,
		scope:    h.scope,
	}
}

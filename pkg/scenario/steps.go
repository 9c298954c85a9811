package scenario

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/engine"
)

// execution is the state of one scenario run.
type execution struct {
	core *engine.Core
	page browser.Page
	cfg  *config.Config
	vars map[string]interface{}
}

func (x *execution) run(ctx context.Context, st *Step) error {
	switch st.Kind() {
	case "action":
		return x.action(ctx, st)
	case "assert":
		return x.assert(ctx, st)
	case "wait":
		return x.wait(ctx, st)
	case "calendar":
		return x.calendar(ctx, st)
	}
	return fmt.Errorf("step %q has nothing to do", st.Describe())
}

func (x *execution) action(ctx context.Context, st *Step) error {
	verb, err := engine.ParseVerb(st.Action)
	if err != nil {
		return engine.NewActionError(err.Error(), nil).WithCode(engine.ErrCodeInvalidOptions)
	}
	flat := st.Options
	if st.Timeout > 0 {
		if _, ok := flat["timeout"]; !ok {
			flat = withKey(flat, "timeout", st.Timeout)
		}
	}
	opts, err := actionOptions(verb, flat)
	if err != nil {
		return engine.NewActionError(err.Error(), nil).
			WithCode(engine.ErrCodeInvalidOptions).
			WithOperation(string(verb))
	}

	req := engine.ActionRequest{
		Verb:    verb,
		Value:   x.str(st.Value),
		Values:  x.strs(st.Values),
		Path:    x.expand(st.Path),
		Options: opts,
	}
	switch verb {
	case engine.VerbNavigate:
		req.Value = x.absolute(req.Value)
	case engine.VerbSelectOption:
		if len(req.Values) == 0 && req.Value != "" {
			req.Values = []string{req.Value}
		}
	case engine.VerbUploadFile:
		if len(req.Values) == 0 && req.Path != "" {
			req.Values = []string{req.Path}
		}
	}
	if st.Target != nil {
		h, err := x.resolve(ctx, st.Target)
		if err != nil {
			return err
		}
		req.Target = h
	}
	if st.DragTo != nil {
		h, err := x.resolve(ctx, st.DragTo)
		if err != nil {
			return err
		}
		req.DragTarget = h
	}

	res, err := x.core.Perform(ctx, x.page, req)
	if err != nil {
		return err
	}
	if verb == engine.VerbSwitchToNewPage && res.Page != nil {
		x.page = res.Page
	}
	if st.Save != "" {
		x.vars[st.Save] = saved(res)
	}
	return nil
}

// saved picks the value an action result is saved as.
func saved(res *engine.ActionResult) interface{} {
	switch res.Verb {
	case engine.VerbSelectOption:
		return res.Selected
	case engine.VerbCheck, engine.VerbUncheck:
		return res.Checked
	case engine.VerbDownloadFile, engine.VerbScreenshot:
		return res.Path
	case engine.VerbPaginateTable:
		return res.Rows
	}
	return res.Value
}

func (x *execution) assert(ctx context.Context, st *Step) error {
	pred, err := engine.ParsePredicate(st.Assert)
	if err != nil {
		return err
	}
	mode, err := engine.ParseMode(st.Mode)
	if err != nil {
		return engine.NewAssertionFailure(err.Error(), nil).WithCode(engine.ErrCodeInvalidOptions)
	}
	opts, err := assertOptions(pred, st.Options)
	if err != nil {
		return engine.NewAssertionFailure(err.Error(), nil).
			WithCode(engine.ErrCodeInvalidOptions).
			WithOperation(string(pred))
	}
	if opts.Timeout == 0 {
		opts.Timeout = st.Timeout
	}
	if pred == engine.ToMatchSnapshot {
		opts.Snapshot.Update = opts.Snapshot.Update || x.cfg.Snapshots.Update
		if opts.Snapshot.MaxDiffRatio == 0 {
			opts.Snapshot.MaxDiffRatio = x.cfg.Snapshots.MaxDiffRatio
		}
	}

	req := engine.AssertionRequest{
		Predicate: pred,
		Mode:      mode,
		Actual:    x.value(st.Actual),
		Expected:  x.value(st.Expected),
		Options:   opts,
	}
	if st.Target != nil {
		h, err := x.resolve(ctx, st.Target)
		if err != nil {
			return err
		}
		req.Target = h
	}
	_, err = x.core.Assert(ctx, x.page, req)
	return err
}

func (x *execution) wait(ctx context.Context, st *Step) error {
	kind, err := engine.ParseWaitKind(st.Wait)
	if err != nil {
		return engine.NewWaitTimeoutError(err.Error(), nil).WithCode(engine.ErrCodeInvalidOptions)
	}
	req := engine.WaitRequest{
		Kind:     kind,
		Pattern:  x.expand(st.Pattern),
		Duration: st.Duration,
		Timeout:  st.Timeout,
	}
	switch kind {
	case engine.WaitLoadState:
		req.LoadState = browser.LoadState(st.State)
	case engine.WaitFunction:
		req.Expression = x.str(st.Value)
	default:
		req.State = browser.ElementState(st.State)
	}
	if st.Target != nil {
		h, err := x.resolve(ctx, st.Target)
		if err != nil {
			return err
		}
		req.Target = h
	}
	if st.Trigger != nil {
		trigger := st.Trigger
		req.Trigger = func() error { return x.run(ctx, trigger) }
	}
	return x.core.WaitForCondition(ctx, x.page, req)
}

func (x *execution) calendar(ctx context.Context, st *Step) error {
	spec := st.Calendar
	target, err := time.Parse("2006-01-02", x.expand(spec.Date))
	if err != nil {
		return engine.NewActionError(fmt.Sprintf("calendar date %q is not YYYY-MM-DD", spec.Date), err).
			WithCode(engine.ErrCodeInvalidOptions).
			WithOperation("calendar")
	}

	req := engine.CalendarRequest{
		Target:      target,
		LabelLayout: spec.Layout,
		DaySelector: spec.DaySelector,
		MaxSteps:    spec.MaxSteps,
	}
	if err := decode(st.Options, &req.Click); err != nil {
		return engine.NewActionError("invalid calendar click options", err).
			WithCode(engine.ErrCodeInvalidOptions).
			WithOperation("calendar")
	}
	if req.Label, err = x.optional(ctx, spec.Label); err != nil {
		return err
	}
	if req.Previous, err = x.optional(ctx, spec.Previous); err != nil {
		return err
	}
	if req.Next, err = x.optional(ctx, spec.Next); err != nil {
		return err
	}
	if req.Opener, err = x.optional(ctx, spec.Opener); err != nil {
		return err
	}
	if spec.Days != nil {
		h, err := x.resolve(ctx, spec.Days)
		if err != nil {
			return err
		}
		req.Days = h
	}
	return x.core.SelectCalendarDate(ctx, x.page, req)
}

// optional resolves spec, leaving a nil locator (not a typed nil) when
// there is none.
func (x *execution) optional(ctx context.Context, spec *TargetSpec) (browser.Locator, error) {
	if spec == nil {
		return nil, nil
	}
	h, err := x.resolve(ctx, spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// absolute resolves a relative url against the configured base url.
func (x *execution) absolute(raw string) string {
	if x.cfg.Browser.BaseURL == "" || raw == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	base, err := url.Parse(x.cfg.Browser.BaseURL)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

var varPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expand substitutes ${name} with saved variables. Unknown names are left
// as written.
func (x *execution) expand(s string) string {
	if len(x.vars) == 0 {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		v, ok := x.vars[m[2:len(m)-1]]
		if !ok {
			return m
		}
		return fmt.Sprint(v)
	})
}

// value expands a scenario value. A string that is exactly one ${name}
// becomes the saved value itself, keeping its type.
func (x *execution) value(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if m := varPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		if saved, ok := x.vars[m[1]]; ok {
			return saved
		}
	}
	return x.expand(s)
}

func (x *execution) str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return x.expand(t)
	}
	return fmt.Sprint(v)
}

func (x *execution) strs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = x.expand(s)
	}
	return out
}

func withKey(m map[string]interface{}, key string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, val := range m {
		out[k] = val
	}
	out[key] = v
	return out
}

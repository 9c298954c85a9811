package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// outcome is what a predicate evaluation produced. err is set only when the
// predicate could not be evaluated at all.
type outcome struct {
	passed   bool
	expected string
	actual   string
	diff     string
	err      error
}

// Assert evaluates one predicate. The outcome is traced before anything
// else happens. A mismatch in ModeHard or ModeHardNegated is returned as an
// AssertionFailure; in ModeSoft it is handed to the soft recorder as an
// AssertionRecorded error and Assert returns a failed verdict with a nil
// error. A predicate that cannot be evaluated always fails hard.
func (c *Core) Assert(ctx context.Context, page browser.Page, req AssertionRequest) (v *Verdict, err error) {
	ctx, done := c.step(ctx, "assert", string(req.Predicate), assertTitle(req), Fields{
		"predicate": string(req.Predicate),
		"mode":      req.Mode.String(),
		"target":    describe(req.Target),
	})
	defer func() { done(err) }()

	v = &Verdict{Predicate: req.Predicate, Mode: req.Mode}

	if req.Mode < ModeHard || req.Mode > ModeSoft {
		return v, c.fail(ctx, NewAssertionFailure(fmt.Sprintf("unknown assertion mode %d", int(req.Mode)), nil).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Predicate)), nil)
	}
	if verr := c.validateStruct(req.Options); verr != nil {
		return v, c.fail(ctx, NewAssertionFailure("invalid assertion options", verr).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Predicate)), nil)
	}

	var out outcome
	switch {
	case valuePredicates[req.Predicate] != nil:
		out = c.evalValue(req)
	case req.Predicate == ToMatchSnapshot:
		out = c.evalSnapshot(page, req)
	default:
		kind, ok := checkKinds[req.Predicate]
		if !ok {
			return v, c.fail(ctx, NewAssertionFailure(fmt.Sprintf("unknown predicate %q", req.Predicate), nil).
				WithCode(ErrCodeUnknownPredicate).
				WithOperation(string(req.Predicate)), nil)
		}
		out = c.evalCheck(page, req, kind)
	}

	v.Passed, v.Expected, v.Actual, v.Diff = out.passed, out.expected, out.actual, out.diff
	fields := Fields{
		"predicate": string(req.Predicate),
		"mode":      req.Mode.String(),
		"target":    describe(req.Target),
		"passed":    out.passed,
		"expected":  out.expected,
		"actual":    out.actual,
	}
	if out.err != nil {
		fields["cause"] = out.err.Error()
	}
	c.sink.Info(ctx, "Assertion evaluated", fields)

	if out.err != nil {
		return v, c.fail(ctx, NewAssertionFailure(fmt.Sprintf("%s could not be evaluated: %v", req.Predicate, out.err), out.err).
			WithCode(ErrCodeInternal).
			WithOperation(string(req.Predicate)).
			WithTarget(describe(req.Target)), nil)
	}
	if out.passed {
		return v, nil
	}

	msg := failureMessage(req, out)
	if req.Mode == ModeSoft {
		rec := NewAssertionRecorded(msg, nil).
			WithCode(ErrCodeMismatch).
			WithOperation(string(req.Predicate)).
			WithTarget(describe(req.Target)).
			WithDetail("expected", out.expected).
			WithDetail("actual", out.actual)
		c.fail(ctx, rec, nil)
		if c.soft != nil {
			c.soft.RecordSoftFailure(ctx, rec)
		}
		return v, nil
	}
	return v, c.fail(ctx, NewAssertionFailure(msg, nil).
		WithCode(ErrCodeMismatch).
		WithOperation(string(req.Predicate)).
		WithTarget(describe(req.Target)).
		WithDetail("expected", out.expected).
		WithDetail("actual", out.actual), nil)
}

func assertTitle(req AssertionRequest) string {
	prefix := "Expect "
	if req.Mode == ModeSoft {
		prefix = "Soft expect "
	}
	neg := ""
	if req.Mode == ModeHardNegated {
		neg = "not "
	}
	return prefix + neg + string(req.Predicate)
}

// failureMessage renders the headline, Expected and Actual lines, and the
// diff when there is one.
func failureMessage(req AssertionRequest, out outcome) string {
	var b strings.Builder
	if req.Options.Message != "" {
		b.WriteString(req.Options.Message)
		b.WriteString("\n")
	}
	expected := out.expected
	if req.Mode == ModeHardNegated {
		b.WriteString("not ")
		expected = "not " + expected
	}
	fmt.Fprintf(&b, "%s failed\n", req.Predicate)
	if req.Target != nil {
		fmt.Fprintf(&b, "  Locator:  %s\n", req.Target.Describe())
	}
	fmt.Fprintf(&b, "  Expected: %s\n", expected)
	fmt.Fprintf(&b, "  Actual:   %s", out.actual)
	if out.diff != "" {
		b.WriteString("\n\n")
		b.WriteString(out.diff)
	}
	return b.String()
}

func (c *Core) evalValue(req AssertionRequest) outcome {
	out := outcome{
		expected: formatValue(req.Expected),
		actual:   formatValue(req.Actual),
	}
	switch req.Predicate {
	case ToBeTruthy, ToBeFalsy, ToBeNil, ToBeNaN:
		out.expected = string(req.Predicate)[len("toBe"):]
	case ToThrow:
		out.actual = "func"
	}
	pass, err := valuePredicates[req.Predicate](req.Actual, req.Expected, req.Options)
	if err != nil {
		out.err = err
		return out
	}
	out.passed = pass != (req.Mode == ModeHardNegated)
	if !out.passed && isStructural(req.Actual) && isStructural(req.Expected) {
		out.diff = unifiedDiff(req.Expected, req.Actual)
	}
	return out
}

// evalCheck delegates a locator or page predicate to the driver's
// auto-waiting expectations.
func (c *Core) evalCheck(page browser.Page, req AssertionRequest, kind browser.CheckKind) outcome {
	check := browser.Check{
		Kind:         kind,
		Name:         req.Options.Name,
		Negate:       req.Mode == ModeHardNegated,
		Timeout:      preferDuration(req.Options.Timeout, c.defaults.AssertTimeout),
		IgnoreCase:   req.Options.IgnoreCase,
		UseInnerText: req.Options.UseInnerText,
	}
	out := outcome{expected: formatValue(req.Expected)}

	expected, err := checkExpected(kind, req.Expected, req.Options)
	if err != nil {
		out.err = err
		return out
	}
	check.Expected = expected
	if expected == nil && !kind.IsPageCheck() {
		out.expected = string(kind)
	}

	if page == nil {
		out.err = errors.New("no page to evaluate against")
		return out
	}
	switch {
	case kind.IsPageCheck():
		err = page.ExpectPage(check)
	case req.Target == nil:
		err = fmt.Errorf("%s needs a target element", req.Predicate)
	case (kind == browser.CheckAttribute || kind == browser.CheckCSS || kind == browser.CheckJSProperty) && check.Name == "":
		err = fmt.Errorf("%s needs options.name", req.Predicate)
	default:
		err = page.ExpectLocator(req.Target, check)
	}
	if err == nil {
		out.passed = true
		out.actual = out.expected
		if check.Negate {
			out.actual = "not " + out.expected
		}
		return out
	}

	var mismatch *browser.MismatchError
	if !errors.As(err, &mismatch) {
		out.err = err
		return out
	}
	out.actual = mismatch.Actual
	if out.actual == "" {
		out.actual = observe(page, req.Target, check)
	}
	if kind.IsPageCheck() || kind == browser.CheckText || kind == browser.CheckContainText || kind == browser.CheckValue {
		out.actual = strconv.Quote(out.actual)
	}
	return out
}

// checkExpected converts a loosely typed expected value into what the check
// kind compares against.
func checkExpected(kind browser.CheckKind, expected interface{}, opts AssertOptions) (interface{}, error) {
	switch kind {
	case browser.CheckAttached, browser.CheckChecked, browser.CheckDisabled, browser.CheckEditable,
		browser.CheckEmpty, browser.CheckEnabled, browser.CheckFocused, browser.CheckHidden,
		browser.CheckInViewport, browser.CheckVisible:
		return nil, nil

	case browser.CheckCount:
		n, ok := toFloat(expected)
		if !ok || n < 0 || n != math.Trunc(n) {
			return nil, fmt.Errorf("toHaveCount needs a non-negative integer, got %v", expected)
		}
		return int(n), nil

	case browser.CheckValues:
		switch v := expected.(type) {
		case []string:
			return v, nil
		case []interface{}:
			out := make([]string, len(v))
			for i, x := range v {
				out[i] = fmt.Sprint(x)
			}
			return out, nil
		}
		return nil, fmt.Errorf("toHaveValues needs a list of values, got %T", expected)

	case browser.CheckJSProperty:
		return expected, nil

	case browser.CheckAttribute:
		if expected == nil {
			return nil, nil
		}
	}

	switch v := expected.(type) {
	case *regexp.Regexp:
		return v, nil
	case string:
		if opts.Regexp {
			return regexp.Compile(v)
		}
		return v, nil
	case nil:
		return nil, fmt.Errorf("%s needs an expected value", kind)
	}
	return fmt.Sprint(expected), nil
}

// observe reads the fact a failed check was about, once, for the diagnostic.
func observe(page browser.Page, target browser.Locator, check browser.Check) string {
	var (
		s   string
		err error
	)
	boolean := func(b bool, e error) {
		s, err = strconv.FormatBool(b), e
	}
	switch check.Kind {
	case browser.CheckTitle:
		s, err = page.Title()
	case browser.CheckURL:
		s = page.URL()
	case browser.CheckText, browser.CheckContainText:
		if check.UseInnerText {
			s, err = target.InnerText()
		} else {
			s, err = target.TextContent()
		}
	case browser.CheckValue:
		s, err = target.InputValue()
	case browser.CheckAttribute:
		s, _, err = target.GetAttribute(check.Name)
	case browser.CheckClass:
		s, _, err = target.GetAttribute("class")
	case browser.CheckID:
		s, _, err = target.GetAttribute("id")
	case browser.CheckCount:
		var n int
		n, err = target.Count()
		s = strconv.Itoa(n)
	case browser.CheckVisible, browser.CheckInViewport:
		boolean(target.IsVisible())
	case browser.CheckHidden:
		boolean(target.IsHidden())
	case browser.CheckEnabled, browser.CheckDisabled:
		boolean(target.IsEnabled())
	case browser.CheckChecked:
		boolean(target.IsChecked())
	case browser.CheckEditable:
		boolean(target.IsEditable())
	default:
		return "<not observed>"
	}
	if err != nil {
		return fmt.Sprintf("<unavailable: %v>", err)
	}
	return s
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case *regexp.Regexp:
		return "/" + x.String() + "/"
	case error:
		return x.Error()
	}
	if isStructural(v) {
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

func isStructural(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// unifiedDiff renders expected and actual as indented JSON and diffs them.
func unifiedDiff(expected, actual interface{}) string {
	e, err1 := json.MarshalIndent(expected, "", "  ")
	a, err2 := json.MarshalIndent(actual, "", "  ")
	if err1 != nil || err2 != nil {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(e) + "\n"),
		B:        difflib.SplitLines(string(a) + "\n"),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

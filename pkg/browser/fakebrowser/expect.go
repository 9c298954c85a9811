package fakebrowser

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// ExpectLocator evaluates check once against the current document.
func (p *Page) ExpectLocator(target browser.Locator, check browser.Check) error {
	l, ok := browser.Unwrap(target).(*Locator)
	if !ok {
		return fmt.Errorf("expect: foreign locator %T", target)
	}
	nodes, err := l.find()
	if err != nil {
		return err
	}
	pass, actual, err := p.evaluate(nodes, check)
	if err != nil {
		return err
	}
	return verdict(check, pass, actual)
}

// ExpectPage evaluates a title or url check once.
func (p *Page) ExpectPage(check browser.Check) error {
	var actual string
	switch check.Kind {
	case browser.CheckTitle:
		actual, _ = p.Title()
	case browser.CheckURL:
		actual = p.URL()
	default:
		return fmt.Errorf("expect: %s is not a page check", check.Kind)
	}
	pass, err := matchValue(actual, check.Expected, check.IgnoreCase, false)
	if err != nil {
		return err
	}
	return verdict(check, pass, actual)
}

func verdict(check browser.Check, pass bool, actual string) error {
	if pass != check.Negate {
		return nil
	}
	return &browser.MismatchError{Check: check, Actual: actual}
}

func (p *Page) evaluate(nodes []*Node, check browser.Check) (bool, string, error) {
	if check.Kind == browser.CheckCount {
		want, err := toInt(check.Expected)
		if err != nil {
			return false, "", err
		}
		return len(nodes) == want, strconv.Itoa(len(nodes)), nil
	}
	if check.Kind == browser.CheckAttached {
		return len(nodes) > 0, strconv.FormatBool(len(nodes) > 0), nil
	}
	if check.Kind == browser.CheckHidden {
		hidden := len(nodes) == 0 || len(nodes) == 1 && !nodes[0].visible()
		return hidden, strconv.FormatBool(hidden), nil
	}
	if len(nodes) == 0 {
		return false, "<element not found>", nil
	}
	if len(nodes) > 1 {
		return false, "", fmt.Errorf("%w: expectation resolved to %d elements", ErrStrictMode, len(nodes))
	}
	n := nodes[0]

	state := func(v bool) (bool, string, error) {
		return v, strconv.FormatBool(v), nil
	}

	switch check.Kind {
	case browser.CheckChecked:
		return state(n.Checked)
	case browser.CheckDisabled:
		return state(!n.enabled())
	case browser.CheckEnabled:
		return state(n.enabled())
	case browser.CheckEditable:
		return state(n.editable())
	case browser.CheckEmpty:
		return state(n.TextContent() == "" && n.Value == "")
	case browser.CheckFocused:
		return state(p.focused == n)
	case browser.CheckInViewport:
		return state(n.visible() && !n.OutOfViewport)
	case browser.CheckVisible:
		return state(n.visible())
	case browser.CheckText, browser.CheckContainText:
		text := n.TextContent()
		if check.UseInnerText && !n.visible() {
			text = ""
		}
		ok, err := matchValue(normalizeSpace(text), check.Expected, check.IgnoreCase, check.Kind == browser.CheckContainText)
		return ok, normalizeSpace(text), err
	case browser.CheckAttribute:
		v, present := n.attr(check.Name)
		if check.Expected == nil {
			return present, v, nil
		}
		ok, err := matchValue(v, check.Expected, check.IgnoreCase, false)
		return present && ok, v, err
	case browser.CheckClass:
		v, _ := n.attr("class")
		ok, err := matchValue(v, check.Expected, false, false)
		return ok, v, err
	case browser.CheckCSS:
		v := n.CSS[check.Name]
		ok, err := matchValue(v, check.Expected, false, false)
		return ok, v, err
	case browser.CheckID:
		ok, err := matchValue(n.ID, check.Expected, false, false)
		return ok, n.ID, err
	case browser.CheckJSProperty:
		v, present := n.Props[check.Name]
		return present && reflect.DeepEqual(v, check.Expected), fmt.Sprint(v), nil
	case browser.CheckValue:
		ok, err := matchValue(n.Value, check.Expected, false, false)
		return ok, n.Value, err
	case browser.CheckValues:
		want, ok := check.Expected.([]string)
		if !ok {
			return false, "", fmt.Errorf("values check needs []string, got %T", check.Expected)
		}
		have := strings.Join(n.Selected, ",")
		return reflect.DeepEqual(append([]string{}, n.Selected...), append([]string{}, want...)), have, nil
	}
	return false, "", fmt.Errorf("expect: unsupported check %q", check.Kind)
}

func matchValue(actual string, expected any, ignoreCase, contains bool) (bool, error) {
	switch want := expected.(type) {
	case *regexp.Regexp:
		return want.MatchString(actual), nil
	case string:
		if ignoreCase {
			actual, want = strings.ToLower(actual), strings.ToLower(want)
		}
		if contains {
			return strings.Contains(actual, want), nil
		}
		return actual == want, nil
	case nil:
		return actual == "", nil
	}
	return false, fmt.Errorf("unsupported expected value %T", expected)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("count check needs an integer, got %T", v)
}

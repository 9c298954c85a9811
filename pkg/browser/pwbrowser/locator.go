package pwbrowser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Locator wraps a Playwright locator with a readable lookup chain. A locator
// built by composition re-runs its chain through resolve on every use, so a
// first-match or picks its side at action time.
type Locator struct {
	l       playwright.Locator
	resolve func() playwright.Locator
	desc    string
}

func newLocator(l playwright.Locator, desc string) *Locator {
	return &Locator{l: l, desc: desc}
}

// pw returns the Playwright locator the chain currently stands for.
func (l *Locator) pw() playwright.Locator {
	if l.resolve != nil {
		return l.resolve()
	}
	return l.l
}

// derive composes fn onto l lazily.
func (l *Locator) derive(desc string, fn func(playwright.Locator) playwright.Locator) *Locator {
	return &Locator{desc: desc, resolve: func() playwright.Locator { return fn(l.pw()) }}
}

func (l *Locator) child(desc string) string {
	return l.desc + " >> " + desc
}

// native returns the Playwright locator under any engine wrapper.
func native(l browser.Locator) (playwright.Locator, error) {
	if l == nil {
		return nil, nil
	}
	pl, ok := browser.Unwrap(l).(*Locator)
	if !ok {
		return nil, fmt.Errorf("pwbrowser: %s is not a Playwright locator", l.Describe())
	}
	return pl.pw(), nil
}

// mustNative is native for composition methods, which cannot return an
// error. A foreign locator is dropped.
func mustNative(l browser.Locator) playwright.Locator {
	pl, _ := native(l)
	return pl
}

// Describe returns the lookup chain, e.g. getByRole("row") >> getByText("Edit").
func (l *Locator) Describe() string {
	return l.desc
}

// Locator looks up a CSS or XPath selector below l.
func (l *Locator) Locator(sel string, o browser.SelectorOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("locator(%q)", sel)), func(p playwright.Locator) playwright.Locator {
		return p.Locator(sel, playwright.LocatorLocatorOptions{
			HasText:    optText(o.HasText),
			HasNotText: optText(o.HasNotText),
		})
	})
}

// GetByRole looks up elements below l by ARIA role and accessible name.
func (l *Locator) GetByRole(role string, o browser.RoleOptions) browser.Locator {
	return l.derive(l.child(describeRole(role, o)), func(p playwright.Locator) playwright.Locator {
		return p.GetByRole(playwright.AriaRole(role), playwright.LocatorGetByRoleOptions{
			Name:          optText(o.Name),
			Exact:         optBool(o.Exact),
			Checked:       o.Checked,
			Disabled:      o.Disabled,
			Expanded:      o.Expanded,
			Pressed:       o.Pressed,
			Selected:      o.Selected,
			IncludeHidden: optBool(o.IncludeHidden),
			Level:         level(o.Level),
		})
	})
}

// GetByText looks up elements below l by their text.
func (l *Locator) GetByText(text string, o browser.TextOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByText(%q)", text)), func(p playwright.Locator) playwright.Locator {
		return p.GetByText(text, playwright.LocatorGetByTextOptions{Exact: optBool(o.Exact)})
	})
}

// GetByLabel looks up form controls below l by their label.
func (l *Locator) GetByLabel(text string, o browser.TextOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByLabel(%q)", text)), func(p playwright.Locator) playwright.Locator {
		return p.GetByLabel(text, playwright.LocatorGetByLabelOptions{Exact: optBool(o.Exact)})
	})
}

// GetByPlaceholder looks up inputs below l by placeholder.
func (l *Locator) GetByPlaceholder(text string, o browser.TextOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByPlaceholder(%q)", text)), func(p playwright.Locator) playwright.Locator {
		return p.GetByPlaceholder(text, playwright.LocatorGetByPlaceholderOptions{Exact: optBool(o.Exact)})
	})
}

// GetByAltText looks up images below l by alt text.
func (l *Locator) GetByAltText(text string, o browser.TextOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByAltText(%q)", text)), func(p playwright.Locator) playwright.Locator {
		return p.GetByAltText(text, playwright.LocatorGetByAltTextOptions{Exact: optBool(o.Exact)})
	})
}

// GetByTitle looks up elements below l by title attribute.
func (l *Locator) GetByTitle(text string, o browser.TextOptions) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByTitle(%q)", text)), func(p playwright.Locator) playwright.Locator {
		return p.GetByTitle(text, playwright.LocatorGetByTitleOptions{Exact: optBool(o.Exact)})
	})
}

// GetByTestID looks up elements below l by data-testid.
func (l *Locator) GetByTestID(id string) browser.Locator {
	return l.derive(l.child(fmt.Sprintf("getByTestId(%q)", id)), func(p playwright.Locator) playwright.Locator {
		return p.GetByTestId(id)
	})
}

func level(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// Filter narrows l. Has and HasNot are resolved when l is.
func (l *Locator) Filter(o browser.FilterOptions) browser.Locator {
	return l.derive(l.desc+" >> "+describeFilter(o), func(p playwright.Locator) playwright.Locator {
		return p.Filter(playwright.LocatorFilterOptions{
			HasText:    optText(o.HasText),
			HasNotText: optText(o.HasNotText),
			Has:        mustNative(o.Has),
			HasNot:     mustNative(o.HasNot),
			Visible:    o.Visible,
		})
	})
}

// And matches elements both l and other match.
func (l *Locator) And(other browser.Locator) browser.Locator {
	return l.derive(fmt.Sprintf("%s.and(%s)", l.desc, other.Describe()), func(p playwright.Locator) playwright.Locator {
		return p.And(mustNative(other))
	})
}

// Or is first-match: each time it is used, it stands for l when l matches
// anything and for other otherwise. The sides are never merged.
func (l *Locator) Or(other browser.Locator) browser.Locator {
	desc := fmt.Sprintf("%s.or(%s)", l.desc, other.Describe())
	return &Locator{desc: desc, resolve: func() playwright.Locator {
		return firstMatch(l.pw(), mustNative(other))
	}}
}

func firstMatch(base, other playwright.Locator) playwright.Locator {
	if other == nil {
		return base
	}
	if n, err := base.Count(); err == nil && n > 0 {
		return base
	}
	return other
}

// Nth picks the zero-based index-th match.
func (l *Locator) Nth(index int) browser.Locator {
	return l.derive(fmt.Sprintf("%s.nth(%d)", l.desc, index), func(p playwright.Locator) playwright.Locator {
		return p.Nth(index)
	})
}

// First picks the first match.
func (l *Locator) First() browser.Locator {
	return l.derive(l.desc+".first()", playwright.Locator.First)
}

// Last picks the last match.
func (l *Locator) Last() browser.Locator {
	return l.derive(l.desc+".last()", playwright.Locator.Last)
}

// Reads

// Count returns the number of matches right now.
func (l *Locator) Count() (int, error) {
	return l.pw().Count()
}

// IsVisible reports whether the single match is visible.
func (l *Locator) IsVisible() (bool, error) {
	return l.pw().IsVisible()
}

// IsHidden is true for no match as well as a hidden one.
func (l *Locator) IsHidden() (bool, error) {
	return l.pw().IsHidden()
}

// IsEnabled reports whether the match is enabled.
func (l *Locator) IsEnabled() (bool, error) {
	return l.pw().IsEnabled()
}

// IsChecked reports the checked state of a checkbox or radio.
func (l *Locator) IsChecked() (bool, error) {
	return l.pw().IsChecked()
}

// IsEditable reports whether the match accepts input.
func (l *Locator) IsEditable() (bool, error) {
	return l.pw().IsEditable()
}

// TextContent returns the raw textContent of the match.
func (l *Locator) TextContent() (string, error) {
	return l.pw().TextContent()
}

// InnerText returns the rendered text of the match.
func (l *Locator) InnerText() (string, error) {
	return l.pw().InnerText()
}

// InputValue returns the value of an input, textarea or select.
func (l *Locator) InputValue() (string, error) {
	return l.pw().InputValue()
}

// GetAttribute reports presence separately, since Playwright returns the
// empty string for both a missing and an empty attribute.
func (l *Locator) GetAttribute(name string) (string, bool, error) {
	p := l.pw()
	has, err := p.Evaluate("(el, name) => el.hasAttribute(name)", name)
	if err != nil {
		return "", false, err
	}
	if present, _ := has.(bool); !present {
		return "", false, nil
	}
	v, err := p.GetAttribute(name)
	return v, true, err
}

// Actions

// Click clicks the match after Playwright's actionability checks.
func (l *Locator) Click(o browser.ClickOptions) error {
	button, modifiers := clickOptions(o)
	return l.pw().Click(playwright.LocatorClickOptions{
		Button:    button,
		Modifiers: modifiers,
		Delay:     ms(o.Delay),
		Force:     optBool(o.Force),
		Trial:     optBool(o.Trial),
		Timeout:   ms(o.Timeout),
	})
}

// Dblclick double-clicks the match.
func (l *Locator) Dblclick(o browser.ClickOptions) error {
	button, modifiers := clickOptions(o)
	return l.pw().Dblclick(playwright.LocatorDblclickOptions{
		Button:    button,
		Modifiers: modifiers,
		Delay:     ms(o.Delay),
		Force:     optBool(o.Force),
		Trial:     optBool(o.Trial),
		Timeout:   ms(o.Timeout),
	})
}

// Fill replaces the value of an editable element.
func (l *Locator) Fill(value string, o browser.InputOptions) error {
	return l.pw().Fill(value, playwright.LocatorFillOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Press sends one key or chord, e.g. Control+A.
func (l *Locator) Press(key string, o browser.InputOptions) error {
	return l.pw().Press(key, playwright.LocatorPressOptions{Timeout: ms(o.Timeout)})
}

// PressSequentially types text one key at a time.
func (l *Locator) PressSequentially(text string, o browser.TypeOptions) error {
	return l.pw().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   ms(o.Delay),
		Timeout: ms(o.Timeout),
	})
}

// SelectOption selects options by value or label and returns the selected values.
func (l *Locator) SelectOption(values []string, o browser.InputOptions) ([]string, error) {
	return l.pw().SelectOption(playwright.SelectOptionValues{Values: &values}, playwright.LocatorSelectOptionOptions{
		Force:   optBool(o.Force),
		Timeout: ms(o.Timeout),
	})
}

// SetChecked checks or unchecks the match.
func (l *Locator) SetChecked(checked bool, o browser.InputOptions) error {
	return l.pw().SetChecked(checked, playwright.LocatorSetCheckedOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Check checks a checkbox or radio.
func (l *Locator) Check(o browser.InputOptions) error {
	return l.pw().Check(playwright.LocatorCheckOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Uncheck unchecks a checkbox.
func (l *Locator) Uncheck(o browser.InputOptions) error {
	return l.pw().Uncheck(playwright.LocatorUncheckOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Hover moves the mouse over the match.
func (l *Locator) Hover(o browser.InputOptions) error {
	return l.pw().Hover(playwright.LocatorHoverOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// DragTo drags the match onto target.
func (l *Locator) DragTo(target browser.Locator, o browser.InputOptions) error {
	t, err := native(target)
	if err != nil {
		return err
	}
	return l.pw().DragTo(t, playwright.LocatorDragToOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Tap taps the match. The context must have touch enabled.
func (l *Locator) Tap(o browser.InputOptions) error {
	return l.pw().Tap(playwright.LocatorTapOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// Focus focuses the match.
func (l *Locator) Focus(o browser.InputOptions) error {
	return l.pw().Focus(playwright.LocatorFocusOptions{Timeout: ms(o.Timeout)})
}

// Clear empties an editable element.
func (l *Locator) Clear(o browser.InputOptions) error {
	return l.pw().Clear(playwright.LocatorClearOptions{Force: optBool(o.Force), Timeout: ms(o.Timeout)})
}

// ScrollIntoView scrolls the match into view if it is not already.
func (l *Locator) ScrollIntoView(o browser.InputOptions) error {
	return l.pw().ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: ms(o.Timeout)})
}

// SetInputFiles sets the files of an <input type=file>.
func (l *Locator) SetInputFiles(paths []string, o browser.InputOptions) error {
	return l.pw().SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: ms(o.Timeout)})
}

// WaitFor waits until the match reaches state.
func (l *Locator) WaitFor(state browser.ElementState, timeout time.Duration) error {
	opts := playwright.LocatorWaitForOptions{Timeout: ms(timeout)}
	if state != "" {
		s := playwright.WaitForSelectorState(state)
		opts.State = &s
	}
	return l.pw().WaitFor(opts)
}

// Screenshot captures the match, writing it to path when one is given.
func (l *Locator) Screenshot(path string) ([]byte, error) {
	return l.pw().Screenshot(playwright.LocatorScreenshotOptions{Path: optString(path)})
}

package pwbrowser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// ExpectLocator runs check through Playwright's auto-waiting locator
// assertions.
func (p *Page) ExpectLocator(target browser.Locator, check browser.Check) error {
	l, err := native(target)
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("expectation %s needs a locator", check.Kind)
	}
	a := p.assertions.Locator(l)
	if check.Negate {
		a = a.Not()
	}
	timeout := ms(check.Timeout)
	ignoreCase := optBool(check.IgnoreCase)

	switch check.Kind {
	case browser.CheckAttached:
		err = a.ToBeAttached(playwright.LocatorAssertionsToBeAttachedOptions{Timeout: timeout})
	case browser.CheckChecked:
		err = a.ToBeChecked(playwright.LocatorAssertionsToBeCheckedOptions{Timeout: timeout})
	case browser.CheckDisabled:
		err = a.ToBeDisabled(playwright.LocatorAssertionsToBeDisabledOptions{Timeout: timeout})
	case browser.CheckEditable:
		err = a.ToBeEditable(playwright.LocatorAssertionsToBeEditableOptions{Timeout: timeout})
	case browser.CheckEmpty:
		err = a.ToBeEmpty(playwright.LocatorAssertionsToBeEmptyOptions{Timeout: timeout})
	case browser.CheckEnabled:
		err = a.ToBeEnabled(playwright.LocatorAssertionsToBeEnabledOptions{Timeout: timeout})
	case browser.CheckFocused:
		err = a.ToBeFocused(playwright.LocatorAssertionsToBeFocusedOptions{Timeout: timeout})
	case browser.CheckHidden:
		err = a.ToBeHidden(playwright.LocatorAssertionsToBeHiddenOptions{Timeout: timeout})
	case browser.CheckInViewport:
		err = a.ToBeInViewport(playwright.LocatorAssertionsToBeInViewportOptions{Timeout: timeout})
	case browser.CheckVisible:
		err = a.ToBeVisible(playwright.LocatorAssertionsToBeVisibleOptions{Timeout: timeout})
	case browser.CheckContainText:
		err = a.ToContainText(check.Expected, playwright.LocatorAssertionsToContainTextOptions{
			IgnoreCase:   ignoreCase,
			UseInnerText: optBool(check.UseInnerText),
			Timeout:      timeout,
		})
	case browser.CheckText:
		err = a.ToHaveText(check.Expected, playwright.LocatorAssertionsToHaveTextOptions{
			IgnoreCase:   ignoreCase,
			UseInnerText: optBool(check.UseInnerText),
			Timeout:      timeout,
		})
	case browser.CheckAttribute:
		err = a.ToHaveAttribute(check.Name, check.Expected, playwright.LocatorAssertionsToHaveAttributeOptions{
			IgnoreCase: ignoreCase,
			Timeout:    timeout,
		})
	case browser.CheckClass:
		err = a.ToHaveClass(check.Expected, playwright.LocatorAssertionsToHaveClassOptions{Timeout: timeout})
	case browser.CheckCSS:
		err = a.ToHaveCSS(check.Name, check.Expected, playwright.LocatorAssertionsToHaveCSSOptions{Timeout: timeout})
	case browser.CheckID:
		err = a.ToHaveId(check.Expected, playwright.LocatorAssertionsToHaveIdOptions{Timeout: timeout})
	case browser.CheckJSProperty:
		err = a.ToHaveJSProperty(check.Name, check.Expected, playwright.LocatorAssertionsToHaveJSPropertyOptions{Timeout: timeout})
	case browser.CheckValue:
		err = a.ToHaveValue(check.Expected, playwright.LocatorAssertionsToHaveValueOptions{Timeout: timeout})
	case browser.CheckValues:
		err = a.ToHaveValues(values(check.Expected), playwright.LocatorAssertionsToHaveValuesOptions{Timeout: timeout})
	case browser.CheckCount:
		n, cerr := count(check.Expected)
		if cerr != nil {
			return cerr
		}
		err = a.ToHaveCount(n, playwright.LocatorAssertionsToHaveCountOptions{Timeout: timeout})
	default:
		return fmt.Errorf("expectation %s is not a locator check", check.Kind)
	}
	return mismatch(check, err)
}

// ExpectPage runs a title or url check.
func (p *Page) ExpectPage(check browser.Check) error {
	a := p.assertions.Page(p.p)
	if check.Negate {
		a = a.Not()
	}
	timeout := ms(check.Timeout)

	var err error
	switch check.Kind {
	case browser.CheckTitle:
		err = a.ToHaveTitle(check.Expected, playwright.PageAssertionsToHaveTitleOptions{Timeout: timeout})
	case browser.CheckURL:
		err = a.ToHaveURL(check.Expected, playwright.PageAssertionsToHaveURLOptions{
			IgnoreCase: optBool(check.IgnoreCase),
			Timeout:    timeout,
		})
	default:
		return fmt.Errorf("expectation %s is not a page check", check.Kind)
	}
	return mismatch(check, err)
}

// mismatch classifies an assertion error. A closed target is a driver
// failure; anything else means the expectation did not hold.
func mismatch(check browser.Check, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return err
	}
	return &browser.MismatchError{Check: check, Err: err}
}

func values(expected any) []interface{} {
	switch v := expected.(type) {
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []interface{}:
		return v
	case nil:
		return nil
	}
	return []interface{}{expected}
}

func count(expected any) (int, error) {
	switch v := expected.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("count expectation needs a number, got %T", expected)
}

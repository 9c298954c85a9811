package pwbrowser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// ms converts a timeout to Playwright milliseconds. Zero leaves the driver
// default in place.
func ms(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	v := float64(d) / float64(time.Millisecond)
	return &v
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optText is a Playwright string-or-regexp argument that is unset when empty.
func optText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optBool(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}

func optInt(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func clickOptions(o browser.ClickOptions) (button *playwright.MouseButton, modifiers []playwright.KeyboardModifier) {
	if o.Button != "" {
		b := playwright.MouseButton(o.Button)
		button = &b
	}
	for _, m := range o.Modifiers {
		modifiers = append(modifiers, playwright.KeyboardModifier(m))
	}
	return button, modifiers
}

func waitUntil(s browser.LoadState) *playwright.WaitUntilState {
	if s == "" {
		return nil
	}
	w := playwright.WaitUntilState(s)
	return &w
}

func describeRole(role string, o browser.RoleOptions) string {
	if o.Name == "" {
		return fmt.Sprintf("getByRole(%q)", role)
	}
	return fmt.Sprintf("getByRole(%q, name=%q)", role, o.Name)
}

func describeFilter(o browser.FilterOptions) string {
	var parts []string
	if o.HasText != "" {
		parts = append(parts, fmt.Sprintf("hasText=%q", o.HasText))
	}
	if o.HasNotText != "" {
		parts = append(parts, fmt.Sprintf("hasNotText=%q", o.HasNotText))
	}
	if o.Has != nil {
		parts = append(parts, "has="+o.Has.Describe())
	}
	if o.HasNot != nil {
		parts = append(parts, "hasNot="+o.HasNot.Describe())
	}
	if o.Visible != nil {
		parts = append(parts, fmt.Sprintf("visible=%t", *o.Visible))
	}
	return "filter(" + strings.Join(parts, ", ") + ")"
}

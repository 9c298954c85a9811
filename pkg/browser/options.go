package browser

import "time"

// SelectorOptions narrows a raw selector lookup.
type SelectorOptions struct {
	HasText    string `mapstructure:"hasText"`
	HasNotText string `mapstructure:"hasNotText"`
}

// RoleOptions narrows a role lookup. Pointer fields are ignored when nil.
type RoleOptions struct {
	Name          string `mapstructure:"name"`
	Exact         bool   `mapstructure:"exact"`
	Checked       *bool  `mapstructure:"checked"`
	Disabled      *bool  `mapstructure:"disabled"`
	Expanded      *bool  `mapstructure:"expanded"`
	Pressed       *bool  `mapstructure:"pressed"`
	Selected      *bool  `mapstructure:"selected"`
	IncludeHidden bool   `mapstructure:"includeHidden"`
	Level         int    `mapstructure:"level" validate:"gte=0,lte=6"`
}

// TextOptions controls text matching for the text-like lookups.
type TextOptions struct {
	Exact bool `mapstructure:"exact"`
}

// FilterOptions narrows a locator. Empty fields do not constrain.
type FilterOptions struct {
	HasText    string  `mapstructure:"hasText"`
	HasNotText string  `mapstructure:"hasNotText"`
	Has        Locator `mapstructure:"-"`
	HasNot     Locator `mapstructure:"-"`
	Visible    *bool   `mapstructure:"visible"`
}

// IsZero reports whether no filter constraint is set.
func (f FilterOptions) IsZero() bool {
	return f.HasText == "" && f.HasNotText == "" && f.Has == nil && f.HasNot == nil && f.Visible == nil
}

// ClickOptions configures Click and Dblclick.
type ClickOptions struct {
	Button    string        `mapstructure:"button" validate:"omitempty,oneof=left right middle"`
	Modifiers []string      `mapstructure:"modifiers" validate:"dive,oneof=Alt Control ControlOrMeta Meta Shift"`
	Delay     time.Duration `mapstructure:"delay" validate:"gte=0"`
	Force     bool          `mapstructure:"force"`
	Trial     bool          `mapstructure:"trial"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// MouseOptions configures the page-level mouse. Button and ClickCount apply
// to click, down and up; Delay to click and dblclick; Steps to move.
type MouseOptions struct {
	Button     string        `mapstructure:"button" validate:"omitempty,oneof=left right middle"`
	ClickCount int           `mapstructure:"clickCount" validate:"gte=0"`
	Delay      time.Duration `mapstructure:"delay" validate:"gte=0"`
	Steps      int           `mapstructure:"steps" validate:"gte=0"`
}

// KeyOptions configures page-level key presses and typing.
type KeyOptions struct {
	Delay time.Duration `mapstructure:"delay" validate:"gte=0"`
}

// InputOptions configures the single-shot element actions.
type InputOptions struct {
	Force   bool          `mapstructure:"force"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// TypeOptions configures PressSequentially.
type TypeOptions struct {
	Delay   time.Duration `mapstructure:"delay" validate:"gte=0"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// NavigateOptions configures history and goto navigation.
type NavigateOptions struct {
	WaitUntil LoadState     `mapstructure:"waitUntil" validate:"omitempty,oneof=load domcontentloaded networkidle"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ExpectOptions configures ExpectEvent. URLPattern applies to request and
// response events and accepts a glob or a regular expression wrapped in slashes.
type ExpectOptions struct {
	URLPattern string
	Timeout    time.Duration
}

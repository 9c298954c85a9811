package engine

import (
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// LocateOptions are the generic lookup options. Each strategy reads only the
// record that applies to it. Filter and Index are generic combinator options
// and lose to the matching field of CombinatorArgs.
type LocateOptions struct {
	Role     browser.RoleOptions     `mapstructure:",squash"`
	Text     browser.TextOptions     `mapstructure:",squash"`
	Selector browser.SelectorOptions `mapstructure:",squash"`

	Filter *browser.FilterOptions `mapstructure:"filter"`
	Index  *int                   `mapstructure:"index" validate:"omitempty,gte=0"`
}

// preferSpecific returns the combinator-specific option when it is set and
// the generic one otherwise. It is the only place this precedence is decided.
func preferSpecific[T any](specific, generic *T) *T {
	if specific != nil {
		return specific
	}
	return generic
}

// preferDuration is preferSpecific for timeouts, where zero means unset.
func preferDuration(specific, generic time.Duration) time.Duration {
	if specific > 0 {
		return specific
	}
	return generic
}

// NavigateDirection selects what the navigate verb does.
type NavigateDirection string

const (
	NavigateGoto    NavigateDirection = "goto"
	NavigateBack    NavigateDirection = "back"
	NavigateForward NavigateDirection = "forward"
	NavigateRefresh NavigateDirection = "refresh"
)

// NavigateOptions configures the navigate verb.
type NavigateOptions struct {
	Direction NavigateDirection `mapstructure:"direction" validate:"omitempty,oneof=goto back forward refresh"`

	browser.NavigateOptions `mapstructure:",squash"`
}

// DialogResponse is how handleDialog answers a dialog.
type DialogResponse string

const (
	DialogAccept  DialogResponse = "accept"
	DialogDismiss DialogResponse = "dismiss"
	DialogPrompt  DialogResponse = "prompt"
)

// DialogOptions configures handleDialog. The dialog is expected to be opened
// by clicking the action's Target.
type DialogOptions struct {
	Response DialogResponse `mapstructure:"response" validate:"omitempty,oneof=accept dismiss prompt"`
}

// ReadSource selects what readValue reads.
type ReadSource string

const (
	ReadText      ReadSource = "text"
	ReadInnerText ReadSource = "innerText"
	ReadValue     ReadSource = "value"
	ReadAttribute ReadSource = "attribute"
)

// ReadOptions configures readValue.
type ReadOptions struct {
	Source ReadSource `mapstructure:"source" validate:"omitempty,oneof=text innerText value attribute"`
}

// UploadVia selects how uploadFile delivers files.
type UploadVia string

const (
	UploadInput   UploadVia = "input"
	UploadChooser UploadVia = "chooser"
)

// UploadOptions configures uploadFile.
type UploadOptions struct {
	Via UploadVia `mapstructure:"via" validate:"omitempty,oneof=input chooser"`
}

// ScreenshotOptions configures the screenshot verb.
type ScreenshotOptions struct {
	FullPage bool `mapstructure:"fullPage"`
}

// MouseAction selects what the mouse verb does.
type MouseAction string

const (
	MouseClick    MouseAction = "click"
	MouseDblclick MouseAction = "dblclick"
	MouseMove     MouseAction = "move"
	MouseDown     MouseAction = "down"
	MouseUp       MouseAction = "up"
	MouseWheel    MouseAction = "wheel"
)

// MouseOptions configures the mouse verb. X and Y are viewport coordinates,
// or the scroll deltas for wheel.
type MouseOptions struct {
	Action MouseAction `mapstructure:"action" validate:"omitempty,oneof=click dblclick move down up wheel"`
	X      float64     `mapstructure:"x"`
	Y      float64     `mapstructure:"y"`

	browser.MouseOptions `mapstructure:",squash"`
}

// KeyboardAction selects what the keyboard verb does with its value.
type KeyboardAction string

const (
	KeyboardPress      KeyboardAction = "press"
	KeyboardType       KeyboardAction = "type"
	KeyboardInsertText KeyboardAction = "insertText"
	KeyboardDown       KeyboardAction = "down"
	KeyboardUp         KeyboardAction = "up"
)

// KeyboardOptions configures the keyboard verb. The default action is type.
type KeyboardOptions struct {
	Action KeyboardAction `mapstructure:"action" validate:"omitempty,oneof=press type insertText down up"`

	browser.KeyOptions `mapstructure:",squash"`
}

// TableOptions configures paginateTable. Rows and Cells are selectors below
// the table; Pager selects the page links on the page, the first of which is
// the page already shown. Without a Pager only the current page is read.
type TableOptions struct {
	Rows     string `mapstructure:"rows"`
	Cells    string `mapstructure:"cells"`
	Pager    string `mapstructure:"pager"`
	MaxPages int    `mapstructure:"maxPages" validate:"gte=0"`
}

// ActionOptions holds the typed option record of every verb. A verb reads
// only its own record.
type ActionOptions struct {
	Click      browser.ClickOptions `mapstructure:"click"`
	Input      browser.InputOptions `mapstructure:"input"`
	Type       browser.TypeOptions  `mapstructure:"type"`
	Navigate   NavigateOptions      `mapstructure:"navigate"`
	Dialog     DialogOptions        `mapstructure:"dialog"`
	Read       ReadOptions          `mapstructure:"read"`
	Upload     UploadOptions        `mapstructure:"upload"`
	Screenshot ScreenshotOptions    `mapstructure:"screenshot"`
	Mouse      MouseOptions         `mapstructure:"mouse"`
	Keyboard   KeyboardOptions      `mapstructure:"keyboard"`
	Table      TableOptions         `mapstructure:"table"`

	// Timeout bounds event waits such as switchToNewPage and downloadFile.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// SnapshotOptions configures toMatchSnapshot.
type SnapshotOptions struct {
	// Name is the baseline file name without extension.
	Name string `mapstructure:"name"`

	// Dir overrides the core's snapshot directory.
	Dir string `mapstructure:"dir"`

	// MaxDiffRatio is the share of pixels allowed to differ, 0 to 1.
	MaxDiffRatio float64 `mapstructure:"maxDiffPixelRatio" validate:"gte=0,lte=1"`

	// Threshold is the per-channel color distance, 0 to 1, below which two
	// pixels count as equal.
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`

	FullPage bool `mapstructure:"fullPage"`

	// Update rewrites the baseline instead of comparing.
	Update bool `mapstructure:"update"`
}

// AssertOptions is the typed option record of the assertion dispatcher.
type AssertOptions struct {
	// Name is the attribute, CSS property or JS property for the predicates
	// that need one, and the dot-separated path for toHaveProperty.
	Name string `mapstructure:"name"`

	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	IgnoreCase   bool          `mapstructure:"ignoreCase"`
	UseInnerText bool          `mapstructure:"useInnerText"`

	// Regexp treats a string Expected as a regular expression for the
	// text-like locator predicates.
	Regexp bool `mapstructure:"regexp"`

	// Precision is the number of decimal digits toBeCloseTo compares.
	Precision int `mapstructure:"precision" validate:"gte=0"`

	// Message replaces the generated failure headline.
	Message string `mapstructure:"message"`

	Snapshot SnapshotOptions `mapstructure:"snapshot"`
}

// Defaults are the timeouts applied when a request leaves them unset.
type Defaults struct {
	ActionTimeout time.Duration `validate:"gte=0"`
	AssertTimeout time.Duration `validate:"gte=0"`
	WaitTimeout   time.Duration `validate:"gte=0"`

	// CalendarMaxSteps caps calendar navigation when the request leaves
	// MaxSteps at zero. Zero means unbounded.
	CalendarMaxSteps int `validate:"gte=0"`
}

// DefaultDefaults returns the timeouts Playwright itself uses.
func DefaultDefaults() Defaults {
	return Defaults{
		ActionTimeout: 30 * time.Second,
		AssertTimeout: 5 * time.Second,
		WaitTimeout:   30 * time.Second,
	}
}

package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Combinator composes or narrows a handle.
type Combinator int

const (
	Identity Combinator = iota
	Filter
	And
	Or
	Descendant
	Nth
	First
	Last
)

var combinatorNames = [...]string{"identity", "filter", "and", "or", "descendant", "nth", "first", "last"}

func (c Combinator) String() string {
	if int(c) < len(combinatorNames) {
		return combinatorNames[c]
	}
	return fmt.Sprintf("combinator(%d)", int(c))
}

// ParseCombinator maps a combinator tag to its value. The empty tag and
// "default" mean Identity; "combine" and "concat" are accepted for And and
// Descendant.
func ParseCombinator(tag string) (Combinator, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "default", "identity":
		return Identity, nil
	case "filter":
		return Filter, nil
	case "and", "combine":
		return And, nil
	case "or":
		return Or, nil
	case "descendant", "concat":
		return Descendant, nil
	case "nth":
		return Nth, nil
	case "first":
		return First, nil
	case "last":
		return Last, nil
	}
	return Identity, NewResolutionError(fmt.Sprintf("unknown combinator %q", tag), nil).
		WithCode(ErrCodeInvalidOptions)
}

// Mode selects how an assertion failure is handled.
type Mode int

const (
	// ModeHard returns an AssertionFailure on mismatch.
	ModeHard Mode = iota
	// ModeHardNegated asserts the predicate's negation and fails hard.
	ModeHardNegated
	// ModeSoft records the mismatch and lets the scenario continue.
	ModeSoft
)

func (m Mode) String() string {
	switch m {
	case ModeHard:
		return "hard"
	case ModeHardNegated:
		return "not"
	case ModeSoft:
		return "soft"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps "hard", "not" and "soft" to a Mode. The empty string is hard.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hard":
		return ModeHard, nil
	case "not", "negated", "hardnegated":
		return ModeHardNegated, nil
	case "soft":
		return ModeSoft, nil
	}
	return ModeHard, fmt.Errorf("unknown assertion mode %q", s)
}

// locator is embedded in Handle under a name that does not hide the
// Locator method of the interface.
type locator = browser.Locator

// Handle is a resolved locator together with how it was resolved, so that
// combinators can re-apply the same strategy and options.
type Handle struct {
	locator

	Strategy Strategy
	Options  LocateOptions

	scope browser.Scope
}

// UnwrapLocator returns the driver locator the handle decorates.
func (h *Handle) UnwrapLocator() browser.Locator {
	return h.locator
}

// ResolutionRequest describes one lookup: exactly one strategy and at most one
// combinator.
type ResolutionRequest struct {
	Strategy Strategy
	Value    string `validate:"required"`
	Options  LocateOptions

	// Frame scopes the lookup to the iframe matched by this selector.
	Frame string

	Combinator Combinator
	Args       CombinatorArgs

	// RequireVisible turns a failed visibility probe into a ResolutionError.
	RequireVisible bool
}

// SubRequest is the second lookup of an and, or or descendant combinator.
// A nil Strategy reuses the base handle's strategy and nil Options reuse the
// base handle's options.
type SubRequest struct {
	Strategy Strategy
	Value    string `validate:"required"`
	Options  *LocateOptions
}

// CombinatorArgs holds combinator-specific options. Each one wins over the
// generic option of the same kind in LocateOptions.
type CombinatorArgs struct {
	Filter *browser.FilterOptions
	Other  *SubRequest
	Sub    *SubRequest
	Index  *int
}

// Verb is an interaction.
type Verb string

const (
	VerbClick           Verb = "click"
	VerbDoubleClick     Verb = "doubleClick"
	VerbFill            Verb = "fill"
	VerbPressKey        Verb = "pressKey"
	VerbType            Verb = "typeSequentially"
	VerbSelectOption    Verb = "selectOption"
	VerbCheck           Verb = "check"
	VerbUncheck         Verb = "uncheck"
	VerbHover           Verb = "hover"
	VerbDragTo          Verb = "dragTo"
	VerbTap             Verb = "tap"
	VerbFocus           Verb = "focus"
	VerbClear           Verb = "clear"
	VerbScrollIntoView  Verb = "scrollIntoView"
	VerbNavigate        Verb = "navigate"
	VerbSwitchToNewPage Verb = "switchToNewPage"
	VerbDownloadFile    Verb = "downloadFile"
	VerbHandleDialog    Verb = "handleDialog"
	VerbUploadFile      Verb = "uploadFile"
	VerbReadValue       Verb = "readValue"
	VerbScreenshot      Verb = "screenshot"
	VerbMouse           Verb = "mouse"
	VerbKeyboard        Verb = "keyboard"
	VerbBringToFront    Verb = "bringToFront"
	VerbPaginateTable   Verb = "paginateTable"
)

var verbAliases = map[string]Verb{
	"dblclick":           VerbDoubleClick,
	"press":              VerbPressKey,
	"type":               VerbType,
	"presssequentially":  VerbType,
	"dropdown":           VerbSelectOption,
	"select":             VerbSelectOption,
	"scroll":             VerbScrollIntoView,
	"goto":               VerbNavigate,
	"newpage":            VerbSwitchToNewPage,
	"download":           VerbDownloadFile,
	"alert":              VerbHandleDialog,
	"dialog":             VerbHandleDialog,
	"upload":             VerbUploadFile,
	"retrievevalue":      VerbReadValue,
	"mouseaction":        VerbMouse,
	"keyboardaction":     VerbKeyboard,
	"bringpagetofront":   VerbBringToFront,
	"front":              VerbBringToFront,
	"readtable":          VerbPaginateTable,
	"paginationwebtable": VerbPaginateTable,
}

// Verbs lists every verb.
func Verbs() []Verb {
	return []Verb{
		VerbClick, VerbDoubleClick, VerbFill, VerbPressKey, VerbType, VerbSelectOption,
		VerbCheck, VerbUncheck, VerbHover, VerbDragTo, VerbTap, VerbFocus, VerbClear,
		VerbScrollIntoView, VerbNavigate, VerbSwitchToNewPage, VerbDownloadFile,
		VerbHandleDialog, VerbUploadFile, VerbReadValue, VerbScreenshot,
		VerbMouse, VerbKeyboard, VerbBringToFront, VerbPaginateTable,
	}
}

// ParseVerb maps a verb name or one of its aliases to a Verb.
func ParseVerb(s string) (Verb, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, v := range Verbs() {
		if strings.ToLower(string(v)) == key {
			return v, nil
		}
	}
	if v, ok := verbAliases[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown verb %q", s)
}

// ActionRequest describes one interaction. Target is required by every verb
// except navigate and a page-level screenshot.
type ActionRequest struct {
	Verb       Verb
	Target     browser.Locator
	DragTarget browser.Locator

	// Value is the text to fill or type, the key to press, the url to visit,
	// the prompt text for a dialog or the attribute name to read. The
	// keyboard verb sends it as a key or as text, by its action.
	Value string

	// Values are the options to select or the files to upload.
	Values []string

	// Path is the destination of a download or a screenshot.
	Path string

	Options ActionOptions
}

// ActionResult carries what a verb produced.
type ActionResult struct {
	Verb Verb

	// Selected holds the values actually selected by selectOption.
	Selected []string

	// Checked is the resulting state after check or uncheck.
	Checked bool

	// Page is the tab opened by switchToNewPage.
	Page browser.Page

	// Path is where downloadFile or screenshot wrote the file.
	Path string

	// Value is the text read by readValue or the message of a handled dialog.
	Value string

	// Rows are the cell texts paginateTable read, page after page.
	Rows [][]string
}

// Predicate names an assertion.
type Predicate string

// Value predicates are evaluated by the engine on AssertionRequest.Actual.
const (
	ToBe                   Predicate = "toBe"
	ToEqual                Predicate = "toEqual"
	ToStrictEqual          Predicate = "toStrictEqual"
	ToBeCloseTo            Predicate = "toBeCloseTo"
	ToBeTruthy             Predicate = "toBeTruthy"
	ToBeFalsy              Predicate = "toBeFalsy"
	ToBeNil                Predicate = "toBeNil"
	ToBeNaN                Predicate = "toBeNaN"
	ToBeGreaterThan        Predicate = "toBeGreaterThan"
	ToBeGreaterThanOrEqual Predicate = "toBeGreaterThanOrEqual"
	ToBeLessThan           Predicate = "toBeLessThan"
	ToBeLessThanOrEqual    Predicate = "toBeLessThanOrEqual"
	ToContain              Predicate = "toContain"
	ToContainEqual         Predicate = "toContainEqual"
	ToHaveLength           Predicate = "toHaveLength"
	ToHaveProperty         Predicate = "toHaveProperty"
	ToMatch                Predicate = "toMatch"
	ToMatchObject          Predicate = "toMatchObject"
	ToBeInstanceOf         Predicate = "toBeInstanceOf"
	ToThrow                Predicate = "toThrow"
)

// Locator predicates are delegated to the driver's auto-waiting expectations.
const (
	ToBeAttached     Predicate = "toBeAttached"
	ToBeChecked      Predicate = "toBeChecked"
	ToBeDisabled     Predicate = "toBeDisabled"
	ToBeEditable     Predicate = "toBeEditable"
	ToBeEmpty        Predicate = "toBeEmpty"
	ToBeEnabled      Predicate = "toBeEnabled"
	ToBeFocused      Predicate = "toBeFocused"
	ToBeHidden       Predicate = "toBeHidden"
	ToBeInViewport   Predicate = "toBeInViewport"
	ToBeVisible      Predicate = "toBeVisible"
	ToContainText    Predicate = "toContainText"
	ToHaveAttribute  Predicate = "toHaveAttribute"
	ToHaveClass      Predicate = "toHaveClass"
	ToHaveCSS        Predicate = "toHaveCSS"
	ToHaveID         Predicate = "toHaveId"
	ToHaveJSProperty Predicate = "toHaveJSProperty"
	ToHaveText       Predicate = "toHaveText"
	ToHaveValue      Predicate = "toHaveValue"
	ToHaveValues     Predicate = "toHaveValues"
	ToHaveCount      Predicate = "toHaveCount"
)

// Page predicates.
const (
	ToHaveTitle     Predicate = "toHaveTitle"
	ToHaveURL       Predicate = "toHaveURL"
	ToMatchSnapshot Predicate = "toMatchSnapshot"
)

var predicateAliases = map[string]Predicate{
	"tobenull":      ToBeNil,
	"tobeundefined": ToBeNil,
	"tohaveurl":     ToHaveURL,
	"tohaveid":      ToHaveID,
	"tohavecss":     ToHaveCSS,
}

var checkKinds = map[Predicate]browser.CheckKind{
	ToBeAttached:     browser.CheckAttached,
	ToBeChecked:      browser.CheckChecked,
	ToBeDisabled:     browser.CheckDisabled,
	ToBeEditable:     browser.CheckEditable,
	ToBeEmpty:        browser.CheckEmpty,
	ToBeEnabled:      browser.CheckEnabled,
	ToBeFocused:      browser.CheckFocused,
	ToBeHidden:       browser.CheckHidden,
	ToBeInViewport:   browser.CheckInViewport,
	ToBeVisible:      browser.CheckVisible,
	ToContainText:    browser.CheckContainText,
	ToHaveAttribute:  browser.CheckAttribute,
	ToHaveClass:      browser.CheckClass,
	ToHaveCSS:        browser.CheckCSS,
	ToHaveID:         browser.CheckID,
	ToHaveJSProperty: browser.CheckJSProperty,
	ToHaveText:       browser.CheckText,
	ToHaveValue:      browser.CheckValue,
	ToHaveValues:     browser.CheckValues,
	ToHaveCount:      browser.CheckCount,
	ToHaveTitle:      browser.CheckTitle,
	ToHaveURL:        browser.CheckURL,
}

// ParsePredicate maps a predicate name, case-insensitively, to a Predicate.
func ParsePredicate(s string) (Predicate, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if p, ok := predicateAliases[key]; ok {
		return p, nil
	}
	for _, p := range Predicates() {
		if strings.ToLower(string(p)) == key {
			return p, nil
		}
	}
	return "", NewAssertionFailure(fmt.Sprintf("unknown predicate %q", s), nil).WithCode(ErrCodeUnknownPredicate)
}

// Predicates lists every predicate.
func Predicates() []Predicate {
	out := make([]Predicate, 0, len(valuePredicates)+len(checkKinds)+1)
	for p := range valuePredicates {
		out = append(out, p)
	}
	for p := range checkKinds {
		out = append(out, p)
	}
	out = append(out, ToMatchSnapshot)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AssertionRequest describes one assertion. Value predicates read Actual;
// locator predicates read Target; page predicates read the page.
type AssertionRequest struct {
	Predicate Predicate
	Mode      Mode
	Target    browser.Locator
	Actual    interface{}
	Expected  interface{}
	Options   AssertOptions
}

// Verdict is the outcome of an assertion.
type Verdict struct {
	Predicate Predicate
	Mode      Mode
	Passed    bool
	Expected  string
	Actual    string
	Diff      string
}

// WaitKind names a waitable condition.
type WaitKind string

const (
	WaitElementState    WaitKind = "element"
	WaitLoadState       WaitKind = "load"
	WaitNetworkIdle     WaitKind = "networkidle"
	WaitTimeout         WaitKind = "timeout"
	WaitFunction        WaitKind = "function"
	WaitURL             WaitKind = "url"
	WaitNetworkRequest  WaitKind = "request"
	WaitNetworkResponse WaitKind = "response"
)

// ParseWaitKind maps a wait kind tag to its value.
func ParseWaitKind(s string) (WaitKind, error) {
	switch k := WaitKind(strings.ToLower(strings.TrimSpace(s))); k {
	case WaitElementState, WaitLoadState, WaitNetworkIdle, WaitTimeout, WaitFunction, WaitURL, WaitNetworkRequest, WaitNetworkResponse:
		return k, nil
	case "selector", "state":
		return WaitElementState, nil
	case "loadstate":
		return WaitLoadState, nil
	case "waitforurl":
		return WaitURL, nil
	}
	return "", fmt.Errorf("unknown wait kind %q", s)
}

// WaitRequest describes one wait.
type WaitRequest struct {
	Kind WaitKind

	// Target and State apply to element waits.
	Target browser.Locator
	State  browser.ElementState

	// LoadState applies to load waits; the default is "load".
	LoadState browser.LoadState

	// Pattern is the url, request or response pattern.
	Pattern string

	// Expression is the JavaScript predicate of a function wait.
	Expression string

	// Duration is the length of an explicit timeout wait.
	Duration time.Duration

	// Trigger runs after a request or response listener is armed.
	Trigger func() error

	Timeout time.Duration
}

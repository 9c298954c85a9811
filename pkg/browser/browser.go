// Package browser defines the capability boundary between pagecore and a
// browser-automation driver. The engine only talks to these interfaces; the
// pwbrowser package backs them with Playwright and fakebrowser backs them with
// an in-memory document for tests.
package browser

import (
	"time"
)

// Scope produces strategy-tagged locators. Pages, frames and locators are all
// scopes, so a lookup can always be re-rooted under an existing handle.
type Scope interface {
	Locator(selector string, opts SelectorOptions) Locator
	GetByRole(role string, opts RoleOptions) Locator
	GetByText(text string, opts TextOptions) Locator
	GetByLabel(text string, opts TextOptions) Locator
	GetByPlaceholder(text string, opts TextOptions) Locator
	GetByAltText(text string, opts TextOptions) Locator
	GetByTitle(text string, opts TextOptions) Locator
	GetByTestID(id string) Locator
}

// Locator is a lazy reference to zero or more elements. Nothing is looked up
// until a read or an action runs, and the lookup is repeated on every call.
type Locator interface {
	Scope

	// Composition
	Filter(opts FilterOptions) Locator
	And(other Locator) Locator
	Or(other Locator) Locator
	Nth(index int) Locator
	First() Locator
	Last() Locator

	// Describe returns a human readable form of the lookup chain.
	Describe() string

	// Reads
	Count() (int, error)
	IsVisible() (bool, error)
	IsHidden() (bool, error)
	IsEnabled() (bool, error)
	IsChecked() (bool, error)
	IsEditable() (bool, error)
	TextContent() (string, error)
	InnerText() (string, error)
	InputValue() (string, error)
	GetAttribute(name string) (string, bool, error)

	// Actions
	Click(opts ClickOptions) error
	Dblclick(opts ClickOptions) error
	Fill(value string, opts InputOptions) error
	Press(key string, opts InputOptions) error
	PressSequentially(text string, opts TypeOptions) error
	SelectOption(values []string, opts InputOptions) ([]string, error)
	SetChecked(checked bool, opts InputOptions) error
	Check(opts InputOptions) error
	Uncheck(opts InputOptions) error
	Hover(opts InputOptions) error
	DragTo(target Locator, opts InputOptions) error
	Tap(opts InputOptions) error
	Focus(opts InputOptions) error
	Clear(opts InputOptions) error
	ScrollIntoView(opts InputOptions) error
	SetInputFiles(paths []string, opts InputOptions) error
	WaitFor(state ElementState, timeout time.Duration) error
	Screenshot(path string) ([]byte, error)
}

// Page is a single browser tab.
type Page interface {
	Scope

	// FrameLocator scopes lookups to the iframe matched by selector.
	FrameLocator(selector string) Scope

	URL() string
	Title() (string, error)
	Goto(url string, opts NavigateOptions) error
	GoBack(opts NavigateOptions) error
	GoForward(opts NavigateOptions) error
	Reload(opts NavigateOptions) error

	WaitForLoadState(state LoadState, timeout time.Duration) error
	WaitForURL(pattern string, timeout time.Duration) error
	WaitForFunction(expression string, timeout time.Duration) error

	// ExpectEvent arms a listener for kind, runs trigger, and returns the
	// first matching event. The listener is always attached before trigger
	// executes.
	ExpectEvent(kind EventKind, trigger func() error, opts ExpectOptions) (Event, error)

	// OnceDialog and OnceFileChooser attach a handler for the next event only.
	// The returned func detaches the handler if it has not fired yet.
	OnceDialog(handler func(Dialog)) (detach func())
	OnceFileChooser(handler func(FileChooser)) (detach func())

	// Mouse and Keyboard drive page-level input that is not tied to a
	// locator. Coordinates are CSS pixels from the viewport's top left.
	Mouse() Mouse
	Keyboard() Keyboard

	// BringToFront activates the tab.
	BringToFront() error

	Screenshot(path string, fullPage bool) ([]byte, error)

	// ExpectLocator and ExpectPage evaluate an auto-waiting expectation.
	// A failed expectation is reported as *MismatchError.
	ExpectLocator(target Locator, check Check) error
	ExpectPage(check Check) error

	Close() error
}

// Mouse is the page's virtual mouse.
type Mouse interface {
	Click(x, y float64, opts MouseOptions) error
	Dblclick(x, y float64, opts MouseOptions) error
	Move(x, y float64, opts MouseOptions) error
	Down(opts MouseOptions) error
	Up(opts MouseOptions) error
	Wheel(deltaX, deltaY float64) error
}

// Keyboard sends key events to whatever has focus.
type Keyboard interface {
	Press(key string, opts KeyOptions) error
	Type(text string, opts KeyOptions) error
	// InsertText sends an input event only, without key events.
	InsertText(text string) error
	Down(key string) error
	Up(key string) error
}

// Dialog is a JavaScript alert, confirm, prompt or beforeunload dialog.
type Dialog interface {
	Message() string
	Type() string
	Accept(promptText string) error
	Dismiss() error
}

// Download is a file download started by the page.
type Download interface {
	SuggestedFilename() string
	SaveAs(path string) error
}

// FileChooser is a native file picker opened by the page.
type FileChooser interface {
	SetFiles(paths []string) error
}

// Request is an outgoing network request.
type Request interface {
	URL() string
	Method() string
}

// Response is a network response.
type Response interface {
	URL() string
	Status() int
}

// EventKind selects the page event ExpectEvent waits for.
type EventKind string

const (
	EventPage     EventKind = "page"
	EventDownload EventKind = "download"
	EventRequest  EventKind = "request"
	EventResponse EventKind = "response"
)

// Event carries the payload of a page event. Only the field matching Kind is set.
type Event struct {
	Kind     EventKind
	Page     Page
	Download Download
	Request  Request
	Response Response
}

// ElementState is a state a locator can be waited into.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
)

// LoadState is a document lifecycle state.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Unwrap returns the driver locator underneath any wrappers. Wrappers expose
// the locator they decorate through an UnwrapLocator method.
func Unwrap(l Locator) Locator {
	for {
		w, ok := l.(interface{ UnwrapLocator() Locator })
		if !ok {
			return l
		}
		l = w.UnwrapLocator()
	}
}

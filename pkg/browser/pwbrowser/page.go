package pwbrowser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Page adapts a Playwright page to browser.Page.
type Page struct {
	p          playwright.Page
	assertions playwright.PlaywrightAssertions

	// owned is the browser context created for this page, closed with it.
	owned playwright.BrowserContext
}

// Wrap adapts an existing Playwright page.
func Wrap(p playwright.Page) *Page {
	return &Page{p: p, assertions: playwright.NewPlaywrightAssertions()}
}

// Native returns the underlying Playwright page.
func (p *Page) Native() playwright.Page {
	return p.p
}

// Locator looks up a CSS or XPath selector on the page.
func (p *Page) Locator(sel string, o browser.SelectorOptions) browser.Locator {
	return newLocator(p.p.Locator(sel, playwright.PageLocatorOptions{
		HasText:    optText(o.HasText),
		HasNotText: optText(o.HasNotText),
	}), fmt.Sprintf("locator(%q)", sel))
}

// GetByRole looks up elements by ARIA role and accessible name.
func (p *Page) GetByRole(role string, o browser.RoleOptions) browser.Locator {
	return newLocator(p.p.GetByRole(playwright.AriaRole(role), playwright.PageGetByRoleOptions{
		Name:          optText(o.Name),
		Exact:         optBool(o.Exact),
		Checked:       o.Checked,
		Disabled:      o.Disabled,
		Expanded:      o.Expanded,
		Pressed:       o.Pressed,
		Selected:      o.Selected,
		IncludeHidden: optBool(o.IncludeHidden),
		Level:         level(o.Level),
	}), describeRole(role, o))
}

// GetByText looks up elements by their text.
func (p *Page) GetByText(text string, o browser.TextOptions) browser.Locator {
	return newLocator(p.p.GetByText(text, playwright.PageGetByTextOptions{Exact: optBool(o.Exact)}),
		fmt.Sprintf("getByText(%q)", text))
}

// GetByLabel looks up form controls by their label.
func (p *Page) GetByLabel(text string, o browser.TextOptions) browser.Locator {
	return newLocator(p.p.GetByLabel(text, playwright.PageGetByLabelOptions{Exact: optBool(o.Exact)}),
		fmt.Sprintf("getByLabel(%q)", text))
}

// GetByPlaceholder looks up inputs by placeholder.
func (p *Page) GetByPlaceholder(text string, o browser.TextOptions) browser.Locator {
	return newLocator(p.p.GetByPlaceholder(text, playwright.PageGetByPlaceholderOptions{Exact: optBool(o.Exact)}),
		fmt.Sprintf("getByPlaceholder(%q)", text))
}

// GetByAltText looks up images by alt text.
func (p *Page) GetByAltText(text string, o browser.TextOptions) browser.Locator {
	return newLocator(p.p.GetByAltText(text, playwright.PageGetByAltTextOptions{Exact: optBool(o.Exact)}),
		fmt.Sprintf("getByAltText(%q)", text))
}

// GetByTitle looks up elements by title attribute.
func (p *Page) GetByTitle(text string, o browser.TextOptions) browser.Locator {
	return newLocator(p.p.GetByTitle(text, playwright.PageGetByTitleOptions{Exact: optBool(o.Exact)}),
		fmt.Sprintf("getByTitle(%q)", text))
}

// GetByTestID looks up elements by data-testid.
func (p *Page) GetByTestID(id string) browser.Locator {
	return newLocator(p.p.GetByTestId(id), fmt.Sprintf("getByTestId(%q)", id))
}

// FrameLocator scopes lookups to an iframe. Lookups run under the frame's
// root element, so every strategy stays available.
func (p *Page) FrameLocator(selector string) browser.Scope {
	return newLocator(p.p.FrameLocator(selector).Locator(":root"), fmt.Sprintf("frame(%q)", selector))
}

// URL returns the current page URL.
func (p *Page) URL() string {
	return p.p.URL()
}

// Title returns the document title.
func (p *Page) Title() (string, error) {
	return p.p.Title()
}

// Goto navigates and waits for o.WaitUntil, load by default.
func (p *Page) Goto(url string, o browser.NavigateOptions) error {
	_, err := p.p.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil(o.WaitUntil), Timeout: ms(o.Timeout)})
	return err
}

// GoBack navigates back in history.
func (p *Page) GoBack(o browser.NavigateOptions) error {
	_, err := p.p.GoBack(playwright.PageGoBackOptions{WaitUntil: waitUntil(o.WaitUntil), Timeout: ms(o.Timeout)})
	return err
}

// GoForward navigates forward in history.
func (p *Page) GoForward(o browser.NavigateOptions) error {
	_, err := p.p.GoForward(playwright.PageGoForwardOptions{WaitUntil: waitUntil(o.WaitUntil), Timeout: ms(o.Timeout)})
	return err
}

// Reload reloads the page.
func (p *Page) Reload(o browser.NavigateOptions) error {
	_, err := p.p.Reload(playwright.PageReloadOptions{WaitUntil: waitUntil(o.WaitUntil), Timeout: ms(o.Timeout)})
	return err
}

// WaitForLoadState waits for a document lifecycle state, load when state is empty.
func (p *Page) WaitForLoadState(state browser.LoadState, timeout time.Duration) error {
	opts := playwright.PageWaitForLoadStateOptions{Timeout: ms(timeout)}
	if state != "" {
		s := playwright.LoadState(state)
		opts.State = &s
	}
	return p.p.WaitForLoadState(opts)
}

// WaitForURL waits for the URL to match a glob or /regexp/ pattern.
func (p *Page) WaitForURL(pattern string, timeout time.Duration) error {
	re, err := browser.URLRegexp(pattern)
	if err != nil {
		return fmt.Errorf("invalid url pattern %q: %w", pattern, err)
	}
	return p.p.WaitForURL(re, playwright.PageWaitForURLOptions{Timeout: ms(timeout)})
}

// WaitForFunction waits for a JavaScript expression to become truthy.
func (p *Page) WaitForFunction(expression string, timeout time.Duration) error {
	_, err := p.p.WaitForFunction(expression, nil, playwright.PageWaitForFunctionOptions{Timeout: ms(timeout)})
	return err
}

// ExpectEvent arms the matching Playwright waiter, runs trigger and returns
// the event. New pages are popups of this page.
func (p *Page) ExpectEvent(kind browser.EventKind, trigger func() error, o browser.ExpectOptions) (browser.Event, error) {
	if trigger == nil {
		trigger = func() error { return nil }
	}
	ev := browser.Event{Kind: kind}
	switch kind {
	case browser.EventPage:
		popup, err := p.p.ExpectPopup(trigger, playwright.PageExpectPopupOptions{Timeout: ms(o.Timeout)})
		if err != nil {
			return ev, err
		}
		ev.Page = Wrap(popup)
	case browser.EventDownload:
		d, err := p.p.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{Timeout: ms(o.Timeout)})
		if err != nil {
			return ev, err
		}
		ev.Download = d
	case browser.EventRequest:
		re, err := browser.URLRegexp(o.URLPattern)
		if err != nil {
			return ev, fmt.Errorf("invalid url pattern %q: %w", o.URLPattern, err)
		}
		r, err := p.p.ExpectRequest(re, trigger, playwright.PageExpectRequestOptions{Timeout: ms(o.Timeout)})
		if err != nil {
			return ev, err
		}
		ev.Request = r
	case browser.EventResponse:
		re, err := browser.URLRegexp(o.URLPattern)
		if err != nil {
			return ev, fmt.Errorf("invalid url pattern %q: %w", o.URLPattern, err)
		}
		r, err := p.p.ExpectResponse(re, trigger, playwright.PageExpectResponseOptions{Timeout: ms(o.Timeout)})
		if err != nil {
			return ev, err
		}
		ev.Response = r
	default:
		return ev, fmt.Errorf("unsupported event %q", kind)
	}
	return ev, nil
}

// OnceDialog handles the next dialog. The listener is removed after it fires
// or on detach, after which Playwright dismisses dialogs again.
func (p *Page) OnceDialog(handler func(browser.Dialog)) func() {
	var once sync.Once
	var h func(playwright.Dialog)
	h = func(d playwright.Dialog) {
		fired := false
		once.Do(func() {
			fired = true
			p.p.RemoveListener("dialog", h)
			handler(dialog{d})
		})
		if !fired {
			_ = d.Dismiss()
		}
	}
	p.p.On("dialog", h)
	return func() {
		once.Do(func() { p.p.RemoveListener("dialog", h) })
	}
}

// OnceFileChooser handles the next file chooser. The listener is removed
// after it fires or on detach.
func (p *Page) OnceFileChooser(handler func(browser.FileChooser)) func() {
	var once sync.Once
	var h func(playwright.FileChooser)
	h = func(fc playwright.FileChooser) {
		once.Do(func() {
			p.p.RemoveListener("filechooser", h)
			handler(fileChooser{fc})
		})
	}
	p.p.On("filechooser", h)
	return func() {
		once.Do(func() { p.p.RemoveListener("filechooser", h) })
	}
}

// Mouse returns the page's mouse.
func (p *Page) Mouse() browser.Mouse {
	return mouse{p.p.Mouse()}
}

// Keyboard returns the page's keyboard.
func (p *Page) Keyboard() browser.Keyboard {
	return keyboard{p.p.Keyboard()}
}

// BringToFront activates the tab.
func (p *Page) BringToFront() error {
	return p.p.BringToFront()
}

// Screenshot captures the viewport, or the whole page when fullPage is set.
func (p *Page) Screenshot(path string, fullPage bool) ([]byte, error) {
	return p.p.Screenshot(playwright.PageScreenshotOptions{Path: optString(path), FullPage: optBool(fullPage)})
}

// Close closes the page and, for pages a Session opened, their context.
func (p *Page) Close() error {
	err := p.p.Close()
	if p.owned != nil {
		err = errors.Join(err, p.owned.Close())
	}
	return err
}

type mouse struct {
	m playwright.Mouse
}

func mouseButton(o browser.MouseOptions) *playwright.MouseButton {
	if o.Button == "" {
		return nil
	}
	b := playwright.MouseButton(o.Button)
	return &b
}

func (m mouse) Click(x, y float64, o browser.MouseOptions) error {
	return m.m.Click(x, y, playwright.MouseClickOptions{
		Button:     mouseButton(o),
		ClickCount: optInt(o.ClickCount),
		Delay:      ms(o.Delay),
	})
}

func (m mouse) Dblclick(x, y float64, o browser.MouseOptions) error {
	return m.m.Dblclick(x, y, playwright.MouseDblclickOptions{Button: mouseButton(o), Delay: ms(o.Delay)})
}

func (m mouse) Move(x, y float64, o browser.MouseOptions) error {
	return m.m.Move(x, y, playwright.MouseMoveOptions{Steps: optInt(o.Steps)})
}

func (m mouse) Down(o browser.MouseOptions) error {
	return m.m.Down(playwright.MouseDownOptions{Button: mouseButton(o), ClickCount: optInt(o.ClickCount)})
}

func (m mouse) Up(o browser.MouseOptions) error {
	return m.m.Up(playwright.MouseUpOptions{Button: mouseButton(o), ClickCount: optInt(o.ClickCount)})
}

func (m mouse) Wheel(deltaX, deltaY float64) error {
	return m.m.Wheel(deltaX, deltaY)
}

type keyboard struct {
	k playwright.Keyboard
}

func (k keyboard) Press(key string, o browser.KeyOptions) error {
	return k.k.Press(key, playwright.KeyboardPressOptions{Delay: ms(o.Delay)})
}

func (k keyboard) Type(text string, o browser.KeyOptions) error {
	return k.k.Type(text, playwright.KeyboardTypeOptions{Delay: ms(o.Delay)})
}

func (k keyboard) InsertText(text string) error { return k.k.InsertText(text) }
func (k keyboard) Down(key string) error        { return k.k.Down(key) }
func (k keyboard) Up(key string) error          { return k.k.Up(key) }

type dialog struct {
	d playwright.Dialog
}

func (d dialog) Message() string { return d.d.Message() }
func (d dialog) Type() string    { return d.d.Type() }
func (d dialog) Dismiss() error  { return d.d.Dismiss() }

func (d dialog) Accept(promptText string) error {
	if promptText == "" {
		return d.d.Accept()
	}
	return d.d.Accept(promptText)
}

type fileChooser struct {
	fc playwright.FileChooser
}

func (f fileChooser) SetFiles(paths []string) error {
	return f.fc.SetFiles(paths)
}

var (
	_ browser.Page    = (*Page)(nil)
	_ browser.Locator = (*Locator)(nil)
)

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

var verbTitles = map[Verb]string{
	VerbClick:           "Click on an element",
	VerbDoubleClick:     "Double-click on an element",
	VerbFill:            "Fill an input",
	VerbPressKey:        "Press a key",
	VerbType:            "Type text key by key",
	VerbSelectOption:    "Select an option",
	VerbCheck:           "Check a checkbox",
	VerbUncheck:         "Uncheck a checkbox",
	VerbHover:           "Hover over an element",
	VerbDragTo:          "Drag an element onto another",
	VerbTap:             "Tap an element",
	VerbFocus:           "Focus an element",
	VerbClear:           "Clear an input",
	VerbScrollIntoView:  "Scroll an element into view",
	VerbNavigate:        "Navigate",
	VerbSwitchToNewPage: "Switch to a new page",
	VerbDownloadFile:    "Download a file",
	VerbHandleDialog:    "Handle a dialog",
	VerbUploadFile:      "Upload files",
	VerbReadValue:       "Read a value",
	VerbScreenshot:      "Take a screenshot",
	VerbMouse:           "Mouse action",
	VerbKeyboard:        "Keyboard action",
	VerbBringToFront:    "Bring the page to the front",
	VerbPaginateTable:   "Read a paginated table",
}

// pageVerbs may run without a target.
var pageVerbs = map[Verb]bool{
	VerbNavigate:     true,
	VerbScreenshot:   true,
	VerbMouse:        true,
	VerbKeyboard:     true,
	VerbBringToFront: true,
}

// Perform runs one interaction inside a named trace scope. A primitive
// failure is logged with the verb, target and value and returned as an
// ActionError. The only exceptions are check and uncheck, which report a
// fixed state instead of failing: check reports false and uncheck reports
// true.
func (c *Core) Perform(ctx context.Context, page browser.Page, req ActionRequest) (res *ActionResult, err error) {
	title, known := verbTitles[req.Verb]
	if !known {
		title = string(req.Verb)
	}
	ctx, done := c.step(ctx, "action", string(req.Verb), title, Fields{
		"verb":   string(req.Verb),
		"target": describe(req.Target),
	})
	defer func() { done(err) }()

	extra := Fields{"value": req.Value}
	if len(req.Values) > 0 {
		extra["values"] = req.Values
	}

	if !known {
		return nil, c.fail(ctx, NewActionError(fmt.Sprintf("unknown verb %q", req.Verb), nil).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Verb)), extra)
	}
	if verr := c.validateStruct(req.Options); verr != nil {
		return nil, c.fail(ctx, NewActionError("invalid action options", verr).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Verb)).
			WithTarget(describe(req.Target)), extra)
	}
	if req.Target == nil && !pageVerbs[req.Verb] {
		return nil, c.fail(ctx, NewActionError(string(req.Verb)+" needs a target element", nil).
			WithCode(ErrCodeInvalidOptions).
			WithOperation(string(req.Verb)), extra)
	}
	if page == nil && (req.Target == nil || needsPage(req)) {
		return nil, c.fail(ctx, NewActionError(string(req.Verb)+" needs a page", nil).
			WithOperation(string(req.Verb)), extra)
	}

	res, err = c.dispatch(ctx, page, req)
	if err != nil {
		var ee *EngineError
		if !errors.As(err, &ee) {
			ee = NewActionError(string(req.Verb)+" failed", err)
		}
		return nil, c.fail(ctx, ee.WithOperation(string(req.Verb)).WithTarget(describe(req.Target)), extra)
	}
	res.Verb = req.Verb
	c.sink.Info(ctx, title+" done", Fields{
		"verb":   string(req.Verb),
		"target": describe(req.Target),
	})
	return res, nil
}

func needsPage(req ActionRequest) bool {
	switch req.Verb {
	case VerbNavigate, VerbSwitchToNewPage, VerbDownloadFile, VerbHandleDialog,
		VerbMouse, VerbKeyboard, VerbBringToFront:
		return true
	case VerbUploadFile:
		return req.Options.Upload.Via == UploadChooser
	case VerbPaginateTable:
		return req.Options.Table.Pager != ""
	}
	return false
}

func (c *Core) dispatch(ctx context.Context, page browser.Page, req ActionRequest) (*ActionResult, error) {
	res := &ActionResult{}
	t := req.Target
	o := req.Options

	click := o.Click
	click.Timeout = preferDuration(click.Timeout, c.defaults.ActionTimeout)
	input := o.Input
	input.Timeout = preferDuration(input.Timeout, c.defaults.ActionTimeout)
	typing := o.Type
	typing.Timeout = preferDuration(typing.Timeout, c.defaults.ActionTimeout)

	switch req.Verb {
	case VerbClick:
		return res, t.Click(click)

	case VerbDoubleClick:
		return res, t.Dblclick(click)

	case VerbFill:
		return res, t.Fill(req.Value, input)

	case VerbPressKey:
		if req.Value == "" {
			return nil, NewActionError("pressKey needs a key", nil).WithCode(ErrCodeInvalidOptions)
		}
		return res, t.Press(req.Value, input)

	case VerbType:
		return res, t.PressSequentially(req.Value, typing)

	case VerbSelectOption:
		values := req.Values
		if len(values) == 0 && req.Value != "" {
			values = []string{req.Value}
		}
		selected, err := t.SelectOption(values, input)
		if err != nil {
			return nil, err
		}
		res.Selected = selected
		return res, nil

	case VerbCheck:
		res.Checked = c.setChecked(ctx, req, input, true)
		return res, nil

	case VerbUncheck:
		res.Checked = c.setChecked(ctx, req, input, false)
		return res, nil

	case VerbHover:
		return res, t.Hover(input)

	case VerbDragTo:
		if req.DragTarget == nil {
			return nil, NewActionError("dragTo needs a drop target", nil).WithCode(ErrCodeInvalidOptions)
		}
		return res, t.DragTo(req.DragTarget, input)

	case VerbTap:
		return res, t.Tap(input)

	case VerbFocus:
		return res, t.Focus(input)

	case VerbClear:
		return res, t.Clear(input)

	case VerbScrollIntoView:
		return res, t.ScrollIntoView(input)

	case VerbNavigate:
		return res, c.navigate(page, req)

	case VerbSwitchToNewPage:
		p, err := c.switchToNewPage(page, t, click, o)
		if err != nil {
			return nil, err
		}
		res.Page = p
		res.Value = p.URL()
		return res, nil

	case VerbDownloadFile:
		path, err := c.download(page, t, click, req.Path, o.Timeout)
		if err != nil {
			return nil, err
		}
		res.Path = path
		return res, nil

	case VerbHandleDialog:
		msg, err := c.handleDialog(page, t, click, req.Value, o)
		if err != nil {
			return nil, err
		}
		res.Value = msg
		return res, nil

	case VerbUploadFile:
		if len(req.Values) == 0 {
			return nil, NewActionError("uploadFile needs at least one file", nil).WithCode(ErrCodeInvalidOptions)
		}
		if o.Upload.Via == UploadChooser {
			return res, c.uploadViaChooser(page, t, click, req.Values, o.Timeout)
		}
		return res, t.SetInputFiles(req.Values, input)

	case VerbReadValue:
		v, err := readValue(t, req.Value, o.Read.Source)
		if err != nil {
			return nil, err
		}
		res.Value = v
		return res, nil

	case VerbScreenshot:
		var err error
		if t == nil {
			_, err = page.Screenshot(req.Path, o.Screenshot.FullPage)
		} else {
			_, err = t.Screenshot(req.Path)
		}
		res.Path = req.Path
		return res, err

	case VerbMouse:
		return res, mouseAction(page.Mouse(), o.Mouse)

	case VerbKeyboard:
		return res, keyboardAction(page.Keyboard(), req.Value, o.Keyboard)

	case VerbBringToFront:
		return res, page.BringToFront()

	case VerbPaginateTable:
		rows, err := c.paginateTable(ctx, page, t, click, o.Table)
		if err != nil {
			return nil, err
		}
		res.Rows = rows
		return res, nil
	}
	return nil, NewActionError(fmt.Sprintf("verb %q is not dispatched", req.Verb), nil)
}

// setChecked drives a checkbox into the wanted state and reports the state
// read back afterwards. On any failure it logs the cause and reports false
// for check and true for uncheck, so a failed check never reads as checked.
func (c *Core) setChecked(ctx context.Context, req ActionRequest, opts browser.InputOptions, want bool) bool {
	t := req.Target
	err := t.SetChecked(want, opts)
	if err == nil {
		if want {
			err = t.Check(opts)
		} else {
			err = t.Uncheck(opts)
		}
	}
	var state bool
	if err == nil {
		state, err = t.IsChecked()
	}
	if err != nil {
		fallback := !want
		c.sink.Error(ctx, fmt.Sprintf("%s failed, reporting checked=%t", req.Verb, fallback), Fields{
			"verb":   string(req.Verb),
			"target": t.Describe(),
			"cause":  err.Error(),
		})
		return fallback
	}
	return state
}

func (c *Core) navigate(page browser.Page, req ActionRequest) error {
	opts := req.Options.Navigate.NavigateOptions
	opts.Timeout = preferDuration(opts.Timeout, c.defaults.ActionTimeout)

	dir := req.Options.Navigate.Direction
	if dir == "" && req.Value != "" {
		dir = NavigateGoto
	}
	switch dir {
	case NavigateGoto:
		if req.Value == "" {
			return NewActionError("goto needs a url", nil).WithCode(ErrCodeInvalidOptions)
		}
		return page.Goto(req.Value, opts)
	case NavigateBack:
		return page.GoBack(opts)
	case NavigateForward:
		return page.GoForward(opts)
	case NavigateRefresh:
		return page.Reload(opts)
	}
	return NewActionError("navigate needs a direction or a url", nil).WithCode(ErrCodeInvalidOptions)
}

// switchToNewPage arms the new-page listener, then clicks. ExpectEvent
// attaches the listener before the trigger runs, so a tab opened
// synchronously by the click is still seen.
func (c *Core) switchToNewPage(page browser.Page, t browser.Locator, click browser.ClickOptions, o ActionOptions) (browser.Page, error) {
	var clickErr error
	ev, err := page.ExpectEvent(browser.EventPage, func() error {
		clickErr = t.Click(click)
		return clickErr
	}, browser.ExpectOptions{Timeout: preferDuration(o.Timeout, c.defaults.ActionTimeout)})
	if clickErr != nil {
		return nil, clickErr
	}
	if err != nil || ev.Page == nil {
		return nil, NewActionError("no new page was opened", err).WithCode(ErrCodeNoNewPage)
	}
	state := o.Navigate.WaitUntil
	if state == "" {
		state = browser.LoadStateLoad
	}
	if err := ev.Page.WaitForLoadState(state, preferDuration(o.Navigate.Timeout, c.defaults.ActionTimeout)); err != nil {
		return nil, err
	}
	return ev.Page, nil
}

// download arms the download listener, clicks, and saves the file. A path
// naming an existing directory receives the suggested file name.
func (c *Core) download(page browser.Page, t browser.Locator, click browser.ClickOptions, path string, timeout time.Duration) (string, error) {
	if path == "" {
		return "", NewActionError("downloadFile needs a destination path", nil).WithCode(ErrCodeInvalidOptions)
	}
	var clickErr error
	ev, err := page.ExpectEvent(browser.EventDownload, func() error {
		clickErr = t.Click(click)
		return clickErr
	}, browser.ExpectOptions{Timeout: preferDuration(timeout, c.defaults.ActionTimeout)})
	if clickErr != nil {
		return "", clickErr
	}
	if err != nil || ev.Download == nil {
		return "", NewActionError("no download started", err)
	}
	if info, serr := os.Stat(path); serr == nil && info.IsDir() {
		path = filepath.Join(path, ev.Download.SuggestedFilename())
	}
	if err := ev.Download.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

type dialogOutcome struct {
	message string
	err     error
}

// handleDialog answers the next dialog opened by clicking t. The handler is
// detached once the click returns, whether or not a dialog appeared.
func (c *Core) handleDialog(page browser.Page, t browser.Locator, click browser.ClickOptions, promptText string, o ActionOptions) (string, error) {
	outcome := make(chan dialogOutcome, 1)
	detach := page.OnceDialog(func(d browser.Dialog) {
		var err error
		switch o.Dialog.Response {
		case DialogDismiss:
			err = d.Dismiss()
		case DialogPrompt:
			err = d.Accept(promptText)
		default:
			err = d.Accept("")
		}
		outcome <- dialogOutcome{message: d.Message(), err: err}
	})
	defer detach()

	if err := t.Click(click); err != nil {
		return "", err
	}
	r, ok := receive(outcome, preferDuration(o.Timeout, c.defaults.ActionTimeout))
	if !ok {
		return "", NewActionError("no dialog appeared", nil)
	}
	return r.message, r.err
}

// uploadViaChooser delivers files through the next file chooser opened by
// clicking t.
func (c *Core) uploadViaChooser(page browser.Page, t browser.Locator, click browser.ClickOptions, files []string, timeout time.Duration) error {
	done := make(chan error, 1)
	detach := page.OnceFileChooser(func(fc browser.FileChooser) {
		done <- fc.SetFiles(files)
	})
	defer detach()

	if err := t.Click(click); err != nil {
		return err
	}
	err, ok := receive(done, preferDuration(timeout, c.defaults.ActionTimeout))
	if !ok {
		return NewActionError("no file chooser appeared", nil)
	}
	return err
}

func mouseAction(m browser.Mouse, o MouseOptions) error {
	switch o.Action {
	case "", MouseClick:
		return m.Click(o.X, o.Y, o.MouseOptions)
	case MouseDblclick:
		return m.Dblclick(o.X, o.Y, o.MouseOptions)
	case MouseMove:
		return m.Move(o.X, o.Y, o.MouseOptions)
	case MouseDown:
		return m.Down(o.MouseOptions)
	case MouseUp:
		return m.Up(o.MouseOptions)
	case MouseWheel:
		return m.Wheel(o.X, o.Y)
	}
	return NewActionError(fmt.Sprintf("unknown mouse action %q", o.Action), nil).WithCode(ErrCodeInvalidOptions)
}

func keyboardAction(k browser.Keyboard, value string, o KeyboardOptions) error {
	if value == "" {
		return NewActionError("keyboard needs a key or text", nil).WithCode(ErrCodeInvalidOptions)
	}
	switch o.Action {
	case "", KeyboardType:
		return k.Type(value, o.KeyOptions)
	case KeyboardPress:
		return k.Press(value, o.KeyOptions)
	case KeyboardInsertText:
		return k.InsertText(value)
	case KeyboardDown:
		return k.Down(value)
	case KeyboardUp:
		return k.Up(value)
	}
	return NewActionError(fmt.Sprintf("unknown keyboard action %q", o.Action), nil).WithCode(ErrCodeInvalidOptions)
}

// paginateTable reads the cell texts of table, then clicks through the pager
// links and reads every further page. Row and cell lookups are re-run on each
// page, so rows that change between pages are read as they are.
func (c *Core) paginateTable(ctx context.Context, page browser.Page, table browser.Locator, click browser.ClickOptions, o TableOptions) ([][]string, error) {
	rowSel := o.Rows
	if rowSel == "" {
		rowSel = "tbody tr"
	}
	cellSel := o.Cells
	if cellSel == "" {
		cellSel = "td"
	}

	var out [][]string
	read := func(n int) error {
		rows := table.Locator(rowSel, browser.SelectorOptions{})
		count, err := rows.Count()
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			cells := rows.Nth(i).Locator(cellSel, browser.SelectorOptions{})
			m, err := cells.Count()
			if err != nil {
				return err
			}
			row := make([]string, 0, m)
			for j := 0; j < m; j++ {
				text, err := cells.Nth(j).TextContent()
				if err != nil {
					return err
				}
				row = append(row, strings.TrimSpace(text))
			}
			out = append(out, row)
		}
		c.sink.Info(ctx, "Table page read", Fields{"page": n, "rows": count, "table": table.Describe()})
		return nil
	}

	if err := read(1); err != nil {
		return nil, err
	}
	if o.Pager == "" {
		return out, nil
	}

	links := page.Locator(o.Pager, browser.SelectorOptions{})
	total, err := links.Count()
	if err != nil {
		return nil, err
	}
	if o.MaxPages > 0 && total > o.MaxPages {
		total = o.MaxPages
	}
	for p := 1; p < total; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := links.Nth(p).Click(click); err != nil {
			return nil, err
		}
		if err := read(p + 1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// receive takes a value already sent on ch, or waits up to d for one.
// A zero d only looks at what already happened.
func receive[T any](ch <-chan T, d time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	default:
	}
	var zero T
	if d <= 0 {
		return zero, false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
		return zero, false
	}
}

func readValue(t browser.Locator, name string, source ReadSource) (string, error) {
	switch source {
	case "", ReadText:
		return t.TextContent()
	case ReadInnerText:
		return t.InnerText()
	case ReadValue:
		return t.InputValue()
	case ReadAttribute:
		if name == "" {
			return "", NewActionError("reading an attribute needs its name", nil).WithCode(ErrCodeInvalidOptions)
		}
		v, _, err := t.GetAttribute(name)
		return v, err
	}
	return "", NewActionError(fmt.Sprintf("unknown read source %q", source), nil).WithCode(ErrCodeInvalidOptions)
}

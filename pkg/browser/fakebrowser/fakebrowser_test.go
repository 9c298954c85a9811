package fakebrowser

import (
	"errors"
	"testing"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

func testDocument() (*Page, *Node, *Node) {
	save1 := &Node{Tag: "button", Text: "Save", ID: "save-1"}
	save2 := &Node{Tag: "button", Text: "Save", ID: "save-2", Classes: []string{"secondary"}}
	form := El("form",
		&Node{Tag: "input", Label: "Email", Placeholder: "you@example.com", Attrs: map[string]string{"type": "email"}},
		&Node{Tag: "input", Label: "Remember me", Checkable: true, Attrs: map[string]string{"type": "checkbox"}},
		save1,
		save2,
	)
	root := El("html", El("body", form, &Node{Tag: "img", Alt: "Company logo"}))
	return NewPage("https://app.test/", root), save1, save2
}

func TestRoleLookupIsLazyAndOrdered(t *testing.T) {
	page, save1, save2 := testDocument()

	loc := page.GetByRole("button", browser.RoleOptions{Name: "Save"})
	n, err := loc.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}

	if err := loc.First().Click(browser.ClickOptions{}); err != nil {
		t.Fatalf("first click error = %v", err)
	}
	if !save1.Did("click") || save2.Did("click") {
		t.Errorf("click landed on the wrong node: save1=%v save2=%v", save1.Events, save2.Events)
	}

	// A node added after the locator was built is still found.
	page.Root.Append(&Node{Tag: "button", Text: "Save"})
	if n, _ := loc.Count(); n != 3 {
		t.Errorf("Count() after append = %d, want 3", n)
	}
}

func TestStrictModeViolation(t *testing.T) {
	page, _, _ := testDocument()

	err := page.GetByText("Save", browser.TextOptions{}).Click(browser.ClickOptions{})
	if !errors.Is(err, ErrStrictMode) {
		t.Fatalf("expected strict mode violation, got %v", err)
	}

	err = page.GetByText("Missing", browser.TextOptions{}).Click(browser.ClickOptions{})
	if !errors.Is(err, ErrNoElement) {
		t.Fatalf("expected no element error, got %v", err)
	}
}

func TestAndOr(t *testing.T) {
	page, _, save2 := testDocument()

	both := page.GetByRole("button", browser.RoleOptions{}).And(page.Locator(".secondary", browser.SelectorOptions{}))
	nodes, err := both.(*Locator).Nodes()
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	if len(nodes) != 1 || nodes[0] != save2 {
		t.Fatalf("and resolved to %v, want save-2 only", nodes)
	}

	either := page.GetByText("Nope", browser.TextOptions{}).Or(page.GetByAltText("logo", browser.TextOptions{}))
	if n, _ := either.Count(); n != 1 {
		t.Errorf("or Count() = %d, want 1", n)
	}
}

func TestSelectorParsing(t *testing.T) {
	page, _, _ := testDocument()

	tests := []struct {
		selector string
		want     int
	}{
		{"button", 2},
		{"form button.secondary", 1},
		{"#save-1", 1},
		{`input[type="checkbox"]`, 1},
		{`button:text-is("Save")`, 2},
		{"body :has-text('Save')", 3},
	}
	for _, tt := range tests {
		n, err := page.Locator(tt.selector, browser.SelectorOptions{}).Count()
		if err != nil {
			t.Errorf("%s: %v", tt.selector, err)
			continue
		}
		if n != tt.want {
			t.Errorf("%s: Count() = %d, want %d", tt.selector, n, tt.want)
		}
	}

	if _, err := page.Locator("//td[@class]", browser.SelectorOptions{}).Count(); err == nil {
		t.Error("expected xpath to be rejected")
	}
}

func TestExpectEventCapturesSynchronousEvents(t *testing.T) {
	page, save1, _ := testDocument()
	popup := NewPage("https://app.test/popup", nil)
	save1.OnClick = func(p *Page) error {
		p.OpenPage(popup)
		return nil
	}

	ev, err := page.ExpectEvent(browser.EventPage, func() error {
		return page.Locator("#save-1", browser.SelectorOptions{}).Click(browser.ClickOptions{})
	}, browser.ExpectOptions{})
	if err != nil {
		t.Fatalf("ExpectEvent() error = %v", err)
	}
	if ev.Page != popup {
		t.Errorf("ExpectEvent() page = %v, want popup", ev.Page)
	}
	if page.ListenerCount(browser.EventPage) != 0 {
		t.Error("listener left armed after ExpectEvent returned")
	}

	// Without a listener the event is lost.
	if page.OpenPage(popup) {
		t.Error("event delivered with no listener armed")
	}
}

func TestExpectEventTimeout(t *testing.T) {
	page, _, _ := testDocument()
	start := time.Now()
	_, err := page.ExpectEvent(browser.EventDownload, nil, browser.ExpectOptions{Timeout: 10 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("ExpectEvent returned before its timeout")
	}
}

func TestOnceDialogDetach(t *testing.T) {
	page, _, _ := testDocument()

	var seen string
	detach := page.OnceDialog(func(d browser.Dialog) {
		seen = d.Message()
		_ = d.Accept("")
	})
	d := &Dialog{Kind: "confirm", Text: "Delete?"}
	page.OpenDialog(d)
	if seen != "Delete?" || !d.Accepted {
		t.Fatalf("dialog not handled: seen=%q accepted=%v", seen, d.Accepted)
	}
	detach()

	detach = page.OnceDialog(func(browser.Dialog) {})
	detach()
	if page.DialogHandlers() != 0 {
		t.Errorf("DialogHandlers() = %d, want 0", page.DialogHandlers())
	}

	d2 := &Dialog{Kind: "alert", Text: "Hi"}
	page.OpenDialog(d2)
	if !d2.Dismissed {
		t.Error("unhandled dialog should be dismissed")
	}
}

func TestExpectLocatorText(t *testing.T) {
	page := NewPage("https://app.test/", El("body", &Node{Tag: "p", ID: "msg", Text: "Other"}))
	loc := page.Locator("#msg", browser.SelectorOptions{})

	err := page.ExpectLocator(loc, browser.Check{Kind: browser.CheckText, Expected: "Expected"})
	var mismatch *browser.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if mismatch.Actual != "Other" {
		t.Errorf("Actual = %q, want Other", mismatch.Actual)
	}

	if err := page.ExpectLocator(loc, browser.Check{Kind: browser.CheckText, Expected: "Expected", Negate: true}); err != nil {
		t.Errorf("negated check should pass: %v", err)
	}
}

func TestKeyboardTypesIntoFocusedNode(t *testing.T) {
	page, _, _ := testDocument()
	email := page.GetByLabel("Email", browser.TextOptions{})
	if err := email.Focus(browser.InputOptions{}); err != nil {
		t.Fatalf("Focus() error = %v", err)
	}

	kb := page.Keyboard()
	if err := kb.Type("ada", browser.KeyOptions{}); err != nil {
		t.Fatalf("Type() error = %v", err)
	}
	if err := kb.InsertText("@example.test"); err != nil {
		t.Fatalf("InsertText() error = %v", err)
	}
	if err := kb.Press("Enter", browser.KeyOptions{}); err != nil {
		t.Fatalf("Press() error = %v", err)
	}
	if v, _ := email.InputValue(); v != "ada@example.test" {
		t.Errorf("value = %q", v)
	}
	if n := page.Focused(); !n.Did("press:Enter") {
		t.Errorf("focused node events = %v", n.Events)
	}
}

func TestMouseAndBringToFrontAreRecorded(t *testing.T) {
	page, _, _ := testDocument()
	m := page.Mouse()
	_ = m.Move(10, 20, browser.MouseOptions{Steps: 5})
	_ = m.Down(browser.MouseOptions{})
	_ = m.Up(browser.MouseOptions{Button: "right"})
	_ = m.Wheel(0, 300)
	if err := page.BringToFront(); err != nil {
		t.Fatalf("BringToFront() error = %v", err)
	}

	want := []string{"mouse.move 10,20", "mouse.down left", "mouse.up right", "mouse.wheel 0,300", "bringToFront https://app.test/"}
	got := page.Actions()
	if len(got) != len(want) {
		t.Fatalf("Actions() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, got[i], want[i])
		}
	}

	_ = page.Close()
	if err := page.BringToFront(); err == nil {
		t.Error("BringToFront on a closed page should fail")
	}
}

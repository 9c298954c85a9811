package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/browser/fakebrowser"
)

func locate(t *testing.T, core *Core, page browser.Page, s Strategy, value string) *Handle {
	t.Helper()
	h, err := core.Resolve(context.Background(), page, ResolutionRequest{Strategy: s, Value: value})
	if err != nil {
		t.Fatalf("Resolve(%s %q) error = %v", s.Name(), value, err)
	}
	return h
}

func TestCheckAndUncheck(t *testing.T) {
	page, nodes := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()
	box := locate(t, core, page, Label, "Remember me")

	res, err := core.Perform(ctx, page, ActionRequest{Verb: VerbCheck, Target: box})
	if err != nil || !res.Checked {
		t.Fatalf("check = %v, %v; want true, nil", res, err)
	}
	if !nodes["remember"].Checked {
		t.Error("checkbox was not checked")
	}

	res, err = core.Perform(ctx, page, ActionRequest{Verb: VerbUncheck, Target: box})
	if err != nil || res.Checked {
		t.Fatalf("uncheck = %v, %v; want false, nil", res, err)
	}
}

// A failed check reports false and a failed uncheck reports true. The
// asymmetry is deliberate: neither outcome reads as "confirmed checked"
// after a check attempt.
func TestCheckFallbackOnInternalFailure(t *testing.T) {
	page, nodes := formDocument()
	nodes["remember"].Fail = errors.New("element is detached from the DOM")
	ctx := context.Background()

	core, sink := newTestCore()
	box := locate(t, core, page, Label, "Remember me")

	res, err := core.Perform(ctx, page, ActionRequest{Verb: VerbCheck, Target: box})
	if err != nil {
		t.Fatalf("check must not fail on internal error: %v", err)
	}
	if res.Checked {
		t.Error("failed check reported true, want false")
	}

	res, err = core.Perform(ctx, page, ActionRequest{Verb: VerbUncheck, Target: box})
	if err != nil {
		t.Fatalf("uncheck must not fail on internal error: %v", err)
	}
	if !res.Checked {
		t.Error("failed uncheck reported false, want true")
	}

	if len(sink.errors()) < 2 {
		t.Errorf("fallbacks were not logged: %d error lines", len(sink.errors()))
	}
}

func TestSwitchToNewPageArmsListenerBeforeClick(t *testing.T) {
	page, nodes := formDocument()
	popup := fakebrowser.NewPage("https://app.test/report", nil)
	armed := false
	nodes["save1"].OnClick = func(p *fakebrowser.Page) error {
		armed = p.ListenerCount(browser.EventPage) == 1
		// The page opens synchronously, inside the click.
		p.OpenPage(popup)
		return nil
	}
	core, _ := newTestCore()
	target := locate(t, core, page, RawSelector, "#save-1")

	res, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbSwitchToNewPage, Target: target})
	if err != nil {
		t.Fatalf("switchToNewPage error = %v", err)
	}
	if !armed {
		t.Error("listener was not armed when the click fired")
	}
	if res.Page != popup {
		t.Errorf("switchToNewPage returned %v, want the popup", res.Page)
	}
	if res.Value != "https://app.test/report" {
		t.Errorf("result url = %q", res.Value)
	}
	if page.ListenerCount(browser.EventPage) != 0 {
		t.Error("listener still armed after the action")
	}
}

func TestSwitchToNewPageFailsWithoutNewPage(t *testing.T) {
	page, _ := formDocument()
	core, _ := newTestCore()
	target := locate(t, core, page, RawSelector, "#save-1")

	_, err := core.Perform(context.Background(), page, ActionRequest{
		Verb:    VerbSwitchToNewPage,
		Target:  target,
		Options: ActionOptions{Timeout: 10 * time.Millisecond},
	})
	if !errors.Is(err, &EngineError{Class: ErrorClassAction, Code: ErrCodeNoNewPage}) {
		t.Fatalf("got %v, want no-new-page action error", err)
	}
}

func TestDownloadFile(t *testing.T) {
	page, nodes := formDocument()
	nodes["save1"].OnClick = func(p *fakebrowser.Page) error {
		p.StartDownload(&fakebrowser.Download{URL: "https://app.test/export.csv", Filename: "export.csv", Data: []byte("a,b\n")})
		return nil
	}
	core, _ := newTestCore()
	target := locate(t, core, page, RawSelector, "#save-1")
	dir := t.TempDir()

	res, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbDownloadFile, Target: target, Path: dir})
	if err != nil {
		t.Fatalf("downloadFile error = %v", err)
	}
	want := filepath.Join(dir, "export.csv")
	if res.Path != want {
		t.Errorf("Path = %q, want %q", res.Path, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "a,b\n" {
		t.Errorf("saved file = %q, %v", data, err)
	}
}

func TestHandleDialogDetachesHandler(t *testing.T) {
	page, nodes := formDocument()
	dialog := &fakebrowser.Dialog{Kind: "prompt", Text: "Rename to?"}
	nodes["save1"].OnClick = func(p *fakebrowser.Page) error {
		p.OpenDialog(dialog)
		return nil
	}
	core, _ := newTestCore(WithDefaults(Defaults{ActionTimeout: 50 * time.Millisecond}))
	target := locate(t, core, page, RawSelector, "#save-1")
	ctx := context.Background()

	res, err := core.Perform(ctx, page, ActionRequest{
		Verb:    VerbHandleDialog,
		Target:  target,
		Value:   "Quarterly",
		Options: ActionOptions{Dialog: DialogOptions{Response: DialogPrompt}},
	})
	if err != nil {
		t.Fatalf("handleDialog error = %v", err)
	}
	if res.Value != "Rename to?" {
		t.Errorf("dialog message = %q", res.Value)
	}
	if !dialog.Accepted || dialog.PromptText != "Quarterly" {
		t.Errorf("dialog accepted=%v prompt=%q", dialog.Accepted, dialog.PromptText)
	}

	// No dialog this time: the handler must still be removed.
	nodes["save1"].OnClick = nil
	if _, err := core.Perform(ctx, page, ActionRequest{Verb: VerbHandleDialog, Target: target}); !IsActionError(err) {
		t.Errorf("handleDialog without a dialog: got %v, want action error", err)
	}
	if n := page.DialogHandlers(); n != 0 {
		t.Errorf("DialogHandlers() = %d after repeated calls, want 0", n)
	}
}

func TestHandleDialogAfterMissedDialog(t *testing.T) {
	page, nodes := formDocument()
	core, _ := newTestCore(WithDefaults(Defaults{ActionTimeout: 50 * time.Millisecond}))
	target := locate(t, core, page, RawSelector, "#save-1")
	ctx := context.Background()

	if _, err := core.Perform(ctx, page, ActionRequest{Verb: VerbHandleDialog, Target: target}); !IsActionError(err) {
		t.Fatalf("first handleDialog without a dialog: got %v, want action error", err)
	}
	if n := page.DialogHandlers(); n != 0 {
		t.Fatalf("DialogHandlers() = %d after a missed dialog, want 0", n)
	}

	dialog := &fakebrowser.Dialog{Kind: "confirm", Text: "Discard changes?"}
	nodes["save1"].OnClick = func(p *fakebrowser.Page) error {
		p.OpenDialog(dialog)
		return nil
	}
	res, err := core.Perform(ctx, page, ActionRequest{
		Verb:    VerbHandleDialog,
		Target:  target,
		Options: ActionOptions{Dialog: DialogOptions{Response: DialogDismiss}},
	})
	if err != nil {
		t.Fatalf("second handleDialog error = %v", err)
	}
	if res.Value != "Discard changes?" || !dialog.Dismissed {
		t.Errorf("second call answered %q dismissed=%v, want its own dismissal", res.Value, dialog.Dismissed)
	}
}

func TestHandleDialogWaitsForDefaultActionTimeout(t *testing.T) {
	page, nodes := formDocument()
	dialog := &fakebrowser.Dialog{Kind: "alert", Text: "Saved"}
	nodes["save1"].OnClick = func(p *fakebrowser.Page) error {
		go func() {
			time.Sleep(20 * time.Millisecond)
			p.OpenDialog(dialog)
		}()
		return nil
	}
	core, _ := newTestCore(WithDefaults(Defaults{ActionTimeout: 2 * time.Second}))
	target := locate(t, core, page, RawSelector, "#save-1")

	res, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbHandleDialog, Target: target})
	if err != nil {
		t.Fatalf("handleDialog with a late dialog: %v", err)
	}
	if res.Value != "Saved" || !dialog.Accepted {
		t.Errorf("late dialog message = %q accepted=%v", res.Value, dialog.Accepted)
	}
}

func TestUploadFile(t *testing.T) {
	upload := &fakebrowser.Node{Tag: "input", ID: "file", Attrs: map[string]string{"type": "file"}}
	chooser := &fakebrowser.FileChooser{}
	picker := &fakebrowser.Node{Tag: "button", Text: "Attach", OnClick: func(p *fakebrowser.Page) error {
		p.OpenFileChooser(chooser)
		return nil
	}}
	page := fakebrowser.NewPage("https://app.test/", fakebrowser.El("body", upload, picker))
	core, _ := newTestCore()
	ctx := context.Background()

	input := locate(t, core, page, RawSelector, "#file")
	if _, err := core.Perform(ctx, page, ActionRequest{Verb: VerbUploadFile, Target: input, Values: []string{"a.pdf"}}); err != nil {
		t.Fatalf("uploadFile(input) error = %v", err)
	}
	if !reflect.DeepEqual(upload.Files, []string{"a.pdf"}) {
		t.Errorf("input files = %v", upload.Files)
	}

	button := locate(t, core, page, Role, "button")
	_, err := core.Perform(ctx, page, ActionRequest{
		Verb:    VerbUploadFile,
		Target:  button,
		Values:  []string{"b.pdf", "c.pdf"},
		Options: ActionOptions{Upload: UploadOptions{Via: UploadChooser}},
	})
	if err != nil {
		t.Fatalf("uploadFile(chooser) error = %v", err)
	}
	if !reflect.DeepEqual(chooser.Files, []string{"b.pdf", "c.pdf"}) {
		t.Errorf("chooser files = %v", chooser.Files)
	}
	if page.FileChooserHandlers() != 0 {
		t.Error("file chooser handler left attached")
	}
}

func TestPerformElementVerbs(t *testing.T) {
	page, nodes := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()

	email := locate(t, core, page, Label, "Email")
	country := locate(t, core, page, Label, "Country")
	save1 := locate(t, core, page, RawSelector, "#save-1")
	save2 := locate(t, core, page, RawSelector, "#save-2")

	tests := []struct {
		req   ActionRequest
		node  *fakebrowser.Node
		event string
	}{
		{ActionRequest{Verb: VerbFill, Target: email, Value: "ada@example.com"}, nodes["email"], "fill:ada@example.com"},
		{ActionRequest{Verb: VerbClear, Target: email}, nodes["email"], "fill:"},
		{ActionRequest{Verb: VerbType, Target: email, Value: "bob"}, nodes["email"], "type:bob"},
		{ActionRequest{Verb: VerbPressKey, Target: email, Value: "Enter"}, nodes["email"], "press:Enter"},
		{ActionRequest{Verb: VerbFocus, Target: email}, nodes["email"], "focus"},
		{ActionRequest{Verb: VerbHover, Target: save1}, nodes["save1"], "hover"},
		{ActionRequest{Verb: VerbDoubleClick, Target: save1}, nodes["save1"], "dblclick"},
		{ActionRequest{Verb: VerbTap, Target: save1}, nodes["save1"], "tap"},
		{ActionRequest{Verb: VerbScrollIntoView, Target: save1}, nodes["save1"], "scroll"},
		{ActionRequest{Verb: VerbDragTo, Target: save1, DragTarget: save2}, nodes["save2"], "drop"},
		{ActionRequest{Verb: VerbSelectOption, Target: country, Values: []string{"de"}}, nodes["country"], "select:de"},
	}
	for _, tt := range tests {
		if _, err := core.Perform(ctx, page, tt.req); err != nil {
			t.Errorf("%s: %v", tt.req.Verb, err)
			continue
		}
		if !tt.node.Did(tt.event) {
			t.Errorf("%s: node events %v, want %q", tt.req.Verb, tt.node.Events, tt.event)
		}
	}

	res, err := core.Perform(ctx, page, ActionRequest{Verb: VerbSelectOption, Target: country, Value: "nl"})
	if err != nil || !reflect.DeepEqual(res.Selected, []string{"nl"}) {
		t.Errorf("selectOption = %v, %v; want [nl]", res, err)
	}

	res, err = core.Perform(ctx, page, ActionRequest{Verb: VerbReadValue, Target: email, Options: ActionOptions{Read: ReadOptions{Source: ReadValue}}})
	if err != nil || res.Value != "bob" {
		t.Errorf("readValue(value) = %v, %v; want bob", res, err)
	}
	res, err = core.Perform(ctx, page, ActionRequest{Verb: VerbReadValue, Target: email, Value: "placeholder", Options: ActionOptions{Read: ReadOptions{Source: ReadAttribute}}})
	if err != nil || res.Value != "you@example.com" {
		t.Errorf("readValue(attribute) = %v, %v", res, err)
	}
}

func TestNavigate(t *testing.T) {
	page, _ := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()

	nav := func(dir NavigateDirection, url string) {
		t.Helper()
		_, err := core.Perform(ctx, page, ActionRequest{
			Verb:    VerbNavigate,
			Value:   url,
			Options: ActionOptions{Navigate: NavigateOptions{Direction: dir}},
		})
		if err != nil {
			t.Fatalf("navigate %s %s: %v", dir, url, err)
		}
	}

	nav("", "https://app.test/profile")
	nav(NavigateBack, "")
	if page.URL() != "https://app.test/settings" {
		t.Errorf("after back URL = %s", page.URL())
	}
	nav(NavigateForward, "")
	if page.URL() != "https://app.test/profile" {
		t.Errorf("after forward URL = %s", page.URL())
	}
	nav(NavigateRefresh, "")

	_, err := core.Perform(ctx, page, ActionRequest{Verb: VerbNavigate})
	if !IsActionError(err) {
		t.Errorf("navigate without direction or url: got %v", err)
	}
}

func TestActionFailureIsWrappedAndLogged(t *testing.T) {
	page, nodes := formDocument()
	nodes["save1"].Disabled = true
	core, sink := newTestCore()
	target := locate(t, core, page, RawSelector, "#save-1")

	_, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbClick, Target: target})
	if !IsActionError(err) {
		t.Fatalf("got %v, want action error", err)
	}
	if !errors.Is(err, fakebrowser.ErrNotEnabled) {
		t.Errorf("driver cause lost: %v", err)
	}
	var ee *EngineError
	errors.As(err, &ee)
	if ee.Operation != string(VerbClick) || ee.Target != target.Describe() {
		t.Errorf("error context = operation %q target %q", ee.Operation, ee.Target)
	}

	lines := sink.errors()
	if len(lines) == 0 {
		t.Fatal("failure was not logged")
	}
	last := lines[len(lines)-1]
	if last.fields["cause"] == nil || last.fields["target"] != target.Describe() {
		t.Errorf("logged fields = %v", last.fields)
	}
}

func TestPerformRejectsBadRequests(t *testing.T) {
	page, _ := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()
	save := locate(t, core, page, RawSelector, "#save-1")

	tests := []struct {
		name string
		req  ActionRequest
	}{
		{"unknown verb", ActionRequest{Verb: "juggle", Target: save}},
		{"missing target", ActionRequest{Verb: VerbClick}},
		{"bad button", ActionRequest{Verb: VerbClick, Target: save, Options: ActionOptions{Click: browser.ClickOptions{Button: "side"}}}},
		{"drag without drop target", ActionRequest{Verb: VerbDragTo, Target: save}},
		{"press without key", ActionRequest{Verb: VerbPressKey, Target: save}},
		{"keyboard without value", ActionRequest{Verb: VerbKeyboard}},
		{"bad mouse action", ActionRequest{Verb: VerbMouse, Options: ActionOptions{Mouse: MouseOptions{Action: "spin"}}}},
	}
	for _, tt := range tests {
		_, err := core.Perform(ctx, page, tt.req)
		if !errors.Is(err, &EngineError{Class: ErrorClassAction, Code: ErrCodeInvalidOptions}) {
			t.Errorf("%s: got %v, want invalid options action error", tt.name, err)
		}
	}
}

func TestParseVerbAliases(t *testing.T) {
	tests := map[string]Verb{
		"click":         VerbClick,
		"dblclick":      VerbDoubleClick,
		"DropDown":      VerbSelectOption,
		"retrieveValue": VerbReadValue,
		"newPage":       VerbSwitchToNewPage,
		"mouseAction":   VerbMouse,
		"bringToFront":  VerbBringToFront,
		"readTable":     VerbPaginateTable,
	}
	for in, want := range tests {
		got, err := ParseVerb(in)
		if err != nil || got != want {
			t.Errorf("ParseVerb(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
}

func TestMouseVerb(t *testing.T) {
	page, _ := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()

	for _, o := range []MouseOptions{
		{Action: MouseMove, X: 40, Y: 60, MouseOptions: browser.MouseOptions{Steps: 4}},
		{Action: MouseDown},
		{Action: MouseUp},
		{X: 40, Y: 60, MouseOptions: browser.MouseOptions{Button: "right"}},
		{Action: MouseDblclick, X: 1, Y: 2},
		{Action: MouseWheel, Y: 500},
	} {
		if _, err := core.Perform(ctx, page, ActionRequest{Verb: VerbMouse, Options: ActionOptions{Mouse: o}}); err != nil {
			t.Fatalf("mouse %s: %v", o.Action, err)
		}
	}
	want := []string{
		"mouse.move 40,60", "mouse.down left", "mouse.up left",
		"mouse.click 40,60 right", "mouse.dblclick 1,2 left", "mouse.wheel 0,500",
	}
	if got := page.Actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Actions() = %v, want %v", got, want)
	}

	if _, err := core.Perform(ctx, nil, ActionRequest{Verb: VerbMouse}); !IsActionError(err) {
		t.Errorf("mouse without a page: got %v", err)
	}
}

func TestKeyboardVerb(t *testing.T) {
	page, nodes := formDocument()
	core, _ := newTestCore()
	ctx := context.Background()
	email := locate(t, core, page, Label, "Email")
	if _, err := core.Perform(ctx, page, ActionRequest{Verb: VerbFocus, Target: email}); err != nil {
		t.Fatalf("focus: %v", err)
	}

	steps := []struct {
		action KeyboardAction
		value  string
	}{
		{"", "ada"},
		{KeyboardInsertText, "@example.test"},
		{KeyboardDown, "Shift"},
		{KeyboardUp, "Shift"},
		{KeyboardPress, "Enter"},
	}
	for _, st := range steps {
		_, err := core.Perform(ctx, page, ActionRequest{
			Verb:    VerbKeyboard,
			Value:   st.value,
			Options: ActionOptions{Keyboard: KeyboardOptions{Action: st.action}},
		})
		if err != nil {
			t.Fatalf("keyboard %s %q: %v", st.action, st.value, err)
		}
	}
	if nodes["email"].Value != "ada@example.test" {
		t.Errorf("email value = %q", nodes["email"].Value)
	}
	for _, ev := range []string{"keydown:Shift", "keyup:Shift", "press:Enter"} {
		if !nodes["email"].Did(ev) {
			t.Errorf("email events %v, want %q", nodes["email"].Events, ev)
		}
	}
}

func TestBringToFront(t *testing.T) {
	page, _ := formDocument()
	core, _ := newTestCore()

	if _, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbBringToFront}); err != nil {
		t.Fatalf("bringToFront: %v", err)
	}
	if got := page.Actions(); len(got) != 1 || got[0] != "bringToFront https://app.test/settings" {
		t.Errorf("Actions() = %v", got)
	}

	_ = page.Close()
	if _, err := core.Perform(context.Background(), page, ActionRequest{Verb: VerbBringToFront}); !IsActionError(err) {
		t.Errorf("bringToFront on a closed page: got %v", err)
	}
}

func tableRow(cells ...string) *fakebrowser.Node {
	row := &fakebrowser.Node{Tag: "tr"}
	for _, c := range cells {
		row.Append(&fakebrowser.Node{Tag: "td", Text: c})
	}
	return row
}

func TestPaginateTable(t *testing.T) {
	pages := [][]*fakebrowser.Node{
		{tableRow("Ada", "admin"), tableRow("Bob", "viewer")},
		{tableRow("Cy", "editor")},
		{tableRow("Di", "viewer"), tableRow("Ed", "admin")},
	}
	body := fakebrowser.El("tbody", pages[0]...)
	table := fakebrowser.El("table",
		fakebrowser.El("thead", fakebrowser.El("tr", &fakebrowser.Node{Tag: "th", Text: "Name"}, &fakebrowser.Node{Tag: "th", Text: "Role"})),
		body,
	)
	show := func(i int) func(*fakebrowser.Page) error {
		return func(*fakebrowser.Page) error {
			for len(body.Children) > 0 {
				body.Children[0].Remove()
			}
			body.Append(pages[i]...)
			return nil
		}
	}
	pager := &fakebrowser.Node{Tag: "ul", ID: "pagination"}
	for i := range pages {
		pager.Append(fakebrowser.El("li", &fakebrowser.Node{Tag: "a", Text: fmt.Sprint(i + 1), OnClick: show(i)}))
	}
	page := fakebrowser.NewPage("https://app.test/users", fakebrowser.El("body", table, pager))
	core, sink := newTestCore()
	ctx := context.Background()
	users := locate(t, core, page, RawSelector, "table")

	res, err := core.Perform(ctx, page, ActionRequest{
		Verb:    VerbPaginateTable,
		Target:  users,
		Options: ActionOptions{Table: TableOptions{Pager: "#pagination li a"}},
	})
	if err != nil {
		t.Fatalf("paginateTable: %v", err)
	}
	want := [][]string{{"Ada", "admin"}, {"Bob", "viewer"}, {"Cy", "editor"}, {"Di", "viewer"}, {"Ed", "admin"}}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Rows = %v, want %v", res.Rows, want)
	}
	if sink.find("info", "Table page read") < 0 {
		t.Error("table pages were not logged")
	}

	show(0)(page)
	res, err = core.Perform(ctx, page, ActionRequest{
		Verb:    VerbPaginateTable,
		Target:  users,
		Options: ActionOptions{Table: TableOptions{Pager: "#pagination li a", MaxPages: 2}},
	})
	if err != nil || len(res.Rows) != 3 {
		t.Errorf("paginateTable(maxPages=2) = %v, %v; want 3 rows", res, err)
	}

	show(0)(page)
	res, err = core.Perform(ctx, page, ActionRequest{Verb: VerbPaginateTable, Target: users})
	if err != nil || len(res.Rows) != 2 {
		t.Errorf("paginateTable without a pager = %v, %v; want the 2 rows shown", res, err)
	}
}

package scenario

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/openfroyo/pagecore/pkg/browser/fakebrowser"
	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/engine"
	"github.com/openfroyo/pagecore/pkg/stores"
)

type loginPage struct {
	page     *fakebrowser.Page
	email    *fakebrowser.Node
	greeting *fakebrowser.Node
	submit   *fakebrowser.Node
}

func newLoginPage() *loginPage {
	lp := &loginPage{
		email:    &fakebrowser.Node{Tag: "input", Label: "Email", Attrs: map[string]string{"type": "email"}},
		greeting: &fakebrowser.Node{Tag: "p", TestID: "greeting"},
		submit:   &fakebrowser.Node{Tag: "button", Text: "Continue"},
	}
	lp.submit.OnClick = func(p *fakebrowser.Page) error {
		lp.greeting.Text = "Hello " + lp.email.Value
		p.SendRequest("POST", "https://app.test/api/session")
		return nil
	}
	root := fakebrowser.El("html", fakebrowser.El("body",
		&fakebrowser.Node{Tag: "h1", Text: "Sign in"},
		lp.email,
		lp.submit,
		lp.greeting,
	))
	lp.page = fakebrowser.NewPage("https://app.test/login", root)
	return lp
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sc
}

func TestRunPasses(t *testing.T) {
	lp := newLoginPage()
	sc := mustParse(t, `
name: login
steps:
  - action: fill
    target: {strategy: label, value: Email}
    value: ada@example.com
  - title: Submit and wait for the session request
    wait: request
    pattern: "**/api/session"
    trigger:
      action: click
      target: {strategy: role, value: button, options: {name: Continue}}
  - action: readValue
    target: {strategy: testId, value: greeting}
    save: greeting
  - assert: toBe
    actual: ${greeting}
    expected: Hello ada@example.com
  - assert: toHaveText
    target: {strategy: testId, value: greeting}
    expected: Hello ${greeting}
    mode: not
`)

	report, err := NewRunner(nil, nil).Run(context.Background(), lp.page, sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Passed() || report.Executed != 5 || report.Total != 5 {
		t.Errorf("report = %+v", report)
	}
	if report.RunID == "" {
		t.Error("expected a run ID")
	}
	if !lp.submit.Did("click") {
		t.Error("trigger click did not run")
	}
}

func TestRunSoftFailuresDoNotStop(t *testing.T) {
	lp := newLoginPage()
	sc := mustParse(t, `
name: soft
steps:
  - assert: toHaveText
    target: {strategy: role, value: heading}
    expected: Welcome
    mode: soft
  - assert: toBeVisible
    target: {strategy: label, value: Email}
    mode: soft
  - action: fill
    target: {strategy: label, value: Email}
    value: grace@example.com
`)

	report, err := NewRunner(nil, nil).Run(context.Background(), lp.page, sc)
	if err != nil {
		t.Fatalf("soft failures must not fail the run: %v", err)
	}
	if report.Status != stores.RunStatusSoftFailed {
		t.Errorf("Status = %s, want soft_failed", report.Status)
	}
	if report.Executed != 3 || len(report.SoftFailures) != 1 {
		t.Fatalf("executed %d steps with %d soft failures", report.Executed, len(report.SoftFailures))
	}
	if f := report.SoftFailures[0]; f.Operation != string(engine.ToHaveText) || !engine.IsAssertionRecorded(f) {
		t.Errorf("soft failure = %v", f)
	}
	if lp.email.Value != "grace@example.com" {
		t.Errorf("step after the soft failure did not run")
	}

	var out strings.Builder
	if err := report.WriteText(&out); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if !strings.Contains(out.String(), "soft 1:") {
		t.Errorf("summary does not list the soft failure:\n%s", out.String())
	}
}

func TestRunStopsAtFirstHardFailure(t *testing.T) {
	lp := newLoginPage()
	sc := mustParse(t, `
name: hard
steps:
  - action: click
    target: {strategy: role, value: button, options: {name: Register}}
    timeout: 50ms
  - action: fill
    target: {strategy: label, value: Email}
    value: never@example.com
`)

	report, err := NewRunner(nil, nil).Run(context.Background(), lp.page, sc)
	if err == nil {
		t.Fatal("expected the missing button to fail the run")
	}
	if report.Status != stores.RunStatusFailed || report.Failure == nil || report.Failure.Index != 0 {
		t.Fatalf("report = %+v", report)
	}
	if !engine.IsActionError(report.Failure.Err) {
		t.Errorf("failure class = %s, want action", engine.ClassOf(report.Failure.Err))
	}
	if lp.email.Value != "" {
		t.Error("steps after a hard failure must not run")
	}
}

func TestRunFollowsNewPage(t *testing.T) {
	child := fakebrowser.NewPage("https://app.test/help", fakebrowser.El("body", &fakebrowser.Node{Tag: "h1", Text: "Help"}))
	child.SetTitle("Help center")
	help := &fakebrowser.Node{Tag: "a", Text: "Help", OnClick: func(p *fakebrowser.Page) error {
		p.OpenPage(child)
		return nil
	}}
	page := fakebrowser.NewPage("https://app.test/", fakebrowser.El("body", help))

	sc := mustParse(t, `
name: help
steps:
  - action: switchToNewPage
    target: {strategy: role, value: link, options: {name: Help}}
  - assert: toHaveTitle
    expected: Help center
`)
	if _, err := NewRunner(nil, nil).Run(context.Background(), page, sc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunPageInputAndTables(t *testing.T) {
	lp := newLoginPage()
	table := fakebrowser.El("table", fakebrowser.El("tbody",
		fakebrowser.El("tr", &fakebrowser.Node{Tag: "td", Text: "Ada"}, &fakebrowser.Node{Tag: "td", Text: "admin"}),
		fakebrowser.El("tr", &fakebrowser.Node{Tag: "td", Text: "Bob"}, &fakebrowser.Node{Tag: "td", Text: "viewer"}),
	))
	lp.page.Root.Children[0].Append(table)

	sc := mustParse(t, `
name: page input
steps:
  - action: focus
    target: {strategy: label, value: Email}
  - action: keyboard
    value: grace@example.com
  - action: keyboard
    value: Enter
    options: {action: press}
  - action: mouse
    options: {action: wheel, x: 0, y: 400}
  - action: bringToFront
  - action: paginateTable
    target: {strategy: css, value: table}
    save: users
  - assert: toHaveLength
    actual: ${users}
    expected: 2
`)
	report, err := NewRunner(nil, nil).Run(context.Background(), lp.page, sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Executed != 7 {
		t.Errorf("executed %d steps, want 7", report.Executed)
	}
	if lp.email.Value != "grace@example.com" || !lp.email.Did("press:Enter") {
		t.Errorf("email value %q events %v", lp.email.Value, lp.email.Events)
	}
	actions := strings.Join(lp.page.Actions(), "\n")
	if !strings.Contains(actions, "mouse.wheel 0,400") || !strings.Contains(actions, "bringToFront") {
		t.Errorf("actions = %s", actions)
	}
}

func TestRunNavigatesRelativeToBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.BaseURL = "https://shop.test/app/"
	page := fakebrowser.NewPage("about:blank", nil)

	sc := mustParse(t, `
name: nav
url: cart
steps:
  - action: navigate
    value: /checkout
  - assert: toHaveURL
    expected: https://shop.test/checkout
`)
	if _, err := NewRunner(cfg, nil).Run(context.Background(), page, sc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	actions := page.Actions()
	if len(actions) < 2 || actions[0] != "goto https://shop.test/app/cart" {
		t.Errorf("actions = %v", actions)
	}
}

func TestRunCalendar(t *testing.T) {
	label := &fakebrowser.Node{Tag: "span", ID: "month", Text: "March 2025"}
	var picked string
	shown := 3
	pager := func(delta int) func(*fakebrowser.Page) error {
		return func(*fakebrowser.Page) error {
			shown += delta
			label.Text = [...]string{"", "January", "February", "March", "April", "May", "June"}[shown] + " 2025"
			return nil
		}
	}
	row := fakebrowser.El("tr")
	for day := 1; day <= 28; day++ {
		d := strconv.Itoa(day)
		row.Append(&fakebrowser.Node{Tag: "td", Classes: []string{"day"}, Text: d, OnClick: func(*fakebrowser.Page) error {
			picked = label.Text + " " + d
			return nil
		}})
	}
	page := fakebrowser.NewPage("https://app.test/booking", fakebrowser.El("body",
		&fakebrowser.Node{Tag: "button", ID: "prev", Text: "<", OnClick: pager(-1)},
		label,
		&fakebrowser.Node{Tag: "button", ID: "next", Text: ">", OnClick: pager(1)},
		fakebrowser.El("table", row),
	))

	sc := mustParse(t, `
name: booking
steps:
  - calendar:
      label: {strategy: css, value: "#month"}
      previous: {strategy: css, value: "#prev"}
      next: {strategy: css, value: "#next"}
      date: "2025-05-14"
`)
	if _, err := NewRunner(nil, nil).Run(context.Background(), page, sc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if picked != "May 2025 14" {
		t.Errorf("picked %q", picked)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	lp := newLoginPage()
	sc := mustParse(t, `
name: cancelled
steps:
  - action: focus
    target: {strategy: label, value: Email}
`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(nil, nil).Run(ctx, lp.page, sc)
	if err == nil {
		t.Fatal("expected a cancelled run to return an error")
	}
	if report.Status != stores.RunStatusCancelled || report.Executed != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestSoftCollector(t *testing.T) {
	c := NewSoftCollector()
	c.RecordSoftFailure(context.Background(), engine.NewAssertionRecorded("first", nil))
	c.RecordSoftFailure(context.Background(), engine.NewAssertionRecorded("second", nil))

	got := c.Failures()
	if c.Len() != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Fatalf("Failures() = %v", got)
	}
	got[0] = nil
	if c.Failures()[0] == nil {
		t.Error("Failures() must return a copy")
	}
}

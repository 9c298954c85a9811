package pwbrowser

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/config"
)

func TestMilliseconds(t *testing.T) {
	if ms(0) != nil || ms(-time.Second) != nil {
		t.Error("unset timeouts must stay nil")
	}
	if got := ms(1500 * time.Millisecond); got == nil || *got != 1500 {
		t.Errorf("ms(1.5s) = %v", got)
	}
}

func TestOptionalValues(t *testing.T) {
	if optText("") != nil || optString("") != nil || optBool(false) != nil {
		t.Error("empty options must be nil")
	}
	if v, ok := optText("Save").(string); !ok || v != "Save" {
		t.Errorf("optText() = %v", optText("Save"))
	}
	if level(0) != nil || *level(2) != 2 {
		t.Error("level() mismatch")
	}
	button, mods := clickOptions(browser.ClickOptions{Button: "right", Modifiers: []string{"Shift", "Alt"}})
	if button == nil || string(*button) != "right" || len(mods) != 2 {
		t.Errorf("clickOptions() = %v, %v", button, mods)
	}
}

func TestExpectedConversions(t *testing.T) {
	if got := values([]string{"a", "b"}); len(got) != 2 || got[1] != "b" {
		t.Errorf("values() = %v", got)
	}
	if got := values("only"); len(got) != 1 {
		t.Errorf("values(scalar) = %v", got)
	}
	for _, in := range []any{3, int64(3), 3.0, "3"} {
		if n, err := count(in); err != nil || n != 3 {
			t.Errorf("count(%#v) = %d, %v", in, n, err)
		}
	}
	if _, err := count(true); err == nil {
		t.Error("count(bool) should fail")
	}
}

func TestMismatchWrapsAssertionErrors(t *testing.T) {
	check := browser.Check{Kind: browser.CheckText, Expected: "Saved"}
	if mismatch(check, nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	var me *browser.MismatchError
	if err := mismatch(check, errors.New("Locator expected to have text")); !errors.As(err, &me) || me.Check.Kind != browser.CheckText {
		t.Errorf("mismatch() = %v", err)
	}
}

func TestDescribeFilter(t *testing.T) {
	visible := true
	got := describeFilter(browser.FilterOptions{HasText: "Row", Visible: &visible})
	if got != `filter(hasText="Row", visible=true)` {
		t.Errorf("describeFilter() = %s", got)
	}
}

// pwLocator lets stubLocator embed playwright.Locator without the field
// name colliding with the interface's Locator method.
type pwLocator = playwright.Locator

// stubLocator answers Count and Nth; every other Playwright call panics.
type stubLocator struct {
	pwLocator
	name  string
	count int
}

func (s *stubLocator) Count() (int, error) { return s.count, nil }

func (s *stubLocator) Nth(i int) playwright.Locator {
	return &stubLocator{name: fmt.Sprintf("%s[%d]", s.name, i), count: 1}
}

func TestOrIsFirstMatchAtUse(t *testing.T) {
	primary := &stubLocator{name: "primary"}
	fallback := &stubLocator{name: "fallback", count: 2}
	or := newLocator(primary, "primary").Or(newLocator(fallback, "fallback")).(*Locator)

	if got := or.pw(); got != playwright.Locator(fallback) {
		t.Fatalf("or() with an empty primary = %v, want fallback", got)
	}
	primary.count = 1
	if got := or.pw(); got != playwright.Locator(primary) {
		t.Errorf("or() once primary matches = %v, want primary", got)
	}
	if n, _ := or.Count(); n != 1 {
		t.Errorf("Count() = %d, want the primary count only", n)
	}

	nth := or.Nth(1).(*Locator)
	primary.count = 0
	if got := nth.pw().(*stubLocator).name; got != "fallback[1]" {
		t.Errorf("or().nth(1) = %s, want fallback[1]", got)
	}
	if or.Describe() != "primary.or(fallback)" {
		t.Errorf("Describe() = %s", or.Describe())
	}
}

// TestSessionAgainstRealBrowser needs installed Playwright browsers and runs
// only when PAGECORE_PLAYWRIGHT is set.
func TestSessionAgainstRealBrowser(t *testing.T) {
	if os.Getenv("PAGECORE_PLAYWRIGHT") == "" {
		t.Skip("set PAGECORE_PLAYWRIGHT=1 to run against a real browser")
	}
	cfg := config.Default().Browser
	s, err := Launch(cfg)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer s.Close()

	page, err := s.NewPage(800, 600)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	defer page.Close()

	if err := page.Goto(`data:text/html,<h1>Hi</h1><button title="save">Save</button>`, browser.NavigateOptions{}); err != nil {
		t.Fatalf("Goto() error = %v", err)
	}
	if err := page.ExpectLocator(page.GetByRole("heading", browser.RoleOptions{}), browser.Check{Kind: browser.CheckText, Expected: "Hi"}); err != nil {
		t.Errorf("heading text: %v", err)
	}
	v, ok, err := page.GetByRole("button", browser.RoleOptions{Name: "Save"}).GetAttribute("title")
	if err != nil || !ok || v != "save" {
		t.Errorf("GetAttribute() = %q, %v, %v", v, ok, err)
	}
	if _, ok, _ := page.GetByRole("button", browser.RoleOptions{}).GetAttribute("data-missing"); ok {
		t.Error("missing attribute reported present")
	}
}

package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/pagecore/pkg/config"
)

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(`
name: checkout
url: /cart
viewport: {width: 1280, height: 720}
steps:
  - title: Pay
    action: click
    target:
      strategy: role
      value: button
      options: {name: Pay, exact: true}
      combinator: filter
      filter: {hasText: Pay}
    timeout: 2s
  - wait: timeout
    duration: 250ms
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sc.Name != "checkout" || sc.URL != "/cart" || sc.Viewport.Width != 1280 {
		t.Errorf("scenario = %+v", sc)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("len(Steps) = %d", len(sc.Steps))
	}
	pay := sc.Steps[0]
	if pay.Kind() != "action" || pay.Describe() != "Pay" || pay.Timeout != 2*time.Second {
		t.Errorf("step 0 = %+v", pay)
	}
	if pay.Target.Combinator != "filter" || pay.Target.Filter["hasText"] != "Pay" {
		t.Errorf("target = %+v", pay.Target)
	}
	if sc.Steps[1].Duration != 250*time.Millisecond || sc.Steps[1].Describe() != "wait timeout" {
		t.Errorf("step 1 = %+v", sc.Steps[1])
	}
}

func TestParseUnquotedCalendarDate(t *testing.T) {
	sc, err := Parse([]byte(`
name: booking
steps:
  - calendar:
      label: {strategy: css, value: .month}
      previous: {strategy: css, value: .prev}
      next: {strategy: css, value: .next}
      date: 2026-03-14
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := sc.Steps[0].Calendar.Date; got != "2026-03-14" {
		t.Errorf("Calendar.Date = %q, want 2026-03-14", got)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no name", "steps: [{action: click, target: {strategy: text, value: Go}}]", "name"},
		{"no steps", "name: empty\nsteps: []", "steps"},
		{"bad mode", "name: x\nsteps: [{assert: toBe, mode: maybe}]", "mode"},
		{"bad duration", "name: x\nsteps: [{wait: timeout, duration: soon}]", "duration"},
		{"target without value", "name: x\nsteps: [{action: click, target: {strategy: text}}]", "value"},
		{"two things", "name: x\nsteps: [{action: click, assert: toBeVisible}]", "only one is allowed"},
		{"nothing", "name: x\nsteps: [{title: idle}]", "needs one of"},
		{"trigger on action", "name: x\nsteps: [{action: click, trigger: {action: click}}]", "only waits take a trigger"},
		{"trigger not an action", "name: x\nsteps: [{wait: request, trigger: {wait: timeout}}]", "a trigger must be an action"},
		{"save on assert", "name: x\nsteps: [{assert: toBeTruthy, save: v}]", "only actions"},
		{"bad date", "name: x\nsteps: [{calendar: {label: {strategy: css, value: a}, previous: {strategy: css, value: b}, next: {strategy: css, value: c}, date: tomorrow}}]", "date"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.doc))
		if err == nil {
			t.Errorf("%s: expected an error", tt.name)
			continue
		}
		var verrs config.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("%s: error %T is not ValidationErrors: %v", tt.name, err, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte("name: [unclosed")); err == nil {
		t.Fatal("expected a YAML error")
	}
	if _, err := Parse([]byte("")); err == nil {
		t.Fatal("expected an empty document to be rejected")
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	write("b.yaml", "name: second\nsteps: [{wait: timeout, duration: 1ms}]\n")
	write("a.yml", "name: first\nsteps: [{wait: timeout, duration: 1ms}]\n")
	write("notes.txt", "not a scenario")

	all, err := LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 2 || all[0].Name != "first" || all[1].Name != "second" {
		t.Fatalf("LoadAll() = %v", all)
	}
	if all[0].Source != filepath.Join(dir, "a.yml") {
		t.Errorf("Source = %q", all[0].Source)
	}

	bad := write("bad.yaml", "name: bad\nsteps: [{}]\n")
	_, err = Load(bad)
	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].File != bad {
		t.Errorf("Load(bad) error = %v", err)
	}
}

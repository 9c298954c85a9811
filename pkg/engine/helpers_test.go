package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/openfroyo/pagecore/pkg/browser/fakebrowser"
)

type traceLine struct {
	level  string
	msg    string
	fields Fields
}

// recordingSink keeps every trace line and step for inspection.
type recordingSink struct {
	mu     sync.Mutex
	lines  []traceLine
	steps  []Step
	closed []error
}

func (s *recordingSink) Info(_ context.Context, msg string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, traceLine{level: "info", msg: msg, fields: fields})
}

func (s *recordingSink) Error(_ context.Context, msg string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, traceLine{level: "error", msg: msg, fields: fields})
}

func (s *recordingSink) Step(ctx context.Context, step Step) (context.Context, func(error)) {
	s.mu.Lock()
	s.steps = append(s.steps, step)
	s.mu.Unlock()
	return ctx, func(err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = append(s.closed, err)
	}
}

// find returns the index of the first line at level whose message contains
// msg, or -1.
func (s *recordingSink) find(level, msg string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.lines {
		if l.level == level && strings.Contains(l.msg, msg) {
			return i
		}
	}
	return -1
}

func (s *recordingSink) errors() []traceLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traceLine
	for _, l := range s.lines {
		if l.level == "error" {
			out = append(out, l)
		}
	}
	return out
}

// softCollector records soft failures.
type softCollector struct {
	mu       sync.Mutex
	failures []*EngineError
}

func (c *softCollector) RecordSoftFailure(_ context.Context, failure *EngineError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, failure)
}

func newTestCore(opts ...Option) (*Core, *recordingSink) {
	sink := &recordingSink{}
	return New(sink, opts...), sink
}

// formDocument is a page with two Save buttons, a checkbox, inputs and a
// hidden banner.
func formDocument() (*fakebrowser.Page, map[string]*fakebrowser.Node) {
	nodes := map[string]*fakebrowser.Node{
		"save1":    {Tag: "button", Text: "Save", ID: "save-1"},
		"save2":    {Tag: "button", Text: "Save", ID: "save-2", Classes: []string{"secondary"}},
		"email":    {Tag: "input", ID: "email", Label: "Email", Placeholder: "you@example.com", Attrs: map[string]string{"type": "email"}},
		"remember": {Tag: "input", ID: "remember", Label: "Remember me", Checkable: true, Attrs: map[string]string{"type": "checkbox"}},
		"country":  {Tag: "select", ID: "country", Label: "Country", Options: []string{"fr", "de", "nl"}},
		"banner":   {Tag: "div", ID: "banner", Text: "Saved", Hidden: true},
		"title":    {Tag: "h1", ID: "heading", Text: "Settings", Classes: []string{"page-title"}, CSS: map[string]string{"color": "rgb(0, 0, 0)"}},
		"logo":     {Tag: "img", Alt: "Company logo", Title: "Home", TestID: "logo"},
	}
	form := fakebrowser.El("form",
		nodes["email"],
		nodes["remember"],
		nodes["country"],
		nodes["save1"],
		nodes["save2"],
	)
	root := fakebrowser.El("html", fakebrowser.El("body", nodes["title"], nodes["logo"], form, nodes["banner"]))
	page := fakebrowser.NewPage("https://app.test/settings", root)
	page.SetTitle("Settings - App")
	return page, nodes
}

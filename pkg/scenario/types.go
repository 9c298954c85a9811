package scenario

import (
	"fmt"
	"time"
)

// Scenario is an ordered list of steps run against one page.
type Scenario struct {
	Name string `yaml:"name"`

	// URL is visited before the first step. A relative URL is resolved
	// against the configured base URL.
	URL string `yaml:"url,omitempty"`

	Viewport *Viewport `yaml:"viewport,omitempty"`
	Steps    []Step    `yaml:"steps"`

	// Source is the file the scenario was loaded from, if any.
	Source string `yaml:"-"`
}

// Viewport is the page size a scenario wants.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Step is one action, assertion, wait or calendar pick. Exactly one of
// Action, Assert, Wait and Calendar is set.
type Step struct {
	Title string `yaml:"title,omitempty"`

	Action   string        `yaml:"action,omitempty"`
	Assert   string        `yaml:"assert,omitempty"`
	Wait     string        `yaml:"wait,omitempty"`
	Calendar *CalendarSpec `yaml:"calendar,omitempty"`

	Target *TargetSpec `yaml:"target,omitempty"`
	DragTo *TargetSpec `yaml:"dragTo,omitempty"`

	Value  interface{} `yaml:"value,omitempty"`
	Values []string    `yaml:"values,omitempty"`
	Path   string      `yaml:"path,omitempty"`

	// Expected and Actual feed assertions. A string of the form ${name}
	// is replaced by the variable a previous step saved under name.
	Expected interface{} `yaml:"expected,omitempty"`
	Actual   interface{} `yaml:"actual,omitempty"`

	// Save stores the value an action produced under this variable name.
	Save string `yaml:"save,omitempty"`

	Mode     string        `yaml:"mode,omitempty"`
	Pattern  string        `yaml:"pattern,omitempty"`
	State    string        `yaml:"state,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`

	// Trigger is the action a request or response wait arms its listener for.
	Trigger *Step `yaml:"trigger,omitempty"`

	// Options are the flat options of the verb, predicate or lookup.
	Options map[string]interface{} `yaml:"options,omitempty"`
}

// Kind returns which of action, assert, wait or calendar the step is.
func (s *Step) Kind() string {
	switch {
	case s.Action != "":
		return "action"
	case s.Assert != "":
		return "assert"
	case s.Wait != "":
		return "wait"
	case s.Calendar != nil:
		return "calendar"
	}
	return ""
}

// Describe returns the step title, or its kind and operation.
func (s *Step) Describe() string {
	if s.Title != "" {
		return s.Title
	}
	switch s.Kind() {
	case "action":
		return fmt.Sprintf("action %s", s.Action)
	case "assert":
		return fmt.Sprintf("assert %s", s.Assert)
	case "wait":
		return fmt.Sprintf("wait %s", s.Wait)
	case "calendar":
		return fmt.Sprintf("calendar %s", s.Calendar.Date)
	}
	return "empty step"
}

// TargetSpec describes how to resolve a handle.
type TargetSpec struct {
	Strategy string                 `yaml:"strategy"`
	Value    string                 `yaml:"value"`
	Options  map[string]interface{} `yaml:"options,omitempty"`
	Frame    string                 `yaml:"frame,omitempty"`

	Combinator string `yaml:"combinator,omitempty"`
	Index      *int   `yaml:"index,omitempty"`

	// Filter takes hasText, hasNotText and visible, plus has and hasNot as
	// nested targets.
	Filter map[string]interface{} `yaml:"filter,omitempty"`
	Other  *SubSpec               `yaml:"other,omitempty"`
	Sub    *SubSpec               `yaml:"sub,omitempty"`

	RequireVisible bool `yaml:"requireVisible,omitempty"`
}

// SubSpec is the second lookup of an and, or or descendant combinator.
// Empty fields reuse the base target's strategy and options.
type SubSpec struct {
	Strategy string                 `yaml:"strategy,omitempty"`
	Value    string                 `yaml:"value"`
	Options  map[string]interface{} `yaml:"options,omitempty"`
}

// CalendarSpec picks a date on a month-paged calendar widget.
type CalendarSpec struct {
	Opener   *TargetSpec `yaml:"opener,omitempty"`
	Label    *TargetSpec `yaml:"label"`
	Previous *TargetSpec `yaml:"previous"`
	Next     *TargetSpec `yaml:"next"`
	Days     *TargetSpec `yaml:"days,omitempty"`

	DaySelector string `yaml:"daySelector,omitempty"`
	Layout      string `yaml:"layout,omitempty"`

	// Date is the day to pick, as YYYY-MM-DD.
	Date string `yaml:"date"`

	MaxSteps int `yaml:"maxSteps,omitempty"`
}

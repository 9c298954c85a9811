package browser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CheckKind names an auto-waiting expectation on a locator or page.
type CheckKind string

const (
	CheckAttached   CheckKind = "attached"
	CheckChecked    CheckKind = "checked"
	CheckDisabled   CheckKind = "disabled"
	CheckEditable   CheckKind = "editable"
	CheckEmpty      CheckKind = "empty"
	CheckEnabled    CheckKind = "enabled"
	CheckFocused    CheckKind = "focused"
	CheckHidden     CheckKind = "hidden"
	CheckInViewport CheckKind = "in_viewport"
	CheckVisible    CheckKind = "visible"

	CheckContainText CheckKind = "contain_text"
	CheckText        CheckKind = "text"
	CheckAttribute   CheckKind = "attribute"
	CheckClass       CheckKind = "class"
	CheckCSS         CheckKind = "css"
	CheckID          CheckKind = "id"
	CheckJSProperty  CheckKind = "js_property"
	CheckValue       CheckKind = "value"
	CheckValues      CheckKind = "values"
	CheckCount       CheckKind = "count"

	CheckTitle CheckKind = "title"
	CheckURL   CheckKind = "url"
)

// IsPageCheck reports whether the check targets the page rather than a locator.
func (k CheckKind) IsPageCheck() bool {
	return k == CheckTitle || k == CheckURL
}

// Check is a single expectation. Expected holds a string, []string, int,
// any JSON-like value for js_property, or a *regexp.Regexp for text-like checks.
// Name carries the attribute, CSS property or JS property name.
type Check struct {
	Kind         CheckKind
	Name         string
	Expected     any
	Negate       bool
	Timeout      time.Duration
	IgnoreCase   bool
	UseInnerText bool
}

// String renders the check for log lines.
func (c Check) String() string {
	var b strings.Builder
	if c.Negate {
		b.WriteString("not ")
	}
	b.WriteString(string(c.Kind))
	if c.Name != "" {
		fmt.Fprintf(&b, "(%s)", c.Name)
	}
	if c.Expected != nil {
		fmt.Fprintf(&b, " %v", c.Expected)
	}
	return b.String()
}

// MismatchError reports an expectation that did not hold within its timeout.
type MismatchError struct {
	Check  Check
	Actual string
	Err    error
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("expectation %s not met", e.Check)
	if e.Actual != "" {
		msg += fmt.Sprintf(" (actual %q)", e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

// MatchURL reports whether url matches pattern. A pattern wrapped in slashes is
// a regular expression; otherwise "**" matches any run of characters, "*"
// matches within a path segment and "?" matches one character. An empty
// pattern matches everything.
func MatchURL(pattern, url string) bool {
	re, err := URLRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(url)
}

// URLRegexp compiles a MatchURL pattern.
func URLRegexp(pattern string) (*regexp.Regexp, error) {
	switch {
	case pattern == "":
		return regexp.Compile("")
	case len(pattern) > 1 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/"):
		return regexp.Compile(pattern[1 : len(pattern)-1])
	case !strings.ContainsAny(pattern, "*?"):
		return regexp.Compile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return regexp.Compile("^" + globToRegexp(pattern) + "$")
}

func globToRegexp(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case c == '*' && i+1 < len(glob) && glob[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

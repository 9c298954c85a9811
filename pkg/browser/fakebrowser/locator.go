package fakebrowser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Errors returned by fake actions and reads.
var (
	ErrNoElement   = errors.New("no element matches")
	ErrStrictMode  = errors.New("strict mode violation")
	ErrNotVisible  = errors.New("element is not visible")
	ErrNotEnabled  = errors.New("element is not enabled")
	ErrNotEditable = errors.New("element is not editable")
	ErrTimeout     = errors.New("timeout exceeded")
)

// scope runs lookups below a set of root nodes.
type scope struct {
	page  *Page
	desc  string
	roots func() ([]*Node, error)
}

func (s scope) child(desc string) string {
	if s.desc == "" {
		return desc
	}
	return s.desc + "." + desc
}

func (s scope) lookup(desc string, match func(*Node) bool) browser.Locator {
	return s.page.newLocator(s.child(desc), func() ([]*Node, error) {
		roots, err := s.roots()
		if err != nil {
			return nil, err
		}
		seen := make(map[*Node]bool)
		var out []*Node
		for _, r := range roots {
			for _, n := range r.descendants() {
				if !seen[n] && match(n) {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		return s.page.inDocumentOrder(out), nil
	})
}

func (s scope) Locator(sel string, opts browser.SelectorOptions) browser.Locator {
	desc := fmt.Sprintf("locator(%q)", sel)
	parsed, perr := parseSelector(sel)
	l := s.page.newLocator(s.child(desc), func() ([]*Node, error) {
		if perr != nil {
			return nil, perr
		}
		roots, err := s.roots()
		if err != nil {
			return nil, err
		}
		seen := make(map[*Node]bool)
		var out []*Node
		for _, r := range roots {
			for _, n := range parsed.query(r) {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		return s.page.inDocumentOrder(out), nil
	})
	if opts.HasText == "" && opts.HasNotText == "" {
		return l
	}
	return l.Filter(browser.FilterOptions{HasText: opts.HasText, HasNotText: opts.HasNotText})
}

func (s scope) GetByRole(role string, opts browser.RoleOptions) browser.Locator {
	desc := fmt.Sprintf("getByRole(%q", role)
	if opts.Name != "" {
		desc += fmt.Sprintf(", name=%q", opts.Name)
	}
	desc += ")"
	return s.lookup(desc, func(n *Node) bool {
		if n.role() != role {
			return false
		}
		if !opts.IncludeHidden && !n.visible() {
			return false
		}
		if opts.Name != "" && !matchText(n.accessibleName(), opts.Name, opts.Exact) {
			return false
		}
		if opts.Checked != nil && n.Checked != *opts.Checked {
			return false
		}
		if opts.Disabled != nil && n.enabled() == *opts.Disabled {
			return false
		}
		if opts.Expanded != nil && (n.Attrs["aria-expanded"] == "true") != *opts.Expanded {
			return false
		}
		if opts.Pressed != nil && (n.Attrs["aria-pressed"] == "true") != *opts.Pressed {
			return false
		}
		if opts.Selected != nil && (n.Attrs["aria-selected"] == "true") != *opts.Selected {
			return false
		}
		if opts.Level > 0 && headingLevel(n) != opts.Level {
			return false
		}
		return true
	})
}

func headingLevel(n *Node) int {
	if v, ok := n.Attrs["aria-level"]; ok {
		level, _ := strconv.Atoi(v)
		return level
	}
	if len(n.Tag) == 2 && n.Tag[0] == 'h' {
		return int(n.Tag[1] - '0')
	}
	return 0
}

func (s scope) GetByText(text string, opts browser.TextOptions) browser.Locator {
	return s.lookup(fmt.Sprintf("getByText(%q)", text), func(n *Node) bool {
		return n.Text != "" && matchText(n.Text, text, opts.Exact)
	})
}

func (s scope) GetByLabel(text string, opts browser.TextOptions) browser.Locator {
	return s.lookup(fmt.Sprintf("getByLabel(%q)", text), func(n *Node) bool {
		return n.Label != "" && matchText(n.Label, text, opts.Exact)
	})
}

func (s scope) GetByPlaceholder(text string, opts browser.TextOptions) browser.Locator {
	return s.lookup(fmt.Sprintf("getByPlaceholder(%q)", text), func(n *Node) bool {
		return n.Placeholder != "" && matchText(n.Placeholder, text, opts.Exact)
	})
}

func (s scope) GetByAltText(text string, opts browser.TextOptions) browser.Locator {
	return s.lookup(fmt.Sprintf("getByAltText(%q)", text), func(n *Node) bool {
		return n.Alt != "" && matchText(n.Alt, text, opts.Exact)
	})
}

func (s scope) GetByTitle(text string, opts browser.TextOptions) browser.Locator {
	return s.lookup(fmt.Sprintf("getByTitle(%q)", text), func(n *Node) bool {
		return n.Title != "" && matchText(n.Title, text, opts.Exact)
	})
}

func (s scope) GetByTestID(id string) browser.Locator {
	return s.lookup(fmt.Sprintf("getByTestId(%q)", id), func(n *Node) bool {
		v, ok := n.attr("data-testid")
		return ok && v == id
	})
}

// Locator is a lazy fake locator. Every read re-runs the lookup chain.
type Locator struct {
	scope
	find func() ([]*Node, error)
}

var _ browser.Locator = (*Locator)(nil)

func (p *Page) newLocator(desc string, find func() ([]*Node, error)) *Locator {
	return &Locator{
		scope: scope{page: p, desc: desc, roots: find},
		find:  find,
	}
}

func (l *Locator) derive(desc string, fn func([]*Node) ([]*Node, error)) browser.Locator {
	return l.page.newLocator(l.desc+"."+desc, func() ([]*Node, error) {
		nodes, err := l.find()
		if err != nil {
			return nil, err
		}
		return fn(nodes)
	})
}

// Describe returns the lookup chain.
func (l *Locator) Describe() string {
	return l.desc
}

// Nodes resolves the locator. It is exported for test assertions.
func (l *Locator) Nodes() ([]*Node, error) {
	return l.find()
}

func (l *Locator) Filter(opts browser.FilterOptions) browser.Locator {
	var has, hasNot *Locator
	if opts.Has != nil {
		has, _ = browser.Unwrap(opts.Has).(*Locator)
	}
	if opts.HasNot != nil {
		hasNot, _ = browser.Unwrap(opts.HasNot).(*Locator)
	}
	return l.derive("filter("+describeFilter(opts)+")", func(nodes []*Node) ([]*Node, error) {
		var hasNodes, hasNotNodes []*Node
		var err error
		if has != nil {
			if hasNodes, err = has.find(); err != nil {
				return nil, err
			}
		}
		if hasNot != nil {
			if hasNotNodes, err = hasNot.find(); err != nil {
				return nil, err
			}
		}
		var out []*Node
		for _, n := range nodes {
			text := n.TextContent()
			if opts.HasText != "" && !matchText(text, opts.HasText, false) {
				continue
			}
			if opts.HasNotText != "" && matchText(text, opts.HasNotText, false) {
				continue
			}
			if has != nil && !containsDescendant(n, hasNodes) {
				continue
			}
			if hasNot != nil && containsDescendant(n, hasNotNodes) {
				continue
			}
			if opts.Visible != nil && n.visible() != *opts.Visible {
				continue
			}
			out = append(out, n)
		}
		return out, nil
	})
}

func describeFilter(opts browser.FilterOptions) string {
	var parts []string
	if opts.HasText != "" {
		parts = append(parts, fmt.Sprintf("hasText=%q", opts.HasText))
	}
	if opts.HasNotText != "" {
		parts = append(parts, fmt.Sprintf("hasNotText=%q", opts.HasNotText))
	}
	if opts.Has != nil {
		parts = append(parts, "has="+opts.Has.Describe())
	}
	if opts.HasNot != nil {
		parts = append(parts, "hasNot="+opts.HasNot.Describe())
	}
	if opts.Visible != nil {
		parts = append(parts, fmt.Sprintf("visible=%t", *opts.Visible))
	}
	return strings.Join(parts, ", ")
}

func containsDescendant(n *Node, candidates []*Node) bool {
	for _, c := range candidates {
		if n.isAncestorOf(c) {
			return true
		}
	}
	return false
}

// And keeps the nodes matched by both locators.
func (l *Locator) And(other browser.Locator) browser.Locator {
	o, ok := browser.Unwrap(other).(*Locator)
	return l.derive("and("+other.Describe()+")", func(nodes []*Node) ([]*Node, error) {
		if !ok {
			return nil, fmt.Errorf("and: foreign locator %T", other)
		}
		otherNodes, err := o.find()
		if err != nil {
			return nil, err
		}
		in := make(map[*Node]bool, len(otherNodes))
		for _, n := range otherNodes {
			in[n] = true
		}
		var out []*Node
		for _, n := range nodes {
			if in[n] {
				out = append(out, n)
			}
		}
		return out, nil
	})
}

// Or resolves to the first side that matches anything.
func (l *Locator) Or(other browser.Locator) browser.Locator {
	o, ok := browser.Unwrap(other).(*Locator)
	return l.derive("or("+other.Describe()+")", func(nodes []*Node) ([]*Node, error) {
		if len(nodes) > 0 {
			return nodes, nil
		}
		if !ok {
			return nil, fmt.Errorf("or: foreign locator %T", other)
		}
		return o.find()
	})
}

func (l *Locator) Nth(index int) browser.Locator {
	return l.derive(fmt.Sprintf("nth(%d)", index), func(nodes []*Node) ([]*Node, error) {
		i := index
		if i < 0 {
			i += len(nodes)
		}
		if i < 0 || i >= len(nodes) {
			return nil, nil
		}
		return nodes[i : i+1], nil
	})
}

func (l *Locator) First() browser.Locator {
	return l.derive("first()", func(nodes []*Node) ([]*Node, error) {
		if len(nodes) == 0 {
			return nil, nil
		}
		return nodes[:1], nil
	})
}

func (l *Locator) Last() browser.Locator {
	return l.derive("last()", func(nodes []*Node) ([]*Node, error) {
		if len(nodes) == 0 {
			return nil, nil
		}
		return nodes[len(nodes)-1:], nil
	})
}

func (l *Locator) one() (*Node, error) {
	nodes, err := l.find()
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoElement, l.desc)
	case 1:
		return nodes[0], nil
	default:
		return nil, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, l.desc, len(nodes))
	}
}

// actionable resolves a single node that can receive input.
func (l *Locator) actionable(verb string, force bool) (*Node, error) {
	n, err := l.one()
	if err != nil {
		return nil, err
	}
	if n.Fail != nil {
		return nil, n.Fail
	}
	if !force && !n.visible() {
		return nil, fmt.Errorf("%s: %w: %s", verb, ErrNotVisible, l.desc)
	}
	if !force && !n.enabled() {
		return nil, fmt.Errorf("%s: %w: %s", verb, ErrNotEnabled, l.desc)
	}
	l.page.recordAction(verb, l.desc)
	return n, nil
}

func (l *Locator) Count() (int, error) {
	nodes, err := l.find()
	return len(nodes), err
}

func (l *Locator) IsVisible() (bool, error) {
	nodes, err := l.find()
	if err != nil {
		return false, err
	}
	if len(nodes) > 1 {
		return false, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, l.desc, len(nodes))
	}
	return len(nodes) == 1 && nodes[0].visible(), nil
}

func (l *Locator) IsHidden() (bool, error) {
	visible, err := l.IsVisible()
	return !visible, err
}

func (l *Locator) IsEnabled() (bool, error) {
	n, err := l.one()
	if err != nil {
		return false, err
	}
	return n.enabled(), nil
}

func (l *Locator) IsChecked() (bool, error) {
	n, err := l.one()
	if err != nil {
		return false, err
	}
	if !n.Checkable {
		return false, fmt.Errorf("not a checkbox or radio button: %s", l.desc)
	}
	return n.Checked, nil
}

func (l *Locator) IsEditable() (bool, error) {
	n, err := l.one()
	if err != nil {
		return false, err
	}
	return n.editable(), nil
}

func (l *Locator) TextContent() (string, error) {
	n, err := l.one()
	if err != nil {
		return "", err
	}
	return n.TextContent(), nil
}

func (l *Locator) InnerText() (string, error) {
	n, err := l.one()
	if err != nil {
		return "", err
	}
	if !n.visible() {
		return "", nil
	}
	return normalizeSpace(n.TextContent()), nil
}

func (l *Locator) InputValue() (string, error) {
	n, err := l.one()
	if err != nil {
		return "", err
	}
	switch n.Tag {
	case "input", "textarea", "select":
		return n.Value, nil
	}
	return "", fmt.Errorf("not an input element: %s", l.desc)
}

func (l *Locator) GetAttribute(name string) (string, bool, error) {
	n, err := l.one()
	if err != nil {
		return "", false, err
	}
	v, ok := n.attr(name)
	return v, ok, nil
}

func (l *Locator) Click(opts browser.ClickOptions) error {
	n, err := l.actionable("click", opts.Force)
	if err != nil {
		return err
	}
	if opts.Trial {
		return nil
	}
	n.record("click")
	return l.page.fireClick(n)
}

func (l *Locator) Dblclick(opts browser.ClickOptions) error {
	n, err := l.actionable("dblclick", opts.Force)
	if err != nil {
		return err
	}
	if opts.Trial {
		return nil
	}
	n.record("dblclick")
	return l.page.fireClick(n)
}

func (l *Locator) Fill(value string, opts browser.InputOptions) error {
	n, err := l.actionable("fill", opts.Force)
	if err != nil {
		return err
	}
	if !n.editable() {
		return fmt.Errorf("fill: %w: %s", ErrNotEditable, l.desc)
	}
	n.Value = value
	n.record("fill:" + value)
	return nil
}

func (l *Locator) Press(key string, opts browser.InputOptions) error {
	n, err := l.actionable("press", opts.Force)
	if err != nil {
		return err
	}
	n.record("press:" + key)
	return nil
}

func (l *Locator) PressSequentially(text string, opts browser.TypeOptions) error {
	n, err := l.actionable("type", false)
	if err != nil {
		return err
	}
	if !n.editable() {
		return fmt.Errorf("type: %w: %s", ErrNotEditable, l.desc)
	}
	n.Value += text
	n.record("type:" + text)
	return nil
}

func (l *Locator) SelectOption(values []string, opts browser.InputOptions) ([]string, error) {
	n, err := l.actionable("select", opts.Force)
	if err != nil {
		return nil, err
	}
	if n.Tag != "select" {
		return nil, fmt.Errorf("element is not a <select> element: %s", l.desc)
	}
	var selected []string
	for _, v := range values {
		found := false
		for _, o := range n.Options {
			if o == v {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("option %q not found in %s", v, l.desc)
		}
		selected = append(selected, v)
	}
	n.Selected = selected
	if len(selected) > 0 {
		n.Value = selected[0]
	}
	n.record("select:" + strings.Join(selected, ","))
	return selected, nil
}

func (l *Locator) SetChecked(checked bool, opts browser.InputOptions) error {
	n, err := l.actionable("setChecked", opts.Force)
	if err != nil {
		return err
	}
	if !n.Checkable {
		return fmt.Errorf("not a checkbox or radio button: %s", l.desc)
	}
	n.Checked = checked
	n.record(fmt.Sprintf("setChecked:%t", checked))
	return nil
}

func (l *Locator) Check(opts browser.InputOptions) error {
	if err := l.SetChecked(true, opts); err != nil {
		return err
	}
	n, _ := l.one()
	n.record("check")
	return nil
}

func (l *Locator) Uncheck(opts browser.InputOptions) error {
	if err := l.SetChecked(false, opts); err != nil {
		return err
	}
	n, _ := l.one()
	n.record("uncheck")
	return nil
}

func (l *Locator) Hover(opts browser.InputOptions) error {
	n, err := l.actionable("hover", opts.Force)
	if err != nil {
		return err
	}
	n.record("hover")
	return nil
}

func (l *Locator) DragTo(target browser.Locator, opts browser.InputOptions) error {
	n, err := l.actionable("drag", opts.Force)
	if err != nil {
		return err
	}
	t, ok := browser.Unwrap(target).(*Locator)
	if !ok {
		return fmt.Errorf("drag: foreign locator %T", target)
	}
	dst, err := t.actionable("drop", opts.Force)
	if err != nil {
		return err
	}
	n.record("drag:" + t.desc)
	dst.record("drop")
	return nil
}

func (l *Locator) Tap(opts browser.InputOptions) error {
	n, err := l.actionable("tap", opts.Force)
	if err != nil {
		return err
	}
	n.record("tap")
	return l.page.fireClick(n)
}

func (l *Locator) Focus(opts browser.InputOptions) error {
	n, err := l.one()
	if err != nil {
		return err
	}
	if n.Fail != nil {
		return n.Fail
	}
	l.page.focused = n
	n.record("focus")
	return nil
}

func (l *Locator) Clear(opts browser.InputOptions) error {
	return l.Fill("", opts)
}

func (l *Locator) ScrollIntoView(opts browser.InputOptions) error {
	n, err := l.actionable("scroll", opts.Force)
	if err != nil {
		return err
	}
	n.OutOfViewport = false
	n.record("scroll")
	return nil
}

func (l *Locator) SetInputFiles(paths []string, opts browser.InputOptions) error {
	n, err := l.one()
	if err != nil {
		return err
	}
	if n.Fail != nil {
		return n.Fail
	}
	if n.Tag != "input" || n.Attrs["type"] != "file" {
		return fmt.Errorf("node is not an input[type=file] element: %s", l.desc)
	}
	n.Files = append([]string(nil), paths...)
	n.record("files:" + strings.Join(paths, ","))
	return nil
}

// WaitFor evaluates the state once; the fake document never changes on its own.
func (l *Locator) WaitFor(state browser.ElementState, timeout time.Duration) error {
	nodes, err := l.find()
	if err != nil {
		return err
	}
	var ok bool
	switch state {
	case browser.StateAttached, "":
		ok = len(nodes) > 0
	case browser.StateDetached:
		ok = len(nodes) == 0
	case browser.StateVisible:
		ok = len(nodes) > 0 && nodes[0].visible()
	case browser.StateHidden:
		ok = len(nodes) == 0 || !nodes[0].visible()
	default:
		return fmt.Errorf("unknown element state %q", state)
	}
	if !ok {
		return fmt.Errorf("%w %s waiting for %s to be %s", ErrTimeout, timeout, l.desc, state)
	}
	return nil
}

func (l *Locator) Screenshot(path string) ([]byte, error) {
	n, err := l.one()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.WriteFile(path, n.Screenshot, 0o644); err != nil {
			return nil, err
		}
	}
	return n.Screenshot, nil
}

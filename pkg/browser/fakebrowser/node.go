// Package fakebrowser is an in-memory implementation of the browser
// capability boundary. Tests build a small element tree, wire click hooks that
// open pages, dialogs or downloads, and drive the engine against it without a
// real browser.
package fakebrowser

import (
	"strings"
)

// Node is an element in the fake document. Text is the element's own text;
// the text content of a node also includes its descendants.
type Node struct {
	Tag         string
	ID          string
	Classes     []string
	Role        string
	Name        string
	Text        string
	Label       string
	Placeholder string
	Alt         string
	Title       string
	TestID      string
	Attrs       map[string]string
	CSS         map[string]string
	Props       map[string]any

	Value    string
	Options  []string
	Selected []string
	Files    []string

	Hidden        bool
	Disabled      bool
	ReadOnly      bool
	Checkable     bool
	Checked       bool
	OutOfViewport bool

	// Fail makes every action on the node return this error.
	Fail error

	// OnClick runs after a click, double click or tap is recorded.
	OnClick func(p *Page) error

	// Screenshot is returned by Locator.Screenshot.
	Screenshot []byte

	// Events records the actions performed on the node, in order.
	Events []string

	Children []*Node
	parent   *Node
}

// El builds a node with the given tag and children.
func El(tag string, children ...*Node) *Node {
	n := &Node{Tag: tag}
	n.Append(children...)
	return n
}

// Append adds children to n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.Children
	for i, c := range siblings {
		if c == n {
			n.parent.Children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Did reports whether event was recorded on the node.
func (n *Node) Did(event string) bool {
	for _, e := range n.Events {
		if e == event {
			return true
		}
	}
	return false
}

func (n *Node) record(event string) {
	n.Events = append(n.Events, event)
}

// TextContent returns the node's own text followed by its descendants' text.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.writeText(b)
	}
}

func (n *Node) visible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Hidden {
			return false
		}
	}
	return true
}

func (n *Node) enabled() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Disabled {
			return false
		}
	}
	return true
}

func (n *Node) editable() bool {
	if !n.enabled() || n.ReadOnly {
		return false
	}
	switch n.Tag {
	case "input", "textarea", "select":
		return true
	}
	return n.Attrs["contenteditable"] == "true"
}

func (n *Node) accessibleName() string {
	if n.Name != "" {
		return n.Name
	}
	if n.Label != "" {
		return n.Label
	}
	return normalizeSpace(n.TextContent())
}

func (n *Node) role() string {
	if n.Role != "" {
		return n.Role
	}
	switch n.Tag {
	case "button":
		return "button"
	case "a":
		return "link"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "input":
		switch n.Attrs["type"] {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit":
			return "button"
		}
		return "textbox"
	}
	return ""
}

func (n *Node) attr(name string) (string, bool) {
	switch name {
	case "id":
		return n.ID, n.ID != ""
	case "class":
		return strings.Join(n.Classes, " "), len(n.Classes) > 0
	case "data-testid":
		if n.TestID != "" {
			return n.TestID, true
		}
	case "placeholder":
		if n.Placeholder != "" {
			return n.Placeholder, true
		}
	case "alt":
		if n.Alt != "" {
			return n.Alt, true
		}
	case "title":
		if n.Title != "" {
			return n.Title, true
		}
	case "role":
		if n.Role != "" {
			return n.Role, true
		}
	}
	v, ok := n.Attrs[name]
	return v, ok
}

func (n *Node) hasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

func (n *Node) isAncestorOf(other *Node) bool {
	for cur := other.parent; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// descendants lists the subtree of n in document order, excluding n. Frame
// contents are skipped; they are only reachable through a frame locator.
func (n *Node) descendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			out = append(out, c)
			if c.Tag != "iframe" {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchText applies the text matching rules of the text-like lookups:
// case-insensitive substring by default, whitespace-normalized exact otherwise.
func matchText(have, want string, exact bool) bool {
	have, want = normalizeSpace(have), normalizeSpace(want)
	if exact {
		return have == want
	}
	return strings.Contains(strings.ToLower(have), strings.ToLower(want))
}

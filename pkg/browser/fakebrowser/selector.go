package fakebrowser

import (
	"fmt"
	"strings"
)

// selector is a parsed subset of CSS: descendant combinators over compound
// selectors made of a tag, #id, .class, [attr], [attr=value], :text-is(),
// :has-text() and :visible.
type selector []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
	textIs  *string
	hasText *string
	visible bool
}

type attrMatch struct {
	name  string
	value *string
}

func parseSelector(src string) (selector, error) {
	parts, err := splitCompounds(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	sel := make(selector, 0, len(parts))
	for _, p := range parts {
		c, err := parseCompound(p)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", src, err)
		}
		sel = append(sel, c)
	}
	return sel, nil
}

func splitCompounds(src string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == ' ' && depth == 0:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(c)
	}
	if quote != 0 || depth != 0 {
		return nil, fmt.Errorf("unbalanced selector %q", src)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts, nil
}

func parseCompound(src string) (compound, error) {
	var c compound
	i := 0
	ident := func() string {
		start := i
		for i < len(src) && isIdentChar(src[i]) {
			i++
		}
		return src[start:i]
	}

	if i < len(src) && src[i] == '*' {
		i++
	} else {
		c.tag = ident()
	}

	for i < len(src) {
		switch src[i] {
		case '#':
			i++
			c.id = ident()
		case '.':
			i++
			c.classes = append(c.classes, ident())
		case '[':
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute")
			}
			body := src[i+1 : i+end]
			i += end + 1
			name, value, hasValue := strings.Cut(body, "=")
			m := attrMatch{name: strings.TrimSpace(name)}
			if hasValue {
				v := unquote(strings.TrimSpace(value))
				m.value = &v
			}
			c.attrs = append(c.attrs, m)
		case ':':
			i++
			name := ident()
			switch name {
			case "visible":
				c.visible = true
				continue
			case "text-is", "has-text":
			default:
				return c, fmt.Errorf("unsupported pseudo-class :%s", name)
			}
			if i >= len(src) || src[i] != '(' {
				return c, fmt.Errorf(":%s needs an argument", name)
			}
			end := strings.IndexByte(src[i:], ')')
			if end < 0 {
				return c, fmt.Errorf("unterminated :%s", name)
			}
			arg := unquote(src[i+1 : i+end])
			i += end + 1
			if name == "text-is" {
				c.textIs = &arg
			} else {
				c.hasText = &arg
			}
		default:
			return c, fmt.Errorf("unexpected %q", src[i:])
		}
	}
	return c, nil
}

func isIdentChar(c byte) bool {
	return c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && !strings.EqualFold(c.tag, n.Tag) {
		return false
	}
	if c.id != "" && c.id != n.ID {
		return false
	}
	for _, class := range c.classes {
		if !n.hasClass(class) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := n.attr(a.name)
		if !ok || a.value != nil && v != *a.value {
			return false
		}
	}
	if c.textIs != nil && normalizeSpace(n.TextContent()) != normalizeSpace(*c.textIs) {
		return false
	}
	if c.hasText != nil && !matchText(n.TextContent(), *c.hasText, false) {
		return false
	}
	if c.visible && !n.visible() {
		return false
	}
	return true
}

// query returns the nodes under root matching the selector, in document order.
func (s selector) query(root *Node) []*Node {
	candidates := root.descendants()
	last := s[len(s)-1]
	var out []*Node
	for _, n := range candidates {
		if !last.matches(n) {
			continue
		}
		if s.matchAncestors(n, root, len(s)-2) {
			out = append(out, n)
		}
	}
	return out
}

func (s selector) matchAncestors(n, root *Node, idx int) bool {
	if idx < 0 {
		return true
	}
	for cur := n.parent; cur != nil && cur != root; cur = cur.parent {
		if s[idx].matches(cur) && s.matchAncestors(cur, root, idx-1) {
			return true
		}
	}
	return false
}

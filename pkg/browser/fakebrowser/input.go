package fakebrowser

import (
	"fmt"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Mouse records page-level mouse input as actions on the page. The fake has
// no layout, so coordinates never hit a node.
type Mouse struct {
	page *Page
}

func (p *Page) Mouse() browser.Mouse {
	return &Mouse{page: p}
}

func (m *Mouse) Click(x, y float64, opts browser.MouseOptions) error {
	m.page.recordAction("mouse.click", fmt.Sprintf("%g,%g %s", x, y, button(opts)))
	return nil
}

func (m *Mouse) Dblclick(x, y float64, opts browser.MouseOptions) error {
	m.page.recordAction("mouse.dblclick", fmt.Sprintf("%g,%g %s", x, y, button(opts)))
	return nil
}

func (m *Mouse) Move(x, y float64, opts browser.MouseOptions) error {
	m.page.recordAction("mouse.move", fmt.Sprintf("%g,%g", x, y))
	return nil
}

func (m *Mouse) Down(opts browser.MouseOptions) error {
	m.page.recordAction("mouse.down", button(opts))
	return nil
}

func (m *Mouse) Up(opts browser.MouseOptions) error {
	m.page.recordAction("mouse.up", button(opts))
	return nil
}

func (m *Mouse) Wheel(deltaX, deltaY float64) error {
	m.page.recordAction("mouse.wheel", fmt.Sprintf("%g,%g", deltaX, deltaY))
	return nil
}

func button(opts browser.MouseOptions) string {
	if opts.Button == "" {
		return "left"
	}
	return opts.Button
}

// Keyboard sends input to the focused node. Text lands in its value when it
// is editable; key events are recorded on it.
type Keyboard struct {
	page *Page
}

func (p *Page) Keyboard() browser.Keyboard {
	return &Keyboard{page: p}
}

func (k *Keyboard) Press(key string, opts browser.KeyOptions) error {
	k.page.recordAction("keyboard.press", key)
	if n := k.page.Focused(); n != nil {
		n.record("press:" + key)
	}
	return nil
}

func (k *Keyboard) Type(text string, opts browser.KeyOptions) error {
	k.page.recordAction("keyboard.type", text)
	return k.insert("type:", text)
}

func (k *Keyboard) InsertText(text string) error {
	k.page.recordAction("keyboard.insertText", text)
	return k.insert("insert:", text)
}

func (k *Keyboard) insert(event, text string) error {
	n := k.page.Focused()
	if n == nil {
		return nil
	}
	if !n.editable() {
		return fmt.Errorf("keyboard: %w: focused %s", ErrNotEditable, n.Tag)
	}
	n.Value += text
	n.record(event + text)
	return nil
}

func (k *Keyboard) Down(key string) error {
	k.page.recordAction("keyboard.down", key)
	if n := k.page.Focused(); n != nil {
		n.record("keydown:" + key)
	}
	return nil
}

func (k *Keyboard) Up(key string) error {
	k.page.recordAction("keyboard.up", key)
	if n := k.page.Focused(); n != nil {
		n.record("keyup:" + key)
	}
	return nil
}

// BringToFront records the activation as a page action.
func (p *Page) BringToFront() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("target page has been closed")
	}
	p.recordAction("bringToFront", p.URL())
	return nil
}

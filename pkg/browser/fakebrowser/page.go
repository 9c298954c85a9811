package fakebrowser

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// DefaultEventTimeout bounds ExpectEvent when no timeout is given.
const DefaultEventTimeout = 50 * time.Millisecond

// Page is a fake browser tab over a Node tree.
type Page struct {
	Root *Node

	// Functions maps a WaitForFunction expression to its truthiness.
	Functions map[string]bool

	// PageScreenshot is returned by Screenshot.
	PageScreenshot []byte

	mu          sync.Mutex
	url         string
	title       string
	history     []string
	pos         int
	documents   map[string]*Node
	titles      map[string]string
	pending     map[browser.LoadState]bool
	listeners   []*listener
	dialogs     []*handlerEntry[browser.Dialog]
	choosers    []*handlerEntry[browser.FileChooser]
	nextHandler int
	focused     *Node
	actions     []string
	closed      bool
}

type listener struct {
	kind    browser.EventKind
	pattern string
	ch      chan browser.Event
}

type handlerEntry[T any] struct {
	id int
	fn func(T)
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a page showing root at url.
func NewPage(url string, root *Node) *Page {
	if root == nil {
		root = El("html")
	}
	p := &Page{
		Root:      root,
		Functions: make(map[string]bool),
		url:       url,
		history:   []string{url},
		documents: map[string]*Node{url: root},
		titles:    make(map[string]string),
		pending:   make(map[browser.LoadState]bool),
	}
	return p
}

func (p *Page) scope() scope {
	return scope{page: p, roots: func() ([]*Node, error) {
		if p.closed {
			return nil, fmt.Errorf("target page has been closed")
		}
		return []*Node{p.Root}, nil
	}}
}

func (p *Page) Locator(selector string, opts browser.SelectorOptions) browser.Locator {
	return p.scope().Locator(selector, opts)
}

func (p *Page) GetByRole(role string, opts browser.RoleOptions) browser.Locator {
	return p.scope().GetByRole(role, opts)
}

func (p *Page) GetByText(text string, opts browser.TextOptions) browser.Locator {
	return p.scope().GetByText(text, opts)
}

func (p *Page) GetByLabel(text string, opts browser.TextOptions) browser.Locator {
	return p.scope().GetByLabel(text, opts)
}

func (p *Page) GetByPlaceholder(text string, opts browser.TextOptions) browser.Locator {
	return p.scope().GetByPlaceholder(text, opts)
}

func (p *Page) GetByAltText(text string, opts browser.TextOptions) browser.Locator {
	return p.scope().GetByAltText(text, opts)
}

func (p *Page) GetByTitle(text string, opts browser.TextOptions) browser.Locator {
	return p.scope().GetByTitle(text, opts)
}

func (p *Page) GetByTestID(id string) browser.Locator {
	return p.scope().GetByTestID(id)
}

// FrameLocator scopes lookups to the children of the first matching iframe.
func (p *Page) FrameLocator(selector string) browser.Scope {
	frame := p.Locator(selector, browser.SelectorOptions{}).(*Locator)
	return scope{
		page: p,
		desc: fmt.Sprintf("frameLocator(%q)", selector),
		roots: func() ([]*Node, error) {
			nodes, err := frame.find()
			if err != nil {
				return nil, err
			}
			if len(nodes) == 0 {
				return nil, fmt.Errorf("%w: frame %s", ErrNoElement, selector)
			}
			return nodes[:1], nil
		},
	}
}

// SetDocument registers the tree shown after navigating to url.
func (p *Page) SetDocument(url, title string, root *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents[url] = root
	p.titles[url] = title
	if url == p.url {
		p.Root = root
		p.title = title
	}
}

// SetTitle changes the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// SetLoadPending marks a load state as never reached.
func (p *Page) SetLoadPending(state browser.LoadState, pending bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[state] = pending
}

// Actions lists "verb target" entries for every action performed on the page.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func (p *Page) recordAction(verb, target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, verb+" "+target)
}

// Focused returns the node that last received focus.
func (p *Page) Focused() *Node {
	return p.focused
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", fmt.Errorf("target page has been closed")
	}
	return p.title, nil
}

func (p *Page) show(url string) {
	p.url = url
	if root, ok := p.documents[url]; ok {
		p.Root = root
		p.title = p.titles[url]
	}
	p.focused = nil
}

func (p *Page) Goto(url string, opts browser.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("target page has been closed")
	}
	p.history = append(p.history[:p.pos+1], url)
	p.pos = len(p.history) - 1
	p.show(url)
	p.actions = append(p.actions, "goto "+url)
	return nil
}

func (p *Page) GoBack(opts browser.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, "back "+p.url)
	if p.pos > 0 {
		p.pos--
		p.show(p.history[p.pos])
	}
	return nil
}

func (p *Page) GoForward(opts browser.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, "forward "+p.url)
	if p.pos < len(p.history)-1 {
		p.pos++
		p.show(p.history[p.pos])
	}
	return nil
}

func (p *Page) Reload(opts browser.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, "reload "+p.url)
	return nil
}

func (p *Page) WaitForLoadState(state browser.LoadState, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[state] {
		return fmt.Errorf("%w %s waiting for load state %q", ErrTimeout, timeout, state)
	}
	return nil
}

func (p *Page) WaitForURL(pattern string, timeout time.Duration) error {
	url := p.URL()
	if !browser.MatchURL(pattern, url) {
		return fmt.Errorf("%w %s waiting for url %q (current %q)", ErrTimeout, timeout, pattern, url)
	}
	return nil
}

func (p *Page) WaitForFunction(expression string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Functions[expression] {
		return fmt.Errorf("%w %s waiting for function %q", ErrTimeout, timeout, expression)
	}
	return nil
}

// ListenerCount returns how many ExpectEvent listeners are armed for kind.
func (p *Page) ListenerCount(kind browser.EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.listeners {
		if l.kind == kind {
			n++
		}
	}
	return n
}

func (p *Page) ExpectEvent(kind browser.EventKind, trigger func() error, opts browser.ExpectOptions) (browser.Event, error) {
	l := &listener{kind: kind, pattern: opts.URLPattern, ch: make(chan browser.Event, 1)}
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
	defer p.removeListener(l)

	if trigger != nil {
		if err := trigger(); err != nil {
			return browser.Event{}, err
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-l.ch:
		return ev, nil
	case <-timer.C:
		return browser.Event{}, fmt.Errorf("%w %s waiting for event %q", ErrTimeout, timeout, kind)
	}
}

func (p *Page) removeListener(target *listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.listeners {
		if l == target {
			p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
			return
		}
	}
}

// emit delivers ev to the first armed listener for its kind. Events with no
// listener are dropped, as a real browser would.
func (p *Page) emit(ev browser.Event, url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.listeners {
		if l.kind != ev.Kind || !browser.MatchURL(l.pattern, url) {
			continue
		}
		select {
		case l.ch <- ev:
			return true
		default:
		}
	}
	return false
}

// OpenPage announces a new tab. It reports whether a listener received it.
func (p *Page) OpenPage(child *Page) bool {
	return p.emit(browser.Event{Kind: browser.EventPage, Page: child}, child.URL())
}

// StartDownload announces a download.
func (p *Page) StartDownload(d *Download) bool {
	return p.emit(browser.Event{Kind: browser.EventDownload, Download: d}, d.URL)
}

// SendRequest announces a network request.
func (p *Page) SendRequest(method, url string) bool {
	return p.emit(browser.Event{Kind: browser.EventRequest, Request: &Request{method: method, url: url}}, url)
}

// ReceiveResponse announces a network response.
func (p *Page) ReceiveResponse(url string, status int) bool {
	return p.emit(browser.Event{Kind: browser.EventResponse, Response: &Response{url: url, status: status}}, url)
}

func (p *Page) fireClick(n *Node) error {
	if n.OnClick == nil {
		return nil
	}
	return n.OnClick(p)
}

func (p *Page) OnceDialog(handler func(browser.Dialog)) func() {
	return addOnce(p, &p.dialogs, handler)
}

func (p *Page) OnceFileChooser(handler func(browser.FileChooser)) func() {
	return addOnce(p, &p.choosers, handler)
}

func addOnce[T any](p *Page, list *[]*handlerEntry[T], fn func(T)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextHandler++
	e := &handlerEntry[T]{id: p.nextHandler, fn: fn}
	*list = append(*list, e)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, cur := range *list {
			if cur == e {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func popOnce[T any](p *Page, list *[]*handlerEntry[T]) func(T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(*list) == 0 {
		return nil
	}
	e := (*list)[0]
	*list = (*list)[1:]
	return e.fn
}

// DialogHandlers returns the number of attached dialog handlers.
func (p *Page) DialogHandlers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialogs)
}

// FileChooserHandlers returns the number of attached file chooser handlers.
func (p *Page) FileChooserHandlers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.choosers)
}

// OpenDialog shows a dialog. Without a handler it is dismissed.
func (p *Page) OpenDialog(d *Dialog) {
	if fn := popOnce(p, &p.dialogs); fn != nil {
		fn(d)
		return
	}
	_ = d.Dismiss()
}

// OpenFileChooser shows a file chooser. Without a handler it is ignored.
func (p *Page) OpenFileChooser(fc *FileChooser) {
	if fn := popOnce(p, &p.choosers); fn != nil {
		fn(fc)
	}
}

func (p *Page) Screenshot(path string, fullPage bool) ([]byte, error) {
	if path != "" {
		if err := os.WriteFile(path, p.PageScreenshot, 0o644); err != nil {
			return nil, err
		}
	}
	return p.PageScreenshot, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) inDocumentOrder(nodes []*Node) []*Node {
	if len(nodes) < 2 {
		return nodes
	}
	order := make(map[*Node]int)
	i := 0
	var walk func(*Node)
	walk = func(n *Node) {
		order[n] = i
		i++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p.Root)
	out := append([]*Node(nil), nodes...)
	for a := 1; a < len(out); a++ {
		for b := a; b > 0 && order[out[b]] < order[out[b-1]]; b-- {
			out[b], out[b-1] = out[b-1], out[b]
		}
	}
	return out
}

// Dialog is a fake JavaScript dialog.
type Dialog struct {
	Kind       string
	Text       string
	Accepted   bool
	Dismissed  bool
	PromptText string
}

func (d *Dialog) Message() string { return d.Text }
func (d *Dialog) Type() string    { return d.Kind }

func (d *Dialog) Accept(promptText string) error {
	if d.Accepted || d.Dismissed {
		return fmt.Errorf("dialog already handled")
	}
	d.Accepted = true
	d.PromptText = promptText
	return nil
}

func (d *Dialog) Dismiss() error {
	if d.Accepted || d.Dismissed {
		return fmt.Errorf("dialog already handled")
	}
	d.Dismissed = true
	return nil
}

// Download is a fake download; SaveAs writes Data to the path.
type Download struct {
	URL      string
	Filename string
	Data     []byte
	SavedTo  string
}

func (d *Download) SuggestedFilename() string { return d.Filename }

func (d *Download) SaveAs(path string) error {
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return err
	}
	d.SavedTo = path
	return nil
}

// FileChooser is a fake native file picker.
type FileChooser struct {
	Files []string
}

func (fc *FileChooser) SetFiles(paths []string) error {
	fc.Files = append([]string(nil), paths...)
	return nil
}

// Request is a fake network request.
type Request struct {
	method string
	url    string
}

func (r *Request) URL() string    { return r.url }
func (r *Request) Method() string { return r.method }

// Response is a fake network response.
type Response struct {
	url    string
	status int
}

func (r *Response) URL() string { return r.url }
func (r *Response) Status() int { return r.status }

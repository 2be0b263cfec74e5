// Package dom is the page shell's UI surface: an in-memory HTML document with
// selector queries, element values, event dispatch with default actions, and
// a session history. It is the only mutable UI state in ongspa; controllers
// receive it through the narrow interfaces they declare.
package dom

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NativeLoader performs a full-page load of u, replacing the whole document.
// It stands in for the browser's own navigation.
type NativeLoader func(ctx context.Context, u *url.URL)

// Document is a parsed page plus the listeners bound to it.
// All methods are safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	location *url.URL

	bindings  map[bindKey]Listener
	order     []bindKey
	listeners []docListener

	native NativeLoader
	logger *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithNativeLoader sets the full-page load used by Assign and by link clicks
// nobody prevented.
func WithNativeLoader(fn NativeLoader) Option {
	return func(d *Document) { d.native = fn }
}

// New creates an empty document (html, head, body) at about:blank.
func New(opts ...Option) *Document {
	root, _ := html.Parse(strings.NewReader(""))
	d := &Document{
		root:     root,
		location: &url.URL{Scheme: "about", Opaque: "blank"},
		bindings: make(map[bindKey]Listener),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetNativeLoader replaces the full-page loader.
func (d *Document) SetNativeLoader(fn NativeLoader) {
	d.mu.Lock()
	d.native = fn
	d.mu.Unlock()
}

// Load replaces the whole tree with body parsed as HTML, sets the location,
// and drops every element binding. Document-level listeners survive.
func (d *Document) Load(body []byte, loc *url.URL) error {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	if loc != nil {
		u := *loc
		d.location = &u
	}
	d.bindings = make(map[bindKey]Listener)
	d.order = nil
	return nil
}

// Location returns a copy of the current URL.
func (d *Document) Location() *url.URL {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := *d.location
	return &u
}

// SetLocation changes the URL without loading anything (pushState).
func (d *Document) SetLocation(u *url.URL) {
	if u == nil {
		return
	}
	c := *u
	d.mu.Lock()
	d.location = &c
	d.mu.Unlock()
}

// Resolve resolves ref against the current location.
func (d *Document) Resolve(ref string) (*url.URL, error) {
	return d.Location().Parse(ref)
}

// Assign performs a native navigation to ref: the location changes and the
// native loader replaces the page. Non-HTTP schemes are only logged.
func (d *Document) Assign(ctx context.Context, ref string) {
	u, err := d.Resolve(ref)
	if err != nil {
		d.logger.Warn("dom: assign: bad url", "ref", ref, "error", err)
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		d.logger.Info("dom: handing off to native handler", "url", u.String())
		return
	}
	d.SetLocation(u)

	d.mu.Lock()
	loader := d.native
	d.mu.Unlock()
	if loader == nil {
		d.logger.Warn("dom: no native loader", "url", u.String())
		return
	}
	loader(ctx, u)
}

// Title returns the trimmed text of <title>.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(TextContent(queryFirst(d.root, "title")))
}

// SetTitle sets the <title> text, creating the element if needed.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := queryFirst(d.root, "title")
	if t == nil {
		head := queryFirst(d.root, "head")
		if head == nil {
			return
		}
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	replaceChildren(t, []*html.Node{{Type: html.TextNode, Data: title}})
}

// QuerySelector returns the first element matching selector, or nil.
func (d *Document) QuerySelector(selector string) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return queryFirst(d.root, selector)
}

// QuerySelectorAll returns every element matching selector.
func (d *Document) QuerySelectorAll(selector string) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return queryAll(d.root, selector)
}

// ElementByID returns the element whose id attribute equals id.
func (d *Document) ElementByID(id string) *html.Node {
	return d.QuerySelector("#" + id)
}

// ReplaceRegion swaps the children of the first element matching selector
// for nodes. Nodes still attached to another tree are detached first.
// It reports false, changing nothing, when the region does not exist.
func (d *Document) ReplaceRegion(selector string, nodes []*html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	region := queryFirst(d.root, selector)
	if region == nil {
		return false
	}
	replaceChildren(region, nodes)
	d.pruneDetached()
	return true
}

// HTML renders the whole document.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	html.Render(&buf, d.root)
	return buf.String()
}

// InnerHTML renders the children of the first element matching selector.
func (d *Document) InnerHTML(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := queryFirst(d.root, selector)
	if n == nil {
		return ""
	}
	return renderChildren(n)
}

func replaceChildren(parent *html.Node, nodes []*html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
}

func renderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// attached reports whether n still hangs off the current root. Caller holds mu.
func (d *Document) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

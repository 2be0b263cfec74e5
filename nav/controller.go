// Package nav keeps a single-page shell in sync with the server: it retrieves
// documents, swaps their content region into the live page, records history
// entries and tells interested parties when new content is in place.
package nav

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/ongspa/dom"
)

// Surface is what the controller needs from the live page.
type Surface interface {
	Resolve(ref string) (*url.URL, error)
	Location() *url.URL
	ReplaceRegion(selector string, nodes []*html.Node) bool
	SetTitle(title string)
	Assign(ctx context.Context, ref string)
}

// History records navigations without reloading.
type History interface {
	Push(ref string) error
	Position() int
}

// State is the controller's view of the current page.
type State struct {
	CurrentPath  string `json:"currentPath"`
	HistoryDepth int    `json:"historyDepth"`
}

type hook struct {
	key string
	fn  func()
}

// Controller performs in-place navigations.
type Controller struct {
	surface  Surface
	history  History
	fetcher  Fetcher
	logger   *slog.Logger
	selector string
	index    string
	stale    bool
	policy   *bluemonday.Policy

	seq     atomic.Uint64
	applyMu sync.Mutex
	wg      sync.WaitGroup

	mu    sync.Mutex
	state State
	hooks []hook
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSelector sets the content region selector. Default "main".
func WithSelector(sel string) Option {
	return func(c *Controller) { c.selector = sel }
}

// WithIndex sets the page used when a history traversal lands on an empty
// path. Default "index.html".
func WithIndex(page string) Option {
	return func(c *Controller) { c.index = page }
}

// WithApplyStale makes every retrieval apply its result when it completes,
// even when a later navigation was started meanwhile.
func WithApplyStale(on bool) Option {
	return func(c *Controller) { c.stale = on }
}

// WithSanitizer filters retrieved regions through p before injection.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// New creates a Controller.
func New(surface Surface, history History, fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		surface:  surface,
		history:  history,
		fetcher:  fetcher,
		logger:   slog.Default(),
		selector: "main",
		index:    "index.html",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current navigation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCurrent records p as the rendered page without retrieving anything.
// Used after a full-page load.
func (c *Controller) SetCurrent(p string) {
	c.mu.Lock()
	c.state = State{CurrentPath: p, HistoryDepth: c.history.Position()}
	c.mu.Unlock()
}

// OnContentReplaced registers fn to run after every content swap. A second
// registration under the same key replaces the first.
func (c *Controller) OnContentReplaced(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.hooks {
		if c.hooks[i].key == key {
			c.hooks[i].fn = fn
			return
		}
	}
	c.hooks = append(c.hooks, hook{key: key, fn: fn})
}

// Go starts NavigateTo on its own goroutine. Wait drains them.
func (c *Controller) Go(ctx context.Context, p string, recordHistory bool) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.NavigateTo(ctx, p, recordHistory)
	}()
}

// Wait blocks until every navigation started by Go has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// NavigateTo retrieves p and swaps its content region into the page. Any
// retrieval failure hands p to the surface for a native full-page load.
// Unless stale results are allowed, a response that arrives after a newer
// navigation has started is discarded.
func (c *Controller) NavigateTo(ctx context.Context, p string, recordHistory bool) {
	id := c.seq.Add(1)

	u, err := c.surface.Resolve(p)
	if err != nil {
		c.logger.Warn("nav: bad path, native navigation", "path", p, "error", err)
		c.surface.Assign(ctx, p)
		return
	}
	body, err := c.fetcher.Fetch(ctx, u)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if !c.stale && c.seq.Load() != id {
		c.logger.Debug("nav: stale response discarded", "path", p)
		return
	}
	if err != nil {
		c.logger.Warn("nav: fetch failed, native navigation", "path", p, "error", err)
		c.surface.Assign(ctx, u.String())
		return
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("nav: parse failed, native navigation", "path", p, "error", err)
		c.surface.Assign(ctx, u.String())
		return
	}

	var swapped bool
	if region := dom.Find(doc, c.selector); region != nil {
		swapped = c.surface.ReplaceRegion(c.selector, c.fragment(region))
		if swapped {
			if t := dom.Find(doc, "title"); t != nil {
				c.surface.SetTitle(strings.TrimSpace(dom.TextContent(t)))
			}
		}
	} else {
		c.logger.Warn("nav: content region missing, injecting body", "path", p, "selector", c.selector)
		swapped = c.surface.ReplaceRegion(c.selector, c.fragment(dom.Find(doc, "body")))
	}
	if !swapped {
		c.logger.Warn("nav: page has no content region, native navigation", "selector", c.selector)
		c.surface.Assign(ctx, u.String())
		return
	}

	c.mu.Lock()
	hooks := make([]hook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()
	for _, h := range hooks {
		h.fn()
	}

	if recordHistory {
		if err := c.history.Push(u.String()); err != nil {
			c.logger.Warn("nav: history push", "path", p, "error", err)
		}
	}
	c.mu.Lock()
	c.state = State{CurrentPath: p, HistoryDepth: c.history.Position()}
	c.mu.Unlock()

	c.logger.Info("nav: navigated", "path", p, "history", recordHistory)
}

// OnHistoryBack re-renders the page the location now points to, without
// adding a history entry.
func (c *Controller) OnHistoryBack(ctx context.Context) {
	c.NavigateTo(ctx, c.locationPage(), false)
}

// PopStateHandler returns a popstate listener that runs OnHistoryBack
// asynchronously, the way a browser delivers the event.
func (c *Controller) PopStateHandler(ctx context.Context) func() {
	return func() {
		c.Go(ctx, c.locationPage(), false)
	}
}

// locationPage is the last path segment of the current location, or the
// index page when there is none.
func (c *Controller) locationPage() string {
	p := c.surface.Location().Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return c.index
	}
	return p
}

// fragment returns copies of n's children, sanitised when a policy is set.
func (c *Controller) fragment(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var buf bytes.Buffer
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		html.Render(&buf, ch)
	}
	src := buf.Bytes()
	if c.policy != nil {
		src = c.policy.SanitizeBytes(src)
	}
	nodes, err := html.ParseFragment(bytes.NewReader(src), &html.Node{
		Type:     html.ElementNode,
		Data:     "main",
		DataAtom: atom.Main,
	})
	if err != nil {
		c.logger.Warn("nav: fragment parse", "error", err)
		return nil
	}
	return nodes
}

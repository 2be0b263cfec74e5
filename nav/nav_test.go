package nav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/hazyhaar/ongspa/dom"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const indexPage = `<html><head><title>Início</title></head><body>
<nav><a href="index.html">Início</a> <a href="cadastro.html">Cadastro</a></nav>
<main><h1>Bem-vindo</h1></main></body></html>`

var pages = map[string]string{
	"/index.html":    indexPage,
	"/cadastro.html": `<html><head><title>Cadastro</title></head><body><main><form id="f"><input id="cpf" name="cpf"></form><script>alert(1)</script></main></body></html>`,
	"/projetos.html": `<html><head><title>Projetos</title></head><body><main><h1>Projetos</h1></main></body></html>`,
	"/bare.html":     `<html><head><title>Bare</title></head><body><p id="bare">sem região</p></body></html>`,
}

type served struct {
	mu      sync.Mutex
	headers []http.Header
}

func (s *served) last() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[len(s.headers)-1]
}

func newServer(t *testing.T) (*httptest.Server, *served) {
	t.Helper()
	rec := &served{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.mu.Unlock()
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

type natives struct {
	mu   sync.Mutex
	urls []string
}

func (n *natives) load(_ context.Context, u *url.URL) {
	n.mu.Lock()
	n.urls = append(n.urls, u.String())
	n.mu.Unlock()
}

func (n *natives) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

type page struct {
	doc     *dom.Document
	history *dom.History
	native  *natives
}

func newPage(t *testing.T, base, body string) *page {
	t.Helper()
	n := &natives{}
	d := dom.New(dom.WithNativeLoader(n.load))
	loc, err := url.Parse(base + "/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Load([]byte(body), loc); err != nil {
		t.Fatal(err)
	}
	h := dom.NewHistory(d)
	if err := h.Push(loc.String()); err != nil {
		t.Fatal(err)
	}
	return &page{doc: d, history: h, native: n}
}

func newController(srv *httptest.Server, p *page, opts ...Option) *Controller {
	f := NewHTTPFetcher(WithClient(srv.Client()))
	return New(p.doc, p.history, f, opts...)
}

func TestNavigateTo_SwapsRegion(t *testing.T) {
	srv, rec := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p)

	var loaded int
	c.OnContentReplaced("count", func() { loaded++ })
	c.OnContentReplaced("count", func() { loaded++ })

	c.NavigateTo(context.Background(), "cadastro.html", true)

	if p.doc.QuerySelector("main #cpf") == nil {
		t.Fatalf("main not swapped: %s", p.doc.InnerHTML("main"))
	}
	if p.doc.QuerySelector("nav") == nil {
		t.Fatal("content outside the region was touched")
	}
	if got := p.doc.Title(); got != "Cadastro" {
		t.Fatalf("title = %q", got)
	}
	if loaded != 1 {
		t.Fatalf("content hooks ran %d times, want 1", loaded)
	}
	if got := p.doc.Location().Path; got != "/cadastro.html" {
		t.Fatalf("location = %q", got)
	}
	if st := c.State(); st.CurrentPath != "cadastro.html" || st.HistoryDepth != 2 {
		t.Fatalf("state = %+v", st)
	}
	if p.history.Len() != 2 {
		t.Fatalf("history len = %d", p.history.Len())
	}
	if len(p.native.list()) != 0 {
		t.Fatalf("unexpected native loads: %v", p.native.list())
	}

	h := rec.last()
	if h.Get("Cache-Control") != "no-cache, no-store, max-age=0" || h.Get("Pragma") != "no-cache" {
		t.Fatalf("cache headers = %v", h)
	}
}

func TestNavigateTo_FailureFallsBackToNative(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p)

	var loaded int
	c.OnContentReplaced("count", func() { loaded++ })
	c.NavigateTo(context.Background(), "missing.html", true)

	got := p.native.list()
	if len(got) != 1 || got[0] != srv.URL+"/missing.html" {
		t.Fatalf("native loads = %v", got)
	}
	if !strings.Contains(p.doc.InnerHTML("main"), "Bem-vindo") {
		t.Fatal("region changed on failure")
	}
	if loaded != 0 || p.history.Len() != 1 {
		t.Fatalf("hooks=%d history=%d after failure", loaded, p.history.Len())
	}
}

type unresolvable struct {
	*dom.Document
	assigned []string
}

func (u *unresolvable) Resolve(string) (*url.URL, error) { return nil, errors.New("bad ref") }

func (u *unresolvable) Assign(_ context.Context, ref string) { u.assigned = append(u.assigned, ref) }

func TestNavigateTo_BadPathFallsBackToNative(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	surface := &unresolvable{Document: p.doc}
	c := New(surface, p.history, NewHTTPFetcher(WithClient(srv.Client())))
	c.SetCurrent("index.html")

	c.NavigateTo(context.Background(), "cadastro.html", true)

	if len(surface.assigned) != 1 || surface.assigned[0] != "cadastro.html" {
		t.Fatalf("native loads = %v", surface.assigned)
	}
	if st := c.State(); st.CurrentPath != "index.html" || p.history.Len() != 1 {
		t.Fatalf("state = %+v, history = %d", st, p.history.Len())
	}
}

func TestNavigateTo_MissingRegionUsesBody(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p)

	var loaded int
	c.OnContentReplaced("count", func() { loaded++ })
	c.NavigateTo(context.Background(), "bare.html", false)

	if p.doc.QuerySelector("main #bare") == nil {
		t.Fatalf("body not injected: %s", p.doc.InnerHTML("main"))
	}
	if got := p.doc.Title(); got != "Início" {
		t.Fatalf("title copied from a page without region: %q", got)
	}
	if loaded != 1 {
		t.Fatalf("hooks ran %d times", loaded)
	}
	if p.history.Len() != 1 {
		t.Fatal("history pushed without recordHistory")
	}
}

func TestNavigateTo_PageWithoutRegion(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, `<html><body><p>sem main</p></body></html>`)
	c := newController(srv, p)

	c.NavigateTo(context.Background(), "projetos.html", true)

	if got := p.native.list(); len(got) != 1 || got[0] != srv.URL+"/projetos.html" {
		t.Fatalf("native loads = %v", got)
	}
}

func TestNavigateTo_Sanitizes(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p, WithSanitizer(RegionPolicy()))

	c.NavigateTo(context.Background(), "cadastro.html", false)

	inner := p.doc.InnerHTML("main")
	if strings.Contains(inner, "<script") {
		t.Fatalf("script survived: %s", inner)
	}
	if n := p.doc.QuerySelector("#cpf"); n == nil || dom.Attr(n, "name") != "cpf" {
		t.Fatalf("form control lost: %s", inner)
	}
}

func TestPopState_NoDuplicatePush(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p)
	ctx := context.Background()
	p.history.OnPopState(c.PopStateHandler(ctx))

	c.NavigateTo(ctx, "cadastro.html", true)
	if !p.history.Back() {
		t.Fatal("Back refused")
	}
	c.Wait()

	if !strings.Contains(p.doc.InnerHTML("main"), "Bem-vindo") {
		t.Fatalf("back did not restore index: %s", p.doc.InnerHTML("main"))
	}
	if p.history.Len() != 2 {
		t.Fatalf("history len = %d, want 2", p.history.Len())
	}
	if st := c.State(); st.CurrentPath != "index.html" || st.HistoryDepth != 1 {
		t.Fatalf("state = %+v", st)
	}

	if !p.history.Forward() {
		t.Fatal("Forward refused")
	}
	c.Wait()
	if p.doc.QuerySelector("#cpf") == nil || p.history.Len() != 2 {
		t.Fatal("forward did not restore cadastro")
	}
}

func TestOnHistoryBack_EmptyPathUsesIndex(t *testing.T) {
	srv, _ := newServer(t)
	p := newPage(t, srv.URL, indexPage)
	c := newController(srv, p)
	ctx := context.Background()

	c.NavigateTo(ctx, "projetos.html", false)
	root, _ := url.Parse(srv.URL + "/")
	p.doc.SetLocation(root)
	c.OnHistoryBack(ctx)

	if st := c.State(); st.CurrentPath != "index.html" {
		t.Fatalf("state = %+v", st)
	}
}

// gatedFetcher serves pages from memory; "slow.html" waits for release.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedFetcher) Fetch(_ context.Context, u *url.URL) ([]byte, error) {
	name := u.Path[strings.LastIndexByte(u.Path, '/')+1:]
	if name == "slow.html" {
		close(g.started)
		<-g.release
	}
	return []byte(`<html><head><title>` + name + `</title></head><body><main><p>` + name + `</p></main></body></html>`), nil
}

func TestNavigateTo_StaleGuard(t *testing.T) {
	for _, tc := range []struct {
		name  string
		stale bool
		want  string
	}{
		{"discard stale", false, "fast.html"},
		{"apply stale", true, "slow.html"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newPage(t, "http://example.test", indexPage)
			g := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
			c := New(p.doc, p.history, g, WithApplyStale(tc.stale))
			ctx := context.Background()

			c.Go(ctx, "slow.html", true)
			<-g.started
			c.NavigateTo(ctx, "fast.html", true)
			close(g.release)
			c.Wait()

			if got := p.doc.Title(); got != tc.want {
				t.Fatalf("title = %q, want %q", got, tc.want)
			}
			if got := c.State().CurrentPath; got != tc.want {
				t.Fatalf("current path = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPFetcher_Status(t *testing.T) {
	srv, _ := newServer(t)
	f := NewHTTPFetcher(WithClient(srv.Client()))
	u, _ := url.Parse(srv.URL + "/nope.html")

	_, err := f.Fetch(context.Background(), u)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	srv, _ := newServer(t)
	u, _ := url.Parse(srv.URL + "/index.html")

	_, err := NewHTTPFetcher(WithClient(srv.Client()), WithMaxBody(16)).Fetch(context.Background(), u)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	body, err := NewHTTPFetcher(WithClient(srv.Client())).Fetch(context.Background(), u)
	if err != nil || len(body) <= 16 {
		t.Fatalf("unlimited fetch = %d bytes, %v", len(body), err)
	}
}

type recordingNav struct {
	paths []string
}

func (r *recordingNav) Go(_ context.Context, p string, recordHistory bool) {
	if recordHistory {
		r.paths = append(r.paths, p)
	}
}

func TestInterceptLinks(t *testing.T) {
	p := newPage(t, "http://example.test", `<html><body><main>
<a href="cadastro.html"><span id="inner">Cadastro</span></a>
<a href="#topo">Topo</a>
<a href="https://outra.org/">Fora</a>
<a href="mailto:ong@example.org">Email</a>
<a>sem href</a>
</main></body></html>`)
	nav := &recordingNav{}
	ctx := context.Background()
	InterceptLinks(ctx, p.doc, nav)
	InterceptLinks(ctx, p.doc, nav)

	for _, sel := range []string{"#inner", "a[href=#topo]", "a[href=mailto:ong@example.org]"} {
		if err := p.doc.Click(ctx, sel); err != nil {
			t.Fatalf("click %s: %v", sel, err)
		}
	}
	if len(nav.paths) != 1 || nav.paths[0] != "cadastro.html" {
		t.Fatalf("intercepted = %v", nav.paths)
	}
	if len(p.native.list()) != 0 {
		t.Fatalf("native loads = %v", p.native.list())
	}
}

func TestIntercepts(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"cadastro.html", true},
		{"/projetos.html", true},
		{"", false},
		{"#sobre", false},
		{"http://example.org", false},
		{"HTTPS://example.org", false},
		{"mailto:a@b.c", false},
		{"//evil.example/cadastro.html", false},
		{"tel:+551134567890", false},
		{"projetos.html?aba=2", true},
	}
	for _, tt := range tests {
		if got := Intercepts(tt.href); got != tt.want {
			t.Errorf("Intercepts(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

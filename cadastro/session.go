package cadastro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/ongspa/dom"
	"github.com/hazyhaar/ongspa/form"
	"github.com/hazyhaar/ongspa/idgen"
	"github.com/hazyhaar/ongspa/kit"
	"github.com/hazyhaar/ongspa/mask"
	"github.com/hazyhaar/ongspa/nav"
	"github.com/hazyhaar/ongspa/notify"
	"github.com/hazyhaar/ongspa/store"
)

// ErrEmptyStep is returned by RunScript for a step with no action.
var ErrEmptyStep = errors.New("cadastro: empty script step")

// Session is one page shell: a live document with its history, in-place
// navigation, field masks and the registration pipeline.
type Session struct {
	ID string

	cfg      *Config
	logger   *slog.Logger
	doc      *dom.Document
	history  *dom.History
	nav      *nav.Controller
	fetcher  nav.Fetcher
	pipeline *form.Pipeline
	records  *store.List[form.Record]
	store    *store.Store
	owned    bool
	recorder *notify.Recorder

	client *http.Client
	now    func() time.Time
	extra  notify.Notifier

	// life outlives any single call; handlers bound to the page use it.
	life   context.Context
	cancel context.CancelFunc

	opMu    sync.Mutex
	popOnce sync.Once
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithStore uses st instead of opening cfg.DBPath. The caller keeps
// ownership.
func WithStore(st *store.Store) SessionOption {
	return func(s *Session) { s.store = st }
}

// WithHTTPClient sets the client used for every retrieval.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithClock sets the clock used by the registration pipeline.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithNotifier adds a notifier next to the built-in ones.
func WithNotifier(n notify.Notifier) SessionOption {
	return func(s *Session) { s.extra = n }
}

// NewSession wires a Session from cfg. Nothing is retrieved until Open.
func NewSession(cfg *Config, opts ...SessionOption) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Session{
		ID:       idgen.Prefixed("ses_", idgen.Default)(),
		cfg:      cfg,
		logger:   slog.Default(),
		client:   &http.Client{},
		now:      time.Now,
		recorder: &notify.Recorder{},
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("session", s.ID)
	s.life, s.cancel = context.WithCancel(kit.WithSessionID(context.Background(), s.ID))

	if s.store == nil {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("cadastro: open store: %w", err)
		}
		s.store = st
		s.owned = true
	}
	s.records = store.NewList[form.Record](s.store, cfg.Form.StorageKey, store.WithLogger(s.logger))

	s.doc = dom.New(dom.WithLogger(s.logger))
	s.doc.SetNativeLoader(s.nativeLoad)
	s.history = dom.NewHistory(s.doc)

	s.fetcher = nav.NewHTTPFetcher(
		nav.WithClient(s.client),
		nav.WithUserAgent(cfg.Fetch.UserAgent),
		nav.WithTimeout(cfg.Fetch.Timeout),
		nav.WithMaxBody(cfg.Fetch.MaxBody),
		nav.WithFetchLogger(s.logger),
	)
	navOpts := []nav.Option{
		nav.WithLogger(s.logger),
		nav.WithSelector(cfg.Navigation.ContentSelector),
		nav.WithIndex(cfg.Index),
		nav.WithApplyStale(cfg.Navigation.ApplyStale),
	}
	if cfg.SanitizeRegions() {
		navOpts = append(navOpts, nav.WithSanitizer(nav.RegionPolicy()))
	}
	s.nav = nav.New(s.doc, s.history, s.fetcher, navOpts...)

	notifiers := notify.Multi{s.recorder, notify.NewPage(s.doc), notify.NewLog(s.logger)}
	if s.extra != nil {
		notifiers = append(notifiers, s.extra)
	}
	s.pipeline = form.New(s.records, notifiers,
		form.WithLogger(s.logger),
		form.WithClock(s.now),
		form.WithMinAge(cfg.Form.MinAge),
	)
	return s, nil
}

// Close stops the session's handlers and releases the store when the
// session opened it.
func (s *Session) Close() error {
	s.nav.Wait()
	s.cancel()
	if s.owned {
		return s.store.Close()
	}
	return nil
}

// Open performs a full-page load of ref, resolved against the base URL, and
// wires the page: link interception, popstate, masks and form handlers.
// ctx bounds the load only; the handlers run under the session's lifetime.
func (s *Session) Open(ctx context.Context, ref string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	ctx = kit.WithSessionID(ctx, s.ID)
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("cadastro: base url: %w", err)
	}
	if ref == "" {
		ref = s.cfg.Index
	}
	u, err := base.Parse(ref)
	if err != nil {
		return fmt.Errorf("cadastro: open %q: %w", ref, err)
	}

	nav.InterceptLinks(s.life, s.doc, s.nav)
	s.popOnce.Do(func() {
		s.history.OnPopState(s.nav.PopStateHandler(s.life))
	})
	s.nav.OnContentReplaced("masks", func() { mask.Bind(s.doc) })
	s.nav.OnContentReplaced("pipeline", func() { s.pipeline.Attach(s.life, s.doc) })

	return s.load(ctx, u)
}

// load replaces the whole page with the document at u.
func (s *Session) load(ctx context.Context, u *url.URL) error {
	body, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return fmt.Errorf("cadastro: load %s: %w", u, err)
	}
	if err := s.doc.Load(body, u); err != nil {
		return fmt.Errorf("cadastro: parse %s: %w", u, err)
	}
	if err := s.history.Push(u.String()); err != nil {
		return fmt.Errorf("cadastro: history: %w", err)
	}
	s.nav.SetCurrent(pageName(u, s.cfg.Index))

	masks := mask.Bind(s.doc)
	forms := s.pipeline.Attach(s.life, s.doc)
	s.logger.Info("cadastro: page loaded", "url", u.String(), "masks", masks, "forms", forms)
	return nil
}

// nativeLoad is the document's full-page loader.
func (s *Session) nativeLoad(ctx context.Context, u *url.URL) {
	if err := s.load(ctx, u); err != nil {
		s.logger.Error("cadastro: native load failed", "url", u.String(), "error", err)
	}
}

// Click clicks the first element matching selector and waits for any
// navigation it started.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	err := s.doc.Click(ctx, selector)
	s.nav.Wait()
	return err
}

// Input types value into the element matching selector and returns the
// value left after the masks ran.
func (s *Session) Input(selector, value string) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.doc.Input(selector, value)
}

// Submit submits the form matching selector.
func (s *Session) Submit(selector string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.doc.Submit(selector)
}

// Navigate performs an in-place navigation to ref.
func (s *Session) Navigate(ctx context.Context, ref string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.nav.NavigateTo(ctx, ref, true)
}

// Back moves one history entry back and waits for the re-render.
func (s *Session) Back() bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	ok := s.history.Back()
	s.nav.Wait()
	return ok
}

// Forward moves one history entry forward and waits for the re-render.
func (s *Session) Forward() bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	ok := s.history.Forward()
	s.nav.Wait()
	return ok
}

// Process runs the registration pipeline on fields without a page.
func (s *Session) Process(ctx context.Context, fields map[string]string) (*form.Record, error) {
	return s.pipeline.Process(ctx, fields)
}

// Records returns every stored registration.
func (s *Session) Records(ctx context.Context) ([]form.Record, error) {
	return s.records.All(ctx)
}

// Markdown renders the element matching selector (the body when empty).
func (s *Session) Markdown(selector string) (string, error) {
	return s.doc.Markdown(selector)
}

// HTML renders the element matching selector, or the whole page when empty.
func (s *Session) HTML(selector string) string {
	if selector == "" {
		return s.doc.HTML()
	}
	return s.doc.InnerHTML(selector)
}

// Notices returns the notices raised since the last call.
func (s *Session) Notices() []notify.Notice {
	return s.recorder.Drain()
}

// PageState describes what the session shows.
type PageState struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Navigation nav.State `json:"navigation"`
}

// State returns the current page state.
func (s *Session) State() PageState {
	return PageState{
		URL:        s.doc.Location().String(),
		Title:      s.doc.Title(),
		Navigation: s.nav.State(),
	}
}

// Document exposes the live page.
func (s *Session) Document() *dom.Document {
	return s.doc
}

// RunScript runs steps in order and stops at the first failing one.
func (s *Session) RunScript(ctx context.Context, steps []Step) error {
	for i, st := range steps {
		var err error
		switch {
		case st.Open != "":
			err = s.Open(ctx, st.Open)
		case st.Click != "":
			err = s.Click(ctx, st.Click)
		case st.Input != nil:
			_, err = s.Input(st.Input.Selector, st.Input.Value)
		case st.Submit != "":
			err = s.Submit(st.Submit)
		case st.Back:
			s.Back()
		case st.Forward:
			s.Forward()
		default:
			err = ErrEmptyStep
		}
		if err != nil {
			return fmt.Errorf("cadastro: step %d: %w", i+1, err)
		}
	}
	return nil
}

func pageName(u *url.URL, index string) string {
	p := u.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return index
	}
	return p
}

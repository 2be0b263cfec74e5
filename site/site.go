// Package site serves the registration pages the shell navigates: the
// embedded demo site or a directory of pages, behind the shield stack.
package site

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/ongspa/form"
	"github.com/hazyhaar/ongspa/shield"
)

//go:embed static
var staticFS embed.FS

// Pages returns the embedded demo site.
func Pages() fs.FS {
	sub, _ := fs.Sub(staticFS, "static")
	return sub
}

// RecordLister lists stored registrations.
type RecordLister interface {
	All(ctx context.Context) ([]form.Record, error)
}

// Server serves pages and a read-only view of the stored registrations.
type Server struct {
	pages   fs.FS
	index   string
	records RecordLister
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithDir serves pages from dir instead of the embedded site.
func WithDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.pages = os.DirFS(dir)
		}
	}
}

// WithPages serves pages from fsys.
func WithPages(fsys fs.FS) Option {
	return func(s *Server) { s.pages = fsys }
}

// WithIndex sets the page served for "/". Default "index.html".
func WithIndex(name string) Option {
	return func(s *Server) { s.index = name }
}

// WithRecords exposes registrations under /api/cadastros.
func WithRecords(r RecordLister) Option {
	return func(s *Server) { s.records = r }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		pages:  Pages(),
		index:  "index.html",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.SiteStack() {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/cadastros", s.handleRecords)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, "")
	})
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, chi.URLParam(r, "*"))
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("site: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, name string) {
	dir := name == "" || strings.HasSuffix(name, "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if dir {
		name = path.Join(name, s.index)
	}
	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(s.pages, name)
	if err != nil {
		shield.GetLogger(r.Context()).Debug("site: page not found", "page", name)
		http.NotFound(w, r)
		return
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.Write(data)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record store"})
		return
	}
	recs, err := s.records.All(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("site: list records", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []form.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

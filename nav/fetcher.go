package nav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Fetcher retrieves a document.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, u *url.URL) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) { return f(ctx, u) }

// HTTPFetcher performs cache-bypassing GETs: every request asks the server
// and any intermediary to revalidate.
type HTTPFetcher struct {
	client  *http.Client
	ua      string
	maxBody int64
	timeout time.Duration
	logger  *slog.Logger
}

// FetchOption configures an HTTPFetcher.
type FetchOption func(*HTTPFetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) FetchOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetchOption {
	return func(f *HTTPFetcher) { f.ua = ua }
}

// WithMaxBody caps the size of a response body. Larger responses fail
// with ErrTooLarge.
func WithMaxBody(n int64) FetchOption {
	return func(f *HTTPFetcher) { f.maxBody = n }
}

// WithTimeout bounds a single retrieval. Zero means no timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithFetchLogger sets a custom logger.
func WithFetchLogger(l *slog.Logger) FetchOption {
	return func(f *HTTPFetcher) { f.logger = l }
}

// NewHTTPFetcher creates an HTTPFetcher. There is no timeout unless one is set.
func NewHTTPFetcher(opts ...FetchOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{},
		ua:      "Mozilla/5.0 (compatible; ongspa/1.0)",
		maxBody: 10 << 20,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs u and returns the body of a 2xx response. Other statuses yield
// a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("nav: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache, no-store, max-age=0")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nav: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: u.String(), Code: resp.StatusCode}
	}

	body, err := readLimited(resp.Body, f.maxBody)
	if err != nil {
		return nil, fmt.Errorf("nav: read %s: %w", u, err)
	}

	f.logger.Debug("nav: fetched", "url", u.String(), "status", resp.StatusCode, "size", len(body))
	return body, nil
}

// readLimited reads r whole, failing with ErrTooLarge past max bytes. A
// truncated page is never handed back.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

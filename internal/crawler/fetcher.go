package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
)

// ErrFetch is the sentinel wrapped by every FetchError.
var ErrFetch = errors.New("fetch failed")

// ErrUnsupportedContent is returned for responses that are not HTML or text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// FetchError describes a page that could not be fetched.
// Fetch failures are recoverable: the scheduler logs them and abandons the URL.
type FetchError struct {
	// URL is the page that failed.
	URL string

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap lets errors.Is match both ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Fetcher retrieves the body of a page.
type Fetcher interface {
	// Fetch performs one bounded-time GET and returns the body of a 200 response.
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher is the Fetcher used in production.
// It is safe for concurrent use.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	headersFor  func(host string) http.Header
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithSiteHeaders sets a function returning extra headers, such as a
// Cookie, for each host.
func WithSiteHeaders(fn func(host string) http.Header) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headersFor = fn
	}
}

// NewHTTPFetcher creates a fetcher using client. A nil client selects a
// new http.Client with default settings.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &HTTPFetcher{
		client:      client,
		timeout:     10 * time.Second,
		userAgent:   "rufus/1.0",
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher. Any status other than 200, a timeout, or a
// non-HTML body yields a *FetchError. Bodies are converted to UTF-8.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if f.headersFor != nil {
		if u, err := url.Parse(rawURL); err == nil {
			for k, vs := range f.headersFor(u.Host) {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextual(contentType) {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)}
	}

	body := io.LimitReader(resp.Body, f.maxBodySize)
	utf8Body, err := charset.NewReader(body, contentType)
	if err != nil {
		utf8Body = body
	}
	data, err := io.ReadAll(utf8Body)
	if err != nil {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	return string(data), nil
}

// isTextual reports whether a Content-Type can be parsed as HTML.
// A missing Content-Type is accepted.
func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	default:
		return false
	}
}

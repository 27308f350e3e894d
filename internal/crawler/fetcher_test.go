package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestHTTPFetcher tests fetching pages over HTTP.
func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("returns body of 200 response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("User-Agent"); got != "TestBot/1.0" {
				t.Errorf("unexpected User-Agent %q", got)
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body>Hello</body></html>`))
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(), WithUserAgent("TestBot/1.0"))
		body, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "Hello") {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("non-200 is a FetchError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		f := NewHTTPFetcher(server.Client())
		_, err := f.Fetch(context.Background(), server.URL+"/missing")

		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 FetchError, got %v", err)
		}
	})

	t.Run("redirects are followed", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.Handle("/old", http.RedirectHandler("/new", http.StatusMovedPermanently))
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("moved here"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		body, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL+"/old")
		if err != nil || body != "moved here" {
			t.Errorf("expected redirected body, got %q, %v", body, err)
		}
	})

	t.Run("timeout is a FetchError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			_, _ = w.Write([]byte("late"))
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(), WithTimeout(50*time.Millisecond))
		_, err := f.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrFetch) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected ErrFetch wrapping DeadlineExceeded, got %v", err)
		}
	})

	t.Run("binary content is rejected", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		}))
		defer server.Close()

		_, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrUnsupportedContent) || !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrUnsupportedContent, got %v", err)
		}
	})

	t.Run("body is limited", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(server.Client(), WithMaxBodySize(10)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(body))
		}
	})

	t.Run("legacy charsets are decoded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("caf\xe9"))
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "café" {
			t.Errorf("expected café, got %q", body)
		}
	})

	t.Run("site headers are sent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Cookie"); got != "session=abc" {
				t.Errorf("expected cookie, got %q", got)
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(), WithSiteHeaders(func(string) http.Header {
			return http.Header{"Cookie": []string{"session=abc"}}
		}))
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("connection errors are FetchErrors", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := NewHTTPFetcher(nil, WithTimeout(time.Second)).Fetch(context.Background(), addr)
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 0 {
			t.Errorf("expected FetchError without status, got %v", err)
		}
	})
}

// TestFetchErrorMessage tests error formatting.
func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *FetchError
		want string
	}{
		{&FetchError{URL: "u", StatusCode: 500}, "fetch u: status 500"},
		{&FetchError{URL: "u", Err: errors.New("boom")}, "fetch u: boom"},
		{&FetchError{URL: "u", StatusCode: 200, Err: errors.New("bad")}, "fetch u: status 200: bad"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

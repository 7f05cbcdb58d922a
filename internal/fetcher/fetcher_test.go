package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestFetcher returns a Fetcher that never waits between attempts.
func newTestFetcher(opts ...Option) *Fetcher {
	base := []Option{WithBackoff(0), WithTimeout(5 * time.Second)}
	return New("InfoSearchBot/1.0", append(base, opts...)...)
}

// TestFetch tests single successful requests.
func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends identification headers", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotAccept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer server.Close()

		body, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "hello") {
			t.Errorf("expected body to contain 'hello', got %q", body)
		}
		if gotUA != "InfoSearchBot/1.0" {
			t.Errorf("expected user agent 'InfoSearchBot/1.0', got %q", gotUA)
		}
		if !strings.Contains(gotAccept, "text/html") {
			t.Errorf("expected Accept to include text/html, got %q", gotAccept)
		}
	})

	t.Run("decodes declared charset", func(t *testing.T) {
		t.Parallel()

		// "Привет" in windows-1251.
		cp1251 := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=windows-1251")
			_, _ = w.Write([]byte("<html><body>"))
			_, _ = w.Write(cp1251)
			_, _ = w.Write([]byte("</body></html>"))
		}))
		defer server.Close()

		body, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "Привет") {
			t.Errorf("expected decoded text, got %q", body)
		}
	})

	t.Run("sniffs meta charset when header has none", func(t *testing.T) {
		t.Parallel()

		cp1251 := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><meta charset="windows-1251"></head><body>`))
			_, _ = w.Write(cp1251)
			_, _ = w.Write([]byte("</body></html>"))
		}))
		defer server.Close()

		body, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "Привет") {
			t.Errorf("expected decoded text, got %q", body)
		}
	})

	t.Run("keeps utf-8 past the sniff window", func(t *testing.T) {
		t.Parallel()

		head := "<html><head><script>" + strings.Repeat("var x = 1;\n", 200) + "</script></head>"
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(head + "<body><p>Привет мир</p></body></html>"))
		}))
		defer server.Close()

		body, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "Привет мир") {
			t.Errorf("expected utf-8 text intact, got tail %q", body[len(body)-60:])
		}
	})

	t.Run("keeps utf-8 cut at max size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>мир</p>"))
		}))
		defer server.Close()

		// The limit splits the second Cyrillic letter.
		body, err := newTestFetcher(WithMaxBodySize(6)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(body, "<p>м") {
			t.Errorf("expected utf-8 prefix kept, got %q", body)
		}
	})

	t.Run("applies per-host headers", func(t *testing.T) {
		t.Parallel()

		var gotCookie string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := newTestFetcher(WithHeaders(func(string) map[string]string {
			return map[string]string{"Cookie": "session=1"}
		}))
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotCookie != "session=1" {
			t.Errorf("expected cookie 'session=1', got %q", gotCookie)
		}
	})

	t.Run("truncates body at max size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		}))
		defer server.Close()

		body, err := newTestFetcher(WithMaxBodySize(100)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 100 {
			t.Errorf("expected 100 bytes, got %d", len(body))
		}
	})
}

// TestFetchRetries tests retry and backoff behavior.
func TestFetchRetries(t *testing.T) {
	t.Parallel()

	t.Run("503 on every attempt exhausts retries", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if !errors.Is(err, ErrTransientStatus) {
			t.Errorf("expected ErrTransientStatus in chain, got %v", err)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("recovers after transient failure", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("recovered"))
		}))
		defer server.Close()

		body, err := newTestFetcher().Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "recovered" {
			t.Errorf("expected 'recovered', got %q", body)
		}
		if got := attempts.Load(); got != 2 {
			t.Errorf("expected 2 attempts, got %d", got)
		}
	})

	t.Run("does not retry 404", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestFetcher().Fetch(context.Background(), server.URL)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", statusErr.StatusCode)
		}
		if !errors.Is(err, ErrPermanentStatus) {
			t.Errorf("expected ErrPermanentStatus, got %v", err)
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("expected 1 attempt, got %d", got)
		}
	})

	t.Run("respects custom attempt count", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestFetcher(WithMaxAttempts(5)).Fetch(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected error")
		}
		if got := attempts.Load(); got != 5 {
			t.Errorf("expected 5 attempts, got %d", got)
		}
	})

	t.Run("cancellation stops backoff", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		f := New("InfoSearchBot/1.0", WithBackoff(time.Hour))
		start := time.Now()
		_, err := f.Fetch(ctx, server.URL)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("backoff was not interrupted")
		}
	})
}

// TestFetchInvalidURL tests that malformed targets fail without a request.
func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"not a url",
		"ftp://example.com/file",
		"http://",
		"://missing-scheme",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			_, err := newTestFetcher().Fetch(context.Background(), raw)
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL for %q, got %v", raw, err)
			}
		})
	}
}

// TestParseRetryAfter tests Retry-After parsing and capping.
func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{" 5 ", 5 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"3600", maxRetryAfter},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

// TestStatusError tests classification of HTTP statuses.
func TestStatusError(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 502, 503, 504} {
		if !(&StatusError{StatusCode: code}).Retryable() {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 410, 501} {
		if (&StatusError{StatusCode: code}).Retryable() {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

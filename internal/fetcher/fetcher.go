package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	// defaultTimeout bounds a single request.
	defaultTimeout = 30 * time.Second

	// defaultMaxAttempts counts the first try.
	defaultMaxAttempts = 3

	// defaultBackoff is the wait before the second attempt.
	defaultBackoff = 1 * time.Second

	// defaultMaxBodySize limits how much of a response body is read.
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// maxRetryAfter caps how long a Retry-After header can stall the crawl.
	maxRetryAfter = 30 * time.Second

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"
)

// Fetcher downloads pages with retries and charset decoding.
// It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	maxBodySize int64
	headers     func(host string) map[string]string
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxAttempts sets the total number of tries for transient failures.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the wait before the first retry. It doubles on each
// later retry. Zero disables waiting.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.backoff = d
		}
	}
}

// WithMaxBodySize limits the response body size. Zero keeps the default.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeaders sets a lookup of extra request headers per host.
func WithHeaders(lookup func(host string) map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = lookup
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that identifies itself as userAgent.
func New(userAgent string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{},
		userAgent:   userAgent,
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBodySize: defaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Client returns the underlying HTTP client so robots.txt requests share
// the same transport.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// UserAgent returns the configured User-Agent.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch returns the decoded HTML of rawURL.
//
// Responses with status 429, 500, 502, 503 or 504 and network errors are
// retried up to the configured number of attempts, waiting backoff,
// 2*backoff, 4*backoff and so on between them. Other statuses and
// malformed URLs fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := parseTarget(rawURL)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := f.backoff << (attempt - 1)
			var statusErr *StatusError
			if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > wait {
				wait = statusErr.RetryAfter
			}
			if err := sleepContext(ctx, wait); err != nil {
				return "", err
			}
		}

		body, err := f.fetchOnce(ctx, u)
		if err == nil {
			return body, nil
		}
		if !f.retryable(ctx, err) {
			return "", err
		}

		lastErr = err
		f.logger.Debug("transient fetch failure",
			"url", rawURL,
			"attempt", attempt+1,
			"max_attempts", f.maxAttempts,
			"error", err,
		)
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, f.maxAttempts, lastErr)
}

// fetchOnce performs a single GET request.
func (f *Fetcher) fetchOnce(ctx context.Context, u *url.URL) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)
	if f.headers != nil {
		for k, v := range f.headers(u.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", u, err)
	}

	text, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode body of %s: %w", u, err)
	}
	return text, nil
}

// decodeBody converts body to UTF-8. A charset from the header or a BOM always
// wins. Otherwise valid UTF-8 is kept as is, and only bytes that are not UTF-8
// go through the sniffed (meta or default) encoding.
func decodeBody(body []byte, contentType string) (string, error) {
	enc, _, certain := charset.DetermineEncoding(body, contentType)
	if !certain && validUTF8Prefix(body) {
		return strings.ToValidUTF8(string(body), "\uFFFD"), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(decoded), "\uFFFD"), nil
}

// validUTF8Prefix is utf8.Valid that tolerates one rune cut off at the end,
// which happens when the body hits the size limit.
func validUTF8Prefix(b []byte) bool {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				b = b[:i]
			}
			break
		}
	}
	return utf8.Valid(b)
}

// retryable reports whether err deserves another attempt.
func (f *Fetcher) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrInvalidURL) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Network, timeout and body read errors.
	return true
}

func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidURL, rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// parseRetryAfter understands the delta-seconds form only.
func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

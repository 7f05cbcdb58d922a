package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	// robotsTxtPath is the well-known robots.txt location.
	robotsTxtPath = "/robots.txt"

	// maxRobotsBodyBytes limits how much of robots.txt is read.
	maxRobotsBodyBytes = 512 * 1024

	// DefaultCrawlDelay applies when robots.txt has no Crawl-delay for us.
	DefaultCrawlDelay = 1 * time.Second
)

// robotsEntry is one cached robots.txt. A nil data means allow all.
type robotsEntry struct {
	data *robotstxt.RobotsData
}

// RobotsPolicy answers robots.txt questions for the crawler.
// Each scheme and host is fetched once per process and never expires.
type RobotsPolicy struct {
	client       *http.Client
	userAgent    string
	defaultDelay time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

// RobotsOption configures a RobotsPolicy.
type RobotsOption func(*RobotsPolicy)

// WithDefaultCrawlDelay sets the delay used when robots.txt does not set one.
func WithDefaultCrawlDelay(d time.Duration) RobotsOption {
	return func(p *RobotsPolicy) {
		if d >= 0 {
			p.defaultDelay = d
		}
	}
}

// WithRobotsLogger sets the logger for fallback warnings.
func WithRobotsLogger(logger *slog.Logger) RobotsOption {
	return func(p *RobotsPolicy) {
		p.logger = logger
	}
}

// NewRobotsPolicy creates a RobotsPolicy that requests robots.txt with client
// and matches groups against userAgent.
func NewRobotsPolicy(client *http.Client, userAgent string, opts ...RobotsOption) *RobotsPolicy {
	if client == nil {
		client = &http.Client{}
	}
	p := &RobotsPolicy{
		client:       client,
		userAgent:    userAgent,
		defaultDelay: DefaultCrawlDelay,
		logger:       slog.Default(),
		cache:        make(map[string]*robotsEntry),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CanFetch reports whether the crawler may request rawURL.
// Unparseable URLs are allowed; the fetch itself will reject them.
func (p *RobotsPolicy) CanFetch(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	entry := p.entryFor(ctx, u)
	if entry.data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, p.userAgent)
}

// CrawlDelay returns the Crawl-delay that applies to rawURL's domain.
// It does not fetch robots.txt; domains not seen yet get the default.
func (p *RobotsPolicy) CrawlDelay(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return p.defaultDelay
	}

	p.mu.Lock()
	entry, ok := p.cache[domainKey(u)]
	p.mu.Unlock()

	if !ok || entry.data == nil {
		return p.defaultDelay
	}

	group := entry.data.FindGroup(p.userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return p.defaultDelay
	}
	return group.CrawlDelay
}

// Len returns the number of cached domains.
func (p *RobotsPolicy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// entryFor returns the cached entry for u's domain, loading it on first use.
func (p *RobotsPolicy) entryFor(ctx context.Context, u *url.URL) *robotsEntry {
	key := domainKey(u)

	p.mu.Lock()
	entry, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return entry
	}

	entry = p.load(ctx, key)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[key]; ok {
		return existing
	}
	p.cache[key] = entry
	return entry
}

// load fetches and parses robots.txt for key. Every failure yields allow-all.
func (p *RobotsPolicy) load(ctx context.Context, key string) *robotsEntry {
	robotsURL := key + robotsTxtPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		p.logger.Warn("robots.txt request failed, allowing all", "url", robotsURL, "error", err)
		return &robotsEntry{}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("robots.txt fetch failed, allowing all", "url", robotsURL, "error", err)
		return &robotsEntry{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		p.logger.Warn("robots.txt read failed, allowing all", "url", robotsURL, "error", err)
		return &robotsEntry{}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		p.logger.Debug("no robots.txt, allowing all", "url", robotsURL, "status", resp.StatusCode)
		return &robotsEntry{}
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		p.logger.Warn("robots.txt parse failed, allowing all", "url", robotsURL, "error", err)
		return &robotsEntry{}
	}

	return &robotsEntry{data: data}
}

func domainKey(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

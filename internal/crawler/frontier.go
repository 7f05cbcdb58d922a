package crawler

import (
	"net/url"
	"sort"
	"sync"

	"github.com/qwc999/infpoisk/internal/model"
)

// compactThreshold is the number of popped slots after which the queue
// slice is copied down.
const compactThreshold = 1024

// Frontier is the breadth-first queue of URLs to crawl.
// It deduplicates against both the queue and the visited set, enforces the
// depth ceiling on push and keeps per-domain visit counts for the page cap.
// All methods are safe for concurrent use; each one is atomic.
type Frontier struct {
	mu sync.Mutex

	queue  []model.FrontierEntry
	head   int
	queued map[string]struct{}

	visited      map[string]struct{}
	domainCounts map[string]int

	maxDepth   int
	domainCap  int
	domainCaps map[string]int
	ignore     func(u *url.URL) bool
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithDomainCaps sets per-host page caps that override the global cap.
// Keys are lower-case hosts.
func WithDomainCaps(caps map[string]int) FrontierOption {
	return func(f *Frontier) {
		for host, limit := range caps {
			f.domainCaps[host] = limit
		}
	}
}

// WithIgnore sets a predicate; URLs for which it returns true are never enqueued.
func WithIgnore(ignore func(u *url.URL) bool) FrontierOption {
	return func(f *Frontier) {
		f.ignore = ignore
	}
}

// NewFrontier creates an empty Frontier.
// domainCap is the default number of visits allowed per host.
func NewFrontier(maxDepth, domainCap int, opts ...FrontierOption) *Frontier {
	f := &Frontier{
		queued:       make(map[string]struct{}),
		visited:      make(map[string]struct{}),
		domainCounts: make(map[string]int),
		maxDepth:     maxDepth,
		domainCap:    domainCap,
		domainCaps:   make(map[string]int),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Push normalizes raw against base and enqueues it at depth.
// It returns false when the URL is invalid, ignored, deeper than the
// ceiling, already visited or already queued.
func (f *Frontier) Push(raw, base string, depth int) bool {
	normalized := NormalizeURL(raw, base)
	if normalized == "" || !IsValidURL(normalized) {
		return false
	}
	if f.ignore != nil {
		if u, err := url.Parse(normalized); err == nil && f.ignore(u) {
			return false
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if depth > f.maxDepth {
		return false
	}
	if _, ok := f.visited[normalized]; ok {
		return false
	}
	if _, ok := f.queued[normalized]; ok {
		return false
	}

	f.queue = append(f.queue, model.FrontierEntry{URL: normalized, Depth: depth})
	f.queued[normalized] = struct{}{}
	return true
}

// Pop removes and returns the oldest entry. The URL leaves the queued set,
// so it can be pushed again later unless it gets marked visited.
func (f *Frontier) Pop() (model.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head >= len(f.queue) {
		return model.FrontierEntry{}, false
	}

	entry := f.queue[f.head]
	f.queue[f.head] = model.FrontierEntry{}
	f.head++
	delete(f.queued, entry.URL)

	if f.head >= compactThreshold && f.head*2 >= len(f.queue) {
		remaining := copy(f.queue, f.queue[f.head:])
		f.queue = f.queue[:remaining]
		f.head = 0
	}

	return entry, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// MaxDepth returns the depth ceiling.
func (f *Frontier) MaxDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxDepth
}

// IsVisited reports whether u has been marked visited.
func (f *Frontier) IsVisited(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[u]
	return ok
}

// MarkVisited records u as visited and increments its domain count.
// It returns false if u was already visited.
func (f *Frontier) MarkVisited(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[u]; ok {
		return false
	}
	f.visited[u] = struct{}{}
	f.domainCounts[domainOf(u)]++
	return true
}

// Restore loads visited URLs from a checkpoint. Domain counts are not
// touched; caps apply per run.
func (f *Frontier) Restore(urls []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range urls {
		f.visited[u] = struct{}{}
	}
}

// DomainCapReached reports whether u's host has used up its visit budget.
func (f *Frontier) DomainCapReached(u string) bool {
	host := domainOf(u)

	f.mu.Lock()
	defer f.mu.Unlock()

	limit := f.domainCap
	if override, ok := f.domainCaps[host]; ok {
		limit = override
	}
	return f.domainCounts[host] >= limit
}

// DomainCount returns how many URLs of host were visited in this run.
func (f *Frontier) DomainCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.domainCounts[host]
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Visited returns a sorted snapshot of the visited set.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	urls := make([]string, 0, len(f.visited))
	for u := range f.visited {
		urls = append(urls, u)
	}
	f.mu.Unlock()

	sort.Strings(urls)
	return urls
}

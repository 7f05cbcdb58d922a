package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/model"
)

// discardLogger drops all output.
var discardLogger = slog.New(slog.DiscardHandler)

// noSleep skips politeness delays in tests.
func noSleep(context.Context, time.Duration) {}

// hostRouter is an http.RoundTripper that serves fake hosts such as a.test
// from in-process handlers.
type hostRouter map[string]http.Handler

func (h hostRouter) RoundTrip(req *http.Request) (*http.Response, error) {
	handler, ok := h[req.URL.Host]
	if !ok {
		return nil, fmt.Errorf("no route to host %s", req.URL.Host)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// site is a fake host with a robots.txt and a set of pages.
// Every request to a page path is counted.
type site struct {
	robots string
	pages  map[string]string
	status map[string]int

	mu   sync.Mutex
	hits map[string]int
}

func newSite(robots string) *site {
	return &site{
		robots: robots,
		pages:  make(map[string]string),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/robots.txt" {
		if s.robots == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(s.robots))
		return
	}

	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()

	if code, ok := s.status[path]; ok {
		w.WriteHeader(code)
		return
	}
	body, ok := s.pages[path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// articlePage renders an HTML page with an <article> body and links.
func articlePage(title, body string, links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + "</title></head><body>")
	sb.WriteString("<article>" + body + "</article><ul>")
	for _, link := range links {
		sb.WriteString(`<li><a href="` + link + `">link</a></li>`)
	}
	sb.WriteString("</ul></body></html>")
	return sb.String()
}

// testConfig returns a valid config writing into dir.
func testConfig(dir string, seeds ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.SeedURLs = seeds
	cfg.OutputDir = dir
	cfg.IndexEnabled = false
	return cfg
}

// memStore is an in-memory DocumentStore.
type memStore struct {
	mu          sync.Mutex
	docs        []*model.Document
	lastID      int
	state       *model.CrawlState
	loadErr     error
	saveErr     error
	checkpoints int
	visited     []string
}

func (m *memStore) LoadState() (*model.CrawlState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return &model.CrawlState{}, nil
	}
	m.lastID = m.state.LastDocID
	return m.state, nil
}

func (m *memStore) NextID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastID + 1
}

func (m *memStore) Save(doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs = append(m.docs, doc)
	m.lastID = doc.ID
	return nil
}

func (m *memStore) SaveState(visited []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints++
	m.visited = visited
	return nil
}

func (m *memStore) checkpointCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpoints
}

// allowAll is a RobotsChecker that allows everything with no delay.
type allowAll struct{}

func (allowAll) CanFetch(context.Context, string) bool { return true }
func (allowAll) CrawlDelay(string) time.Duration       { return 0 }

// staticFetcher serves pages from a map; unknown URLs fail.
type staticFetcher struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *staticFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.calls.Add(1)
	if body, ok := f.pages[u]; ok {
		return body, nil
	}
	return "", errors.New("not found")
}

// blockingFetcher blocks every fetch until release is closed.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *blockingFetcher) Fetch(context.Context, string) (string, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return articlePage("t", strings.Repeat("x", 600)), nil
}

// fakeRecorder records calls from the orchestrator.
type fakeRecorder struct {
	mu       sync.Mutex
	started  []*model.RunRecord
	finished []*model.RunRecord
	docs     []int
	startErr error
}

func (r *fakeRecorder) StartRun(_ context.Context, run *model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started = append(r.started, run)
	return nil
}

func (r *fakeRecorder) RecordDocument(_ context.Context, _ string, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc.ID)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, run *model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
	return nil
}

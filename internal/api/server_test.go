package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/corpus"
	"github.com/qwc999/infpoisk/internal/crawler"
	"github.com/qwc999/infpoisk/internal/metrics"
	"github.com/qwc999/infpoisk/internal/model"
)

var discardLogger = slog.New(slog.DiscardHandler)

// gateFetcher blocks each fetch until release is closed.
type gateFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateFetcher() *gateFetcher {
	return &gateFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *gateFetcher) Fetch(context.Context, string) (string, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return "<html><body><article>short</article></body></html>", nil
}

type allowAll struct{}

func (allowAll) CanFetch(context.Context, string) bool { return true }
func (allowAll) CrawlDelay(string) time.Duration       { return 0 }

type fakeRuns struct {
	runs []*model.RunRecord
	err  error
	got  int
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]*model.RunRecord, error) {
	f.got = limit
	return f.runs, f.err
}

// newTestServer returns a server whose crawls use f and write into a
// temporary directory.
func newTestServer(t *testing.T, f crawler.PageFetcher, opts ...Option) (*Server, *crawler.Controller) {
	t.Helper()

	factory := func(cfg *config.Config) (*crawler.Orchestrator, func(), error) {
		store, err := corpus.Open(cfg.OutputDir, corpus.WithLogger(discardLogger))
		if err != nil {
			return nil, nil, err
		}
		o, err := crawler.New(cfg, crawler.Dependencies{Fetcher: f, Robots: allowAll{}, Store: store},
			crawler.WithLogger(discardLogger))
		return o, nil, err
	}
	ctrl := crawler.NewController(factory, crawler.WithControllerLogger(discardLogger))

	base := config.NewConfig()
	base.OutputDir = t.TempDir()
	base.IndexEnabled = false

	all := append([]Option{WithLogger(discardLogger)}, opts...)
	return NewServer(ctrl, base, all...), ctrl
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, newGateFetcher())
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
}

func TestCrawlLifecycle(t *testing.T) {
	t.Parallel()

	f := newGateFetcher()
	s, ctrl := newTestServer(t, f)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/crawl/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := decode(t, rec)
	if st["running"] != false || st["state"] != "idle" {
		t.Errorf("expected idle status, got %v", st)
	}

	rec = do(t, h, http.MethodPost, "/api/crawl/stop", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 when idle, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/crawl/start", `{"seed_urls":["https://a.test/"],"max_pages":5,"max_depth":0}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	started := decode(t, rec)
	if started["status"] != "started" || started["run_id"] == "" {
		t.Errorf("unexpected start body %v", started)
	}
	<-f.started

	rec = do(t, h, http.MethodPost, "/api/crawl/start", `{"seed_urls":["https://b.test/"]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Crawl already in progress"}` {
		t.Errorf("unexpected conflict body %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/crawl/status", "")
	st = decode(t, rec)
	if st["running"] != true || st["state"] != "running" || st["run_id"] != started["run_id"] {
		t.Errorf("expected running status, got %v", st)
	}

	rec = do(t, h, http.MethodPost, "/api/crawl/stop", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "stopping" {
		t.Errorf("unexpected stop response %d %s", rec.Code, rec.Body.String())
	}

	close(f.release)
	ctrl.Wait()

	rec = do(t, h, http.MethodGet, "/api/crawl/status", "")
	st = decode(t, rec)
	if st["running"] != false || st["state"] != "completed" {
		t.Errorf("expected completed status, got %v", st)
	}
	stats, ok := st["stats"].(map[string]any)
	if !ok || stats["urls_visited"] != 1.0 {
		t.Errorf("expected 1 URL visited, got %v", st["stats"])
	}
}

func TestStartValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"seed_urls":`},
		{name: "no seeds", body: `{"seed_urls":[]}`},
		{name: "bad seed", body: `{"seed_urls":["ftp://a.test"]}`},
		{name: "negative depth", body: `{"seed_urls":["https://a.test"],"max_depth":-1}`},
		{name: "zero pages", body: `{"seed_urls":["https://a.test"],"max_pages":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := newTestServer(t, newGateFetcher())
			rec := do(t, s.Handler(), http.MethodPost, "/api/crawl/start", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Error("expected error field")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncSaved()
	m.IncURL(metrics.OutcomeVisited)

	s, _ := newTestServer(t, newGateFetcher(), WithGatherer(reg))
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "infpoisk_documents_saved_total 1") {
		t.Errorf("expected saved counter\n%s", body)
	}
	if !strings.Contains(body, `infpoisk_urls_total{outcome="visited"} 1`) {
		t.Errorf("expected URL counter\n%s", body)
	}
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("disabled without index", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestServer(t, newGateFetcher())
		if rec := do(t, s.Handler(), http.MethodGet, "/api/runs", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("lists runs with limit", func(t *testing.T) {
		t.Parallel()

		runs := &fakeRuns{runs: []*model.RunRecord{{ID: "r1", Status: model.RunStatusCompleted}}}
		s, _ := newTestServer(t, newGateFetcher(), WithRunLister(runs))
		rec := do(t, s.Handler(), http.MethodGet, "/api/runs?limit=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if runs.got != 5 {
			t.Errorf("expected limit 5, got %d", runs.got)
		}
		var got []model.RunRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "r1" {
			t.Errorf("unexpected runs %+v", got)
		}
	})

	t.Run("empty list is an array", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestServer(t, newGateFetcher(), WithRunLister(&fakeRuns{}))
		rec := do(t, s.Handler(), http.MethodGet, "/api/runs", "")
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("expected [], got %s", rec.Body.String())
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestServer(t, newGateFetcher(), WithRunLister(&fakeRuns{}))
		if rec := do(t, s.Handler(), http.MethodGet, "/api/runs?limit=x", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("lister error", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestServer(t, newGateFetcher(), WithRunLister(&fakeRuns{err: errors.New("locked")}))
		if rec := do(t, s.Handler(), http.MethodGet, "/api/runs", ""); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestShutdownWithoutServe(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, newGateFetcher(), WithAddr("127.0.0.1:0"))
	if s.Addr() != "127.0.0.1:0" {
		t.Errorf("unexpected addr %q", s.Addr())
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	// A server shut down before serving returns at once.
	if err := s.ListenAndServe(context.Background()); err != nil {
		t.Errorf("expected nil after shutdown, got %v", err)
	}
}

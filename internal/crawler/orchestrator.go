package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/metrics"
	"github.com/qwc999/infpoisk/internal/model"
)

// PageFetcher downloads a page and returns its decoded HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// RobotsChecker answers robots.txt questions.
type RobotsChecker interface {
	CanFetch(ctx context.Context, url string) bool
	CrawlDelay(url string) time.Duration
}

// DocumentStore persists documents and checkpoints. LoadState reports an
// error only when document IDs cannot be allocated safely; a bad checkpoint
// must come back as an empty state.
type DocumentStore interface {
	LoadState() (*model.CrawlState, error)
	NextID() int
	Save(doc *model.Document) error
	SaveState(visited []string) error
}

// Recorder keeps a queryable history of runs and saved documents.
type Recorder interface {
	StartRun(ctx context.Context, run *model.RunRecord) error
	RecordDocument(ctx context.Context, runID string, doc *model.Document) error
	FinishRun(ctx context.Context, run *model.RunRecord) error
}

// Dependencies are the collaborators of an Orchestrator.
// Fetcher, Robots and Store are required.
type Dependencies struct {
	Fetcher   PageFetcher
	Robots    RobotsChecker
	Store     DocumentStore
	Extractor *Extractor
	Recorder  Recorder
	Metrics   *metrics.Metrics
}

// Orchestrator runs one breadth-first crawl from the configured seeds.
// An Orchestrator is single-use: Run may be called once.
type Orchestrator struct {
	cfg      *config.Config
	deps     Dependencies
	frontier *Frontier
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration)

	checkpointEvery int
	runID           string

	stopOnce sync.Once
	stopCh   chan struct{}

	mu    sync.Mutex
	state State
	stats model.CrawlStats
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSleep replaces the politeness wait. The function must return early
// when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithCheckpointEvery sets how many saved documents trigger a checkpoint.
func WithCheckpointEvery(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.checkpointEvery = n
		}
	}
}

// WithRunID sets the run identifier instead of a random UUID.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}

// New creates an Orchestrator for cfg. cfg must already be validated.
func New(cfg *config.Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if deps.Fetcher == nil || deps.Robots == nil || deps.Store == nil {
		return nil, ErrMissingDependency
	}

	o := &Orchestrator{
		cfg:             cfg,
		deps:            deps,
		logger:          slog.Default(),
		sleep:           sleepContext,
		checkpointEvery: cfg.CheckpointEvery,
		runID:           uuid.NewString(),
		stopCh:          make(chan struct{}),
		state:           StateIdle,
	}
	if o.checkpointEvery <= 0 {
		o.checkpointEvery = config.DefaultCheckpointEvery
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.deps.Extractor == nil {
		o.deps.Extractor = NewExtractor(WithExtractorLogger(o.logger))
	}

	o.frontier = NewFrontier(cfg.MaxDepth, cfg.MaxPagesPerDomain,
		WithDomainCaps(cfg.DomainCaps()),
		WithIgnore(func(u *url.URL) bool {
			return cfg.DomainConfig(u.Hostname()).Ignores(u.Path)
		}),
	)

	return o, nil
}

// RunID returns the identifier of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Frontier exposes the queue, mainly for inspection.
func (o *Orchestrator) Frontier() *Frontier {
	return o.frontier
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Stats returns a snapshot of the run counters.
func (o *Orchestrator) Stats() model.CrawlStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Stop asks the loop to finish after the current URL. It is safe to call
// more than once and from any goroutine.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
	})
}

// Run executes the crawl loop until the page budget is spent, the frontier
// drains, Stop is called or ctx is cancelled. All of these end in
// StateCompleted with a final checkpoint. Run returns an error, and the
// state becomes StateFailed, only when the crawl cannot start.
func (o *Orchestrator) Run(ctx context.Context) (*model.CrawlStats, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	o.state = StateRunning
	o.stats = model.CrawlStats{StartTime: time.Now()}
	o.mu.Unlock()

	o.deps.Metrics.SetRunning(true)
	defer o.deps.Metrics.SetRunning(false)

	state, err := o.deps.Store.LoadState()
	if err != nil {
		o.finish(StateFailed)
		stats := o.Stats()
		return &stats, fmt.Errorf("failed to load crawl state: %w", err)
	}
	o.frontier.Restore(state.VisitedURLs)

	for _, seed := range o.cfg.SeedURLs {
		o.frontier.Push(seed, "", 0)
	}

	o.logger.Info("crawl started",
		"run_id", o.runID,
		"seeds", len(o.cfg.SeedURLs),
		"queued", o.frontier.Len(),
		"resumed_visited", len(state.VisitedURLs),
		"last_doc_id", state.LastDocID,
		"max_pages", o.cfg.MaxPages,
		"max_depth", o.cfg.MaxDepth,
	)
	o.startRecord(ctx)

	for o.shouldContinue(ctx) {
		entry, ok := o.frontier.Pop()
		if !ok {
			break
		}
		o.deps.Metrics.SetFrontierSize(o.frontier.Len())
		o.process(ctx, entry)
	}

	o.checkpoint()
	o.finish(StateCompleted)
	stats := o.Stats()
	o.finishRecord(ctx, stats)

	o.logger.Info("crawl finished",
		"run_id", o.runID,
		"documents_saved", stats.DocumentsSaved,
		"urls_visited", stats.URLsVisited,
		"urls_failed", stats.URLsFailed,
		"urls_skipped", stats.URLsSkipped,
		"duration", stats.Duration().Round(time.Millisecond),
	)

	return &stats, nil
}

// shouldContinue checks stop requests and the page budget.
func (o *Orchestrator) shouldContinue(ctx context.Context) bool {
	select {
	case <-o.stopCh:
		o.logger.Info("crawl stop requested", "run_id", o.runID)
		return false
	case <-ctx.Done():
		o.logger.Info("crawl cancelled", "run_id", o.runID, "reason", ctx.Err())
		return false
	default:
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats.PagesCrawled < o.cfg.MaxPages
}

// process handles one popped frontier entry.
func (o *Orchestrator) process(ctx context.Context, entry model.FrontierEntry) {
	pageURL := entry.URL

	if o.frontier.IsVisited(pageURL) || entry.Depth > o.frontier.MaxDepth() {
		return
	}

	if o.frontier.DomainCapReached(pageURL) {
		o.logger.Debug("domain cap reached", "url", pageURL)
		return
	}

	if !o.deps.Robots.CanFetch(ctx, pageURL) {
		o.logger.Debug("disallowed by robots.txt", "url", pageURL)
		o.update(func(s *model.CrawlStats) { s.URLsSkipped++ })
		o.deps.Metrics.IncURL(metrics.OutcomeSkipped)
		return
	}

	o.frontier.MarkVisited(pageURL)
	o.update(func(s *model.CrawlStats) { s.URLsVisited++ })
	o.deps.Metrics.IncURL(metrics.OutcomeVisited)

	o.pace(ctx, o.deps.Robots.CrawlDelay(pageURL))

	o.logger.Debug("fetching", "url", pageURL, "depth", entry.Depth)
	// The request is already committed: the URL is in the visited set.
	// Let it finish even if ctx is cancelled; the fetcher timeout bounds it.
	started := time.Now()
	html, err := o.deps.Fetcher.Fetch(context.WithoutCancel(ctx), pageURL)
	o.deps.Metrics.ObserveFetch(time.Since(started))
	if err != nil {
		o.logger.Debug("fetch failed", "url", pageURL, "error", err)
		o.update(func(s *model.CrawlStats) { s.URLsFailed++ })
		o.deps.Metrics.IncURL(metrics.OutcomeFailed)
		return
	}

	content := o.deps.Extractor.Extract(html)
	if content.Length() >= o.cfg.MinContentLength {
		o.save(ctx, pageURL, content)
	} else {
		o.logger.Debug("content too short", "url", pageURL, "length", content.Length())
	}

	if entry.Depth < o.frontier.MaxDepth() {
		added := 0
		for _, link := range o.deps.Extractor.ExtractLinks(html, pageURL) {
			if o.frontier.Push(link, pageURL, entry.Depth+1) {
				added++
			}
		}
		o.deps.Metrics.SetFrontierSize(o.frontier.Len())
		o.logger.Debug("links queued", "url", pageURL, "added", added)
	}
}

// save persists one document and checkpoints on schedule.
func (o *Orchestrator) save(ctx context.Context, pageURL string, content model.Content) {
	doc := model.NewDocument(o.deps.Store.NextID(), pageURL, content)
	if err := o.deps.Store.Save(doc); err != nil {
		o.logger.Error("failed to save document", "url", pageURL, "doc_id", doc.ID, "error", err)
		o.deps.Metrics.IncSaveError()
		return
	}

	var saved int
	o.update(func(s *model.CrawlStats) {
		s.DocumentsSaved++
		s.PagesCrawled++
		saved = s.DocumentsSaved
	})
	o.deps.Metrics.IncSaved()
	o.logger.Info("document saved", "doc_id", doc.ID, "url", pageURL, "length", content.Length())

	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.RecordDocument(ctx, o.runID, doc); err != nil {
			o.logger.Warn("failed to index document", "doc_id", doc.ID, "error", err)
		}
	}

	if saved%o.checkpointEvery == 0 {
		o.checkpoint()
	}
}

// pace waits for the crawl delay; a stop request or cancellation cuts it short.
func (o *Orchestrator) pace(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	paceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-o.stopCh:
			cancel()
		case <-paceCtx.Done():
		}
	}()
	o.sleep(paceCtx, d)
}

func (o *Orchestrator) checkpoint() {
	if err := o.deps.Store.SaveState(o.frontier.Visited()); err != nil {
		o.logger.Warn("failed to save crawl state", "error", err)
		return
	}
	o.logger.Debug("checkpoint saved", "visited", o.frontier.VisitedCount())
}

func (o *Orchestrator) update(fn func(s *model.CrawlStats)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.stats)
}

func (o *Orchestrator) finish(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
	o.stats.EndTime = time.Now()
}

func (o *Orchestrator) startRecord(ctx context.Context) {
	if o.deps.Recorder == nil {
		return
	}
	run := &model.RunRecord{
		ID:        o.runID,
		Status:    model.RunStatusRunning,
		SeedURLs:  o.cfg.SeedURLs,
		OutputDir: o.cfg.OutputDir,
		StartedAt: o.Stats().StartTime,
	}
	if err := o.deps.Recorder.StartRun(ctx, run); err != nil {
		o.logger.Warn("failed to record run start, indexing disabled", "error", err)
		o.deps.Recorder = nil
	}
}

func (o *Orchestrator) finishRecord(ctx context.Context, stats model.CrawlStats) {
	if o.deps.Recorder == nil {
		return
	}
	run := &model.RunRecord{
		ID:         o.runID,
		Status:     model.RunStatusCompleted,
		SeedURLs:   o.cfg.SeedURLs,
		OutputDir:  o.cfg.OutputDir,
		Stats:      stats,
		StartedAt:  stats.StartTime,
		FinishedAt: stats.EndTime,
	}
	if err := o.deps.Recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("failed to record run end", "error", err)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/model"
)

// Factory builds an Orchestrator for cfg. The returned cleanup func, if
// not nil, is called after the run finishes.
type Factory func(cfg *config.Config) (*Orchestrator, func(), error)

// Status is a point-in-time view of the controller.
type Status struct {
	Running   bool             `json:"running"`
	RunID     string           `json:"run_id,omitempty"`
	State     State            `json:"state"`
	Stats     model.CrawlStats `json:"stats"`
	Error     string           `json:"error,omitempty"`
	SeedURLs  []string         `json:"seed_urls,omitempty"`
	OutputDir string           `json:"output_dir,omitempty"`
}

// Controller owns at most one running crawl at a time and exposes
// start, stop and status to the service API.
type Controller struct {
	factory Factory
	baseCtx context.Context
	logger  *slog.Logger

	mu      sync.Mutex
	current *Orchestrator
	done    chan struct{}
	cfg     *config.Config
	last    Status
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithBaseContext sets the parent context of every run. Cancelling it
// stops the active crawl.
func WithBaseContext(ctx context.Context) ControllerOption {
	return func(c *Controller) {
		c.baseCtx = ctx
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates an idle Controller.
func NewController(factory Factory, opts ...ControllerOption) *Controller {
	c := &Controller{
		factory: factory,
		baseCtx: context.Background(),
		logger:  slog.Default(),
		last:    Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates cfg and launches a crawl in the background.
// It returns ErrAlreadyRunning if a crawl is in progress.
func (c *Controller) Start(cfg *config.Config) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return "", ErrAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	orch, cleanup, err := c.factory(cfg)
	if err != nil {
		return "", err
	}

	done := make(chan struct{})
	c.current = orch
	c.done = done
	c.cfg = cfg

	go c.run(orch, cfg, cleanup, done)

	c.logger.Info("crawl launched", "run_id", orch.RunID())
	return orch.RunID(), nil
}

func (c *Controller) run(orch *Orchestrator, cfg *config.Config, cleanup func(), done chan struct{}) {
	defer close(done)

	stats, err := orch.Run(c.baseCtx)
	if cleanup != nil {
		cleanup()
	}

	status := Status{
		RunID:     orch.RunID(),
		State:     orch.State(),
		SeedURLs:  cfg.SeedURLs,
		OutputDir: cfg.OutputDir,
	}
	if stats != nil {
		status.Stats = *stats
	}
	if err != nil {
		status.Error = err.Error()
		c.logger.Error("crawl failed", "run_id", orch.RunID(), "error", err)
	}

	c.mu.Lock()
	c.current = nil
	c.cfg = nil
	c.last = status
	c.mu.Unlock()
}

// Stop requests the active crawl to finish. It does not wait.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNotRunning
	}
	c.current.Stop()
	return nil
}

// Wait blocks until the active crawl, if any, has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Status returns the live status of the active crawl, or the outcome of
// the last one.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.last
	}
	return Status{
		Running:   true,
		RunID:     c.current.RunID(),
		State:     c.current.State(),
		Stats:     c.current.Stats(),
		SeedURLs:  c.cfg.SeedURLs,
		OutputDir: c.cfg.OutputDir,
	}
}

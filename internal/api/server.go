package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/crawler"
	"github.com/qwc999/infpoisk/internal/model"
)

// DefaultAddr is the listen address used when none is given.
const DefaultAddr = ":8080"

// RunLister lists indexed runs for GET /api/runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error)
}

// Server holds the dependencies of the HTTP service.
type Server struct {
	controller *crawler.Controller
	base       *config.Config
	gatherer   prometheus.Gatherer
	runs       RunLister
	logger     *slog.Logger
	addr       string

	router     http.Handler
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics.
// The default is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRunLister enables GET /api/runs.
func WithRunLister(runs RunLister) Option {
	return func(s *Server) {
		s.runs = runs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// NewServer creates a Server. base supplies every setting a start request
// does not override; it is cloned per request.
func NewServer(controller *crawler.Controller, base *config.Config, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		base:       base,
		gatherer:   prometheus.DefaultGatherer,
		logger:     slog.Default(),
		addr:       DefaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe serves until Shutdown is called. Request contexts derive
// from ctx. It returns nil after a clean shutdown, including when Shutdown
// ran first.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	s.logger.Info("api listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

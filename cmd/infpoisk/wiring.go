package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/corpus"
	"github.com/qwc999/infpoisk/internal/crawler"
	"github.com/qwc999/infpoisk/internal/database"
	"github.com/qwc999/infpoisk/internal/fetcher"
	applog "github.com/qwc999/infpoisk/internal/log"
	"github.com/qwc999/infpoisk/internal/metrics"
	"github.com/qwc999/infpoisk/internal/model"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// setupLogger builds the application logger writing to stderr and, when
// logFile is set, to that file as well. The returned func closes the file.
func setupLogger(stderr io.Writer, verbose bool, logFile string) (*slog.Logger, func(), error) {
	if logFile == "" {
		return applog.NewLogger(stderr, verbose, false), func() {}, nil
	}

	if dir := filepath.Dir(logFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // User-provided log path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := applog.NewLogger(io.MultiWriter(stderr, f), verbose, false)
	return logger, func() { _ = f.Close() }, nil
}

// loadConfigFile applies the config file, if any, to cfg. An explicit path
// that does not exist is an error; a missing default file is not.
func loadConfigFile(cfg *config.Config, explicitPath string) error {
	cfg.ConfigFilePath = explicitPath
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := cf.Apply(cfg); err != nil {
		return fmt.Errorf("failed to apply config file %s: %w", path, err)
	}
	cfg.ConfigFilePath = path
	return nil
}

// indexRecorder records documents in the corpus index and reports
// documents whose text is already indexed under another ID.
type indexRecorder struct {
	*database.DB
	logger *slog.Logger
}

func (r *indexRecorder) RecordDocument(ctx context.Context, runID string, doc *model.Document) error {
	if err := r.DB.RecordDocument(ctx, runID, doc); err != nil {
		return err
	}

	same, err := r.FindByHash(ctx, database.ContentHash(doc.Text))
	if err != nil {
		return err
	}

	// IDs repeat across output directories, so the row just written is
	// identified by run and ID, and others by directory and ID.
	dir := ""
	for _, rec := range same {
		if rec.RunID == runID && rec.DocID == doc.ID {
			dir = rec.OutputDir
			break
		}
	}
	for _, other := range same {
		if other.OutputDir == dir && other.DocID == doc.ID {
			continue
		}
		r.logger.Info("duplicate content",
			"doc_id", doc.ID,
			"url", doc.URL,
			"duplicate_of", other.DocID,
			"duplicate_dir", other.OutputDir,
			"duplicate_url", other.URL,
		)
		break
	}
	return nil
}

// factoryOptions are the shared collaborators of every run built by
// newFactory.
type factoryOptions struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	// index, when set, is used for every run instead of opening
	// cfg.IndexFile() per run. It is not closed by the cleanup func.
	index *database.DB
}

// newFactory returns a crawler.Factory wiring the fetcher, robots policy,
// corpus store and index for a config.
func newFactory(fo factoryOptions) crawler.Factory {
	if fo.logger == nil {
		fo.logger = slog.Default()
	}
	return func(cfg *config.Config) (*crawler.Orchestrator, func(), error) {
		logger := fo.logger

		f := fetcher.New(cfg.UserAgent,
			fetcher.WithTimeout(cfg.Timeout),
			fetcher.WithMaxAttempts(cfg.MaxAttempts),
			fetcher.WithBackoff(cfg.RetryBackoff),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
			fetcher.WithHeaders(func(host string) map[string]string {
				return cfg.DomainConfig(host).RequestHeaders()
			}),
			fetcher.WithLogger(logger),
		)
		robots := fetcher.NewRobotsPolicy(f.Client(), cfg.UserAgent,
			fetcher.WithDefaultCrawlDelay(config.DefaultCrawlDelay),
			fetcher.WithRobotsLogger(logger),
		)

		store, err := corpus.Open(cfg.OutputDir, corpus.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}

		deps := crawler.Dependencies{
			Fetcher:   f,
			Robots:    robots,
			Store:     store,
			Extractor: crawler.NewExtractor(crawler.WithExtractorLogger(logger)),
			Metrics:   fo.metrics,
		}

		cleanup := func() {}
		switch {
		case !cfg.IndexEnabled:
		case fo.index != nil:
			deps.Recorder = &indexRecorder{DB: fo.index, logger: logger}
		default:
			db, err := database.Open(cfg.IndexFile(), database.DefaultOptions())
			if err != nil {
				// The corpus files are authoritative; run without the index.
				logger.Warn("corpus index unavailable", "path", cfg.IndexFile(), "error", err)
				break
			}
			deps.Recorder = &indexRecorder{DB: db, logger: logger}
			cleanup = func() { _ = db.Close() }
		}

		orch, err := crawler.New(cfg, deps, crawler.WithLogger(logger))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return orch, cleanup, nil
	}
}

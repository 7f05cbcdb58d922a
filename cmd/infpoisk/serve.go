package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/qwc999/infpoisk/internal/api"
	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/crawler"
	"github.com/qwc999/infpoisk/internal/database"
	"github.com/qwc999/infpoisk/internal/metrics"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl control API",
		Long: `Serve starts an HTTP API that runs at most one crawl at a time.

Endpoints:
  POST /api/crawl/start   {"seed_urls": [...], "max_pages": 100, "max_depth": 3,
                           "output_dir": "corpus/crawled", "min_content_length": 500}
  POST /api/crawl/stop
  GET  /api/crawl/status
  GET  /api/runs?limit=20
  GET  /healthz
  GET  /metrics

Settings not given in a start request come from the config file.
Runs are recorded in a shared index, by default in the XDG data directory.

Examples:
  infpoisk serve
  infpoisk serve --addr 127.0.0.1:9000 -c crawl.yaml`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", api.DefaultAddr, "Listen address")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .infpoisk.yaml in current or home directory)")
	cmd.Flags().String("index", "",
		"Run index path (default: <XDG data dir>/infpoisk/.crawler_index.db)")
	cmd.Flags().Bool("no-index", false, "Do not record runs")
	cmd.Flags().String("log-file", "", "Also write logs to this file")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	addr, err := flags.GetString("addr")
	if err != nil {
		return err
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return err
	}
	indexPath, err := flags.GetString("index")
	if err != nil {
		return err
	}
	noIndex, err := flags.GetBool("no-index")
	if err != nil {
		return err
	}
	logFile, err := flags.GetString("log-file")
	if err != nil {
		return err
	}

	base := config.NewConfig()
	if err := loadConfigFile(base, configPath); err != nil {
		return err
	}
	base.Verbose = getVerboseFlag(cmd)
	base.IndexEnabled = !noIndex
	if indexPath == "" {
		indexPath = filepath.Join(config.XDGDataDir(), config.IndexFileName)
	}
	base.IndexPath = indexPath

	logger, closeLog, err := setupLogger(cmd.ErrOrStderr(), base.Verbose, logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	fo := factoryOptions{logger: logger, metrics: m}
	serverOpts := []api.Option{
		api.WithAddr(addr),
		api.WithGatherer(reg),
		api.WithLogger(logger),
	}

	if base.IndexEnabled {
		db, err := database.Open(indexPath, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open run index: %w", err)
		}
		defer db.Close()
		fo.index = db
		serverOpts = append(serverOpts, api.WithRunLister(db))
		logger.Info("run index opened", "path", indexPath)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := crawler.NewController(newFactory(fo),
		crawler.WithBaseContext(ctx),
		crawler.WithControllerLogger(logger),
	)
	server := api.NewServer(ctrl, base, serverOpts...)

	return serve(ctx, server, ctrl, logger)
}

// serve runs the HTTP server until ctx is done, then shuts it down and
// waits for the active crawl to checkpoint.
func serve(ctx context.Context, server *api.Server, ctrl *crawler.Controller, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		if err := ctrl.Stop(); err == nil {
			logger.Info("waiting for the active crawl to stop")
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		ctrl.Wait()
		if err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/model"
	"github.com/qwc999/infpoisk/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl from seed URLs and save documents",
		Long: `Crawl fetches pages breadth-first from the seed URLs and saves the main
text of each sufficiently long page to the output directory.

Each document is written as doc_NNNNNNNN.txt with a .meta.json sidecar.
Progress is checkpointed to .crawler_state.json, so running the same
command again resumes: visited URLs are skipped and numbering continues.

Press Ctrl+C once to stop after the current page; twice to abort.

Examples:
  # Crawl one site, saving up to 50 documents
  infpoisk crawl -n 50 https://example.com/

  # Several seeds, shallow crawl, custom output directory
  infpoisk crawl -d 1 -o corpus/news https://a.example/ https://b.example/

  # Write final statistics as JSON
  infpoisk crawl --stats-output stats.json https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringSliceP("seed-url", "s", nil,
		"Seed URL (repeatable); positional arguments are seeds too")
	cmd.Flags().IntP("max-pages", "n", config.DefaultMaxPages,
		"Number of documents to save before stopping")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from a seed")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Corpus output directory")
	cmd.Flags().IntP("min-content-length", "m", config.DefaultMinContentLength,
		"Minimum text length in characters for a page to be saved")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent name")
	cmd.Flags().Int("max-pages-per-domain", config.DefaultMaxPagesPerDomain,
		"Maximum URLs visited per host")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .infpoisk.yaml in current or home directory)")
	cmd.Flags().Bool("no-index", false,
		"Do not record the run in the SQLite corpus index")
	cmd.Flags().String("stats-output", "",
		"Write final statistics as JSON to this file")
	cmd.Flags().String("log-file", "",
		"Also write logs to this file")

	cmd.Flags().BoolP("json", "j", false,
		"Print the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().Bool("markdown", false,
		"Print the summary as Markdown (mutually exclusive with --json)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	orch, cleanup, err := newFactory(factoryOptions{logger: logger})(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	// First signal: finish the current page. Second: cancel.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		logger.Info("received shutdown signal, stopping after the current page...")
		orch.Stop()
		select {
		case <-sigCh:
			logger.Info("received second signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	stats, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	return outputStats(cmd.OutOrStdout(), cfg, stats)
}

// buildConfig creates a Config from the config file and command flags.
// Flags that were set explicitly win over the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg, configPath); err != nil {
		return nil, err
	}

	seeds, err := flags.GetStringSlice("seed-url")
	if err != nil {
		return nil, err
	}
	seeds = append(seeds, args...)
	if len(seeds) > 0 {
		cfg.SeedURLs = seeds
	}

	intFlags := []struct {
		name string
		dst  *int
	}{
		{"max-pages", &cfg.MaxPages},
		{"max-depth", &cfg.MaxDepth},
		{"min-content-length", &cfg.MinContentLength},
		{"max-pages-per-domain", &cfg.MaxPagesPerDomain},
	}
	for _, f := range intFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetInt(f.name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	noIndex, err := flags.GetBool("no-index")
	if err != nil {
		return nil, err
	}
	cfg.IndexEnabled = !noIndex

	if cfg.StatsOutput, err = flags.GetString("stats-output"); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// outputStats prints the run summary and writes the stats file.
func outputStats(out io.Writer, cfg *config.Config, stats *model.CrawlStats) error {
	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	var errs []error
	if _, err := w.Write(stats); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary: %w", err))
	}
	if cfg.StatsOutput != "" {
		if err := writeStatsFile(cfg.StatsOutput, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeStatsFile writes stats as indented JSON, creating parent directories.
func writeStatsFile(path string, stats *model.CrawlStats) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	if _, err := report.NewJSONWriter(f, report.WithPrettyPrint()).Write(stats); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

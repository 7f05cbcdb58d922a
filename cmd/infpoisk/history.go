package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/database"
	"github.com/qwc999/infpoisk/internal/model"
	"github.com/qwc999/infpoisk/internal/report"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded crawl runs",
		Long: `History lists crawl runs recorded in the corpus index, newest first.

The index is <output>/.crawler_index.db, written by "infpoisk crawl"
unless --no-index was given. Runs started through "infpoisk serve" are
recorded in the server's shared index; pass it with --index.

Examples:
  # List recent runs for the default corpus
  infpoisk history

  # Runs of another corpus, as JSON
  infpoisk history -o corpus/news --json

  # One run in detail
  infpoisk history --run 3f2a5b1c-...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Corpus directory whose index is read")
	cmd.Flags().String("index", "",
		"Index file path (overrides --output)")
	cmd.Flags().String("run", "", "Show a single run by ID")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().Bool("markdown", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	indexPath string
	runID     string
	limit     int
	json      bool
	markdown  bool
	verbose   bool
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var opts historyOptions

	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	if opts.indexPath, err = flags.GetString("index"); err != nil {
		return err
	}
	if opts.indexPath == "" {
		cfg := config.NewConfig()
		cfg.OutputDir = output
		opts.indexPath = cfg.IndexFile()
	}
	if opts.runID, err = flags.GetString("run"); err != nil {
		return err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	opts.verbose = getVerboseFlag(cmd)

	return showHistory(cmd, cmd.OutOrStdout(), opts)
}

func showHistory(cmd *cobra.Command, out io.Writer, opts historyOptions) error {
	db, err := database.Open(opts.indexPath, database.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no crawl history at %s: %w", opts.indexPath, err)
		}
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(opts.verbose || opts.runID != ""))
	}

	if opts.runID == "" {
		runs, err := db.ListRuns(ctx, opts.limit)
		if err != nil {
			return err
		}
		_, err = w.WriteRuns(runs)
		return err
	}

	run, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", opts.runID)
	}
	if _, err := w.WriteRuns([]*model.RunRecord{run}); err != nil {
		return err
	}

	if opts.json || opts.markdown {
		return nil
	}
	indexed, err := db.CountDocuments(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nDocuments indexed: %d\n", indexed)
	if run.OutputDir != "" {
		fmt.Fprintf(out, "Output directory:  %s\n", run.OutputDir)
	}
	return nil
}

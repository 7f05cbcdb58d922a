package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qwc999/infpoisk/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds timestamps to the summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl summary.
func (w *SimpleWriter) Write(stats *model.CrawlStats) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	sb.WriteString("                 CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Documents saved: %d\n", stats.DocumentsSaved)
	fmt.Fprintf(&sb, "URLs visited:    %d\n", stats.URLsVisited)
	fmt.Fprintf(&sb, "URLs failed:     %d\n", stats.URLsFailed)
	fmt.Fprintf(&sb, "URLs skipped:    %d\n", stats.URLsSkipped)
	fmt.Fprintf(&sb, "Duration:        %s\n", stats.Duration().Round(time.Second))

	if w.verbose {
		fmt.Fprintf(&sb, "Started:         %s\n", formatTime(stats.StartTime))
		fmt.Fprintf(&sb, "Finished:        %s\n", formatTime(stats.EndTime))
	}

	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteRuns outputs one line per run.
func (w *SimpleWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No crawl runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-36s  %-9s  %-23s  %5s  %7s  %6s  %7s\n",
		"RUN ID", "STATUS", "STARTED", "DOCS", "VISITED", "FAILED", "SKIPPED")
	for _, run := range runs {
		fmt.Fprintf(&sb, "%-36s  %-9s  %-23s  %5d  %7d  %6d  %7d\n",
			run.ID,
			run.Status,
			formatTime(run.StartedAt),
			run.Stats.DocumentsSaved,
			run.Stats.URLsVisited,
			run.Stats.URLsFailed,
			run.Stats.URLsSkipped,
		)
		if w.verbose {
			fmt.Fprintf(&sb, "    seeds: %s\n", strings.Join(run.SeedURLs, ", "))
		}
	}

	return w.output.Write([]byte(sb.String()))
}

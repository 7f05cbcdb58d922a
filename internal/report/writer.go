package report

import (
	"io"
	"time"

	"github.com/qwc999/infpoisk/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the statistics of one run.
	// Returns the number of bytes written and any error encountered.
	Write(stats *model.CrawlStats) (int, error)

	// WriteRuns outputs a list of indexed runs, newest first.
	WriteRuns(runs []*model.RunRecord) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the statistics to all configured Writers.
// Returns the total bytes written. Stops on first error encountered.
func (m *MultiWriter) Write(stats *model.CrawlStats) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(stats)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRuns outputs the runs to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for human-readable timestamps.
const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/qwc999/infpoisk/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Summary is the JSON form of CrawlStats with the derived duration.
type Summary struct {
	DocumentsSaved  int       `json:"documents_saved"`
	URLsVisited     int       `json:"urls_visited"`
	URLsFailed      int       `json:"urls_failed"`
	URLsSkipped     int       `json:"urls_skipped"`
	PagesCrawled    int       `json:"pages_crawled"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitzero"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// NewSummary builds a Summary from stats.
func NewSummary(stats *model.CrawlStats) *Summary {
	return &Summary{
		DocumentsSaved:  stats.DocumentsSaved,
		URLsVisited:     stats.URLsVisited,
		URLsFailed:      stats.URLsFailed,
		URLsSkipped:     stats.URLsSkipped,
		PagesCrawled:    stats.PagesCrawled,
		StartTime:       stats.StartTime,
		EndTime:         stats.EndTime,
		DurationSeconds: stats.Duration().Seconds(),
	}
}

// Write outputs the run statistics as a Summary object.
func (w *JSONWriter) Write(stats *model.CrawlStats) (int, error) {
	return w.writeJSON(NewSummary(stats))
}

// WriteRuns outputs the runs as a JSON array. A nil slice is written as [].
func (w *JSONWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	if runs == nil {
		runs = []*model.RunRecord{}
	}
	return w.writeJSON(runs)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}

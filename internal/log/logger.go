package log

import (
	"io"
	"log/slog"
)

// NewLogger returns a logger writing text, or JSON when json is true, to w.
// verbose lowers the level from Info to Debug.
func NewLogger(w io.Writer, verbose, json bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewRedactingHandler(handler))
}

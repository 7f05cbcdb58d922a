package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/database"
	"github.com/qwc999/infpoisk/internal/model"
)

// seedIndex creates an index in a temp corpus directory with two runs.
func seedIndex(t *testing.T) string {
	t.Helper()

	output := t.TempDir()
	db, err := database.Open(filepath.Join(output, config.IndexFileName), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	runs := []*model.RunRecord{
		{ID: "run-old", SeedURLs: []string{"https://a.test/"}, OutputDir: output, StartedAt: start},
		{ID: "run-new", SeedURLs: []string{"https://b.test/"}, OutputDir: output, StartedAt: start.Add(time.Hour)},
	}
	for _, run := range runs {
		if err := db.StartRun(ctx, run); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		run.Status = model.RunStatusCompleted
		run.Stats = model.CrawlStats{DocumentsSaved: 1, URLsVisited: 3, StartTime: run.StartedAt}
		run.FinishedAt = run.StartedAt.Add(time.Minute)
		if err := db.FinishRun(ctx, run); err != nil {
			t.Fatalf("FinishRun: %v", err)
		}
	}

	doc := &model.Document{ID: 1, URL: "https://b.test/", Source: "b.test", Text: "some text"}
	if err := db.RecordDocument(ctx, "run-new", doc); err != nil {
		t.Fatalf("RecordDocument: %v", err)
	}
	return output
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	for _, flag := range []string{"output", "index", "run", "limit", "json", "markdown"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
	if got := cmd.Flags().Lookup("limit").DefValue; got != "20" {
		t.Errorf("limit default = %q, want 20", got)
	}
}

func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	output := seedIndex(t)

	t.Run("lists newest first", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "-o", output)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		newIdx := strings.Index(out, "run-new")
		oldIdx := strings.Index(out, "run-old")
		if newIdx < 0 || oldIdx < 0 || newIdx > oldIdx {
			t.Errorf("expected run-new before run-old:\n%s", out)
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "-o", output, "--limit", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "run-new") || strings.Contains(out, "run-old") {
			t.Errorf("expected only run-new:\n%s", out)
		}
	})

	t.Run("json via index path", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--index", filepath.Join(output, config.IndexFileName), "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var runs []map[string]any
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if len(runs) != 2 {
			t.Errorf("got %d runs, want 2", len(runs))
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "-o", output, "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Crawl History") {
			t.Errorf("expected markdown heading:\n%s", out)
		}
	})

	t.Run("single run", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "-o", output, "--run", "run-new")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Documents indexed: 1") {
			t.Errorf("expected indexed count:\n%s", out)
		}
		if !strings.Contains(out, "https://b.test/") {
			t.Errorf("expected seeds in detail view:\n%s", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "-o", output, "--run", "missing")
		if err == nil || !strings.Contains(err.Error(), "run not found") {
			t.Errorf("expected run not found, got %v", err)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "-o", output, "--json", "--markdown")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}

func TestRunHistoryCmdNoIndex(t *testing.T) {
	t.Parallel()

	_, err := runHistory(t, "-o", t.TempDir())
	if !errors.Is(err, database.ErrDatabaseNotFound) {
		t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "no crawl history") {
		t.Errorf("unexpected message: %v", err)
	}
}

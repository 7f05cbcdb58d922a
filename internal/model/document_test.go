package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestContentLength tests that body length counts characters, not bytes.
func TestContentLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "hello", 5},
		{"cyrillic", "привет", 6},
		{"mixed", "a б c", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := (Content{Text: tt.text}).Length(); got != tt.want {
				t.Errorf("Length() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestNewDocument tests document construction from extracted content.
func TestNewDocument(t *testing.T) {
	t.Parallel()

	t.Run("source is host with port", func(t *testing.T) {
		t.Parallel()
		doc := NewDocument(3, "http://news.test:8080/a", Content{Title: "T", Text: "body"})
		if doc.Source != "news.test:8080" {
			t.Errorf("expected source 'news.test:8080', got %q", doc.Source)
		}
		if doc.ID != 3 || doc.URL != "http://news.test:8080/a" {
			t.Errorf("unexpected document %+v", doc)
		}
	})

	t.Run("empty title displays as Untitled", func(t *testing.T) {
		t.Parallel()
		doc := NewDocument(1, "https://a.test", Content{})
		if doc.DisplayTitle() != "Untitled" {
			t.Errorf("expected 'Untitled', got %q", doc.DisplayTitle())
		}
		if doc.Meta().Title != "Untitled" {
			t.Errorf("expected meta title 'Untitled', got %q", doc.Meta().Title)
		}
	})

	t.Run("meta has fixed type", func(t *testing.T) {
		t.Parallel()
		doc := NewDocument(1, "https://a.test", Content{Title: "x"})
		if doc.Meta().Type != "crawled_web_page" {
			t.Errorf("unexpected type %q", doc.Meta().Type)
		}
	})

	t.Run("meta keys keep order", func(t *testing.T) {
		t.Parallel()
		doc := NewDocument(1, "https://a.test", Content{Title: "x", Text: "y", Date: "2024"})
		data, err := json.Marshal(doc.Meta())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := string(data)
		order := []string{`"title"`, `"source"`, `"url"`, `"date"`, `"text"`, `"type"`}
		last := -1
		for _, key := range order {
			idx := strings.Index(got, key)
			if idx <= last {
				t.Fatalf("key %s out of order in %s", key, got)
			}
			last = idx
		}
	})
}

// TestCrawlStateJSON tests checkpoint encoding and lenient decoding.
func TestCrawlStateJSON(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		in := CrawlState{LastDocID: 42, VisitedURLs: []string{"https://a.test"}, LastUpdated: ts}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var out CrawlState
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.LastDocID != 42 || len(out.VisitedURLs) != 1 || !out.LastUpdated.Equal(ts) {
			t.Errorf("unexpected state %+v", out)
		}
	})

	t.Run("nil visited encodes as empty list", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(CrawlState{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(data), `"visited_urls":[]`) {
			t.Errorf("expected empty list, got %s", data)
		}
	})

	t.Run("zone-less timestamp is accepted", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"last_doc_id": 7, "visited_urls": [], "last_updated": "2024-05-06T07:08:09.123456"}`)
		var st CrawlState
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.LastDocID != 7 {
			t.Errorf("expected last doc id 7, got %d", st.LastDocID)
		}
		if st.LastUpdated.Year() != 2024 || st.LastUpdated.Month() != time.May {
			t.Errorf("unexpected timestamp %v", st.LastUpdated)
		}
	})

	t.Run("garbage timestamp gives zero time", func(t *testing.T) {
		t.Parallel()
		var st CrawlState
		if err := json.Unmarshal([]byte(`{"last_doc_id": 1, "last_updated": "yesterday"}`), &st); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !st.LastUpdated.IsZero() {
			t.Errorf("expected zero time, got %v", st.LastUpdated)
		}
	})
}

// TestCrawlStatsDuration tests run duration for finished and unstarted runs.
func TestCrawlStatsDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := CrawlStats{StartTime: start, EndTime: start.Add(90 * time.Second)}
	if stats.Duration() != 90*time.Second {
		t.Errorf("expected 90s, got %v", stats.Duration())
	}
	if !stats.Finished() {
		t.Error("expected finished stats")
	}
	if (CrawlStats{}).Duration() != 0 {
		t.Error("expected zero duration for unstarted run")
	}
}

package model

import (
	"encoding/json"
	"time"
)

// CrawlState is the resumable checkpoint persisted between runs.
type CrawlState struct {
	// LastDocID is the highest document ID already used.
	LastDocID int

	// VisitedURLs are the normalized URLs fetched by earlier runs.
	VisitedURLs []string

	// LastUpdated is when the checkpoint was written.
	// Zero when the stored value could not be parsed.
	LastUpdated time.Time
}

type crawlStateJSON struct {
	LastDocID   int      `json:"last_doc_id"`
	VisitedURLs []string `json:"visited_urls"`
	LastUpdated string   `json:"last_updated"`
}

// MarshalJSON writes the checkpoint with an RFC 3339 timestamp.
func (s CrawlState) MarshalJSON() ([]byte, error) {
	visited := s.VisitedURLs
	if visited == nil {
		visited = []string{}
	}
	return json.Marshal(crawlStateJSON{
		LastDocID:   s.LastDocID,
		VisitedURLs: visited,
		LastUpdated: s.LastUpdated.Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON reads a checkpoint. The timestamp is parsed leniently
// so files written by other tools still load.
func (s *CrawlState) UnmarshalJSON(data []byte) error {
	var raw crawlStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.LastDocID = raw.LastDocID
	s.VisitedURLs = raw.VisitedURLs
	s.LastUpdated = ParseTimestamp(raw.LastUpdated)
	return nil
}

// timestampFormats lists accepted timestamp layouts, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999", // ISO 8601 without zone
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00", // SQLite driver format
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp tries each known layout and returns the zero time if none match.
func ParseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

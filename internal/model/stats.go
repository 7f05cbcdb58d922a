package model

import "time"

// CrawlStats holds the counters of one crawl run.
type CrawlStats struct {
	DocumentsSaved int       `json:"documents_saved"`
	URLsVisited    int       `json:"urls_visited"`
	URLsFailed     int       `json:"urls_failed"`
	URLsSkipped    int       `json:"urls_skipped"`
	PagesCrawled   int       `json:"pages_crawled"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time,omitzero"`
}

// Duration returns the wall time of the run. For a run still in progress
// it measures up to now.
func (s CrawlStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartTime)
}

// Finished reports whether EndTime has been set.
func (s CrawlStats) Finished() bool {
	return !s.EndTime.IsZero()
}

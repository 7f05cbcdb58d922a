package model

import "time"

// RunStatus is the final or current status of a recorded run.
type RunStatus string

const (
	// RunStatusRunning marks a run that has started but not finished.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted marks a run that ended normally or was stopped.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed marks a run that could not start or aborted.
	RunStatusFailed RunStatus = "failed"
)

// RunRecord is a crawl run as stored in the corpus index.
type RunRecord struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	SeedURLs   []string   `json:"seed_urls"`
	OutputDir  string     `json:"output_dir"`
	Stats      CrawlStats `json:"stats"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
}

package crawler

import "errors"

var (
	// ErrAlreadyRunning is returned when a run is started while another is
	// in progress, or when an Orchestrator is reused.
	ErrAlreadyRunning = errors.New("crawl already in progress")

	// ErrNotRunning is returned by Controller.Stop when no run is active.
	ErrNotRunning = errors.New("no crawl in progress")

	// ErrInvalidConfig wraps validation errors returned by Controller.Start.
	ErrInvalidConfig = errors.New("invalid crawl configuration")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing crawler dependency")
)

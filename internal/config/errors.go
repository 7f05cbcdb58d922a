package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with
// errors.Is() by callers that want to react to a specific problem.
var (
	// ErrNoSeedURLs is returned when no seed URL was given.
	// A crawl has nowhere to start without at least one seed.
	ErrNoSeedURLs = errors.New("no seed URLs specified: provide at least one http(s) URL")

	// ErrInvalidSeedURL is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the depth limit is negative.
	// Depth 0 is valid and means only the seeds are fetched.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMinContentLength is returned when the minimum body length is negative.
	ErrInvalidMinContentLength = errors.New("invalid min content length: must be non-negative")

	// ErrEmptyOutputDir is returned when no corpus directory is configured.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")

	// ErrInvalidDomainCap is returned when the per-domain page cap is not positive.
	ErrInvalidDomainCap = errors.New("invalid max pages per domain: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero would make every fetch fail immediately.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxAttempts is returned when the fetch attempt count is not positive.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to fall back to the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrEmptyUserAgent is returned when the User-Agent is blank.
	// robots.txt groups are matched against it, so it cannot be empty.
	ErrEmptyUserAgent = errors.New("user agent must not be empty")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

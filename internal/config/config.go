package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "infpoisk"

	// DefaultMaxPages is the number of documents saved before a run stops.
	DefaultMaxPages = 100

	// DefaultMaxDepth is the BFS depth ceiling. Seeds have depth 0.
	DefaultMaxDepth = 3

	// DefaultOutputDir is the corpus directory, relative to the working directory.
	DefaultOutputDir = "corpus/crawled"

	// DefaultMinContentLength is the minimum body length, in characters,
	// for a page to be persisted.
	DefaultMinContentLength = 500

	// DefaultUserAgent identifies the crawler in HTTP requests and is the
	// agent name matched against robots.txt groups.
	DefaultUserAgent = "InfoSearchBot/1.0"

	// DefaultMaxPagesPerDomain caps how many URLs of a single host are visited.
	DefaultMaxPagesPerDomain = 100

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the total number of tries for a transient failure.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the first backoff interval; it doubles per retry.
	DefaultRetryBackoff = 1 * time.Second

	// DefaultCrawlDelay is used when robots.txt does not specify Crawl-delay.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultCheckpointEvery is the number of saved documents between
	// state checkpoints.
	DefaultCheckpointEvery = 10

	// IndexFileName is the SQLite corpus index created inside the output directory.
	IndexFileName = ".crawler_index.db"
)

// Config holds all configuration options for a crawl run.
// It is populated from CLI flags, the optional config file or an API request
// and passed through the application rather than kept in global state.
type Config struct {
	// SeedURLs are the starting points of the crawl, pushed at depth 0.
	SeedURLs []string

	// MaxPages is the number of documents to save before stopping.
	MaxPages int

	// MaxDepth is the maximum link distance from a seed.
	MaxDepth int

	// OutputDir is the corpus directory holding documents and the state file.
	OutputDir string

	// MinContentLength is the minimum extracted body length, in characters.
	MinContentLength int

	// UserAgent is sent with every request and used for robots.txt matching.
	UserAgent string

	// MaxPagesPerDomain caps visited URLs per host.
	// Per-domain overrides from the config file take precedence.
	MaxPagesPerDomain int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxAttempts is the total number of tries on transient fetch failures.
	MaxAttempts int

	// RetryBackoff is the initial wait between attempts; doubled each retry.
	RetryBackoff time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// CheckpointEvery is the number of saved documents between checkpoints.
	CheckpointEvery int

	// IndexEnabled records runs and documents in the SQLite corpus index.
	IndexEnabled bool

	// IndexPath overrides the index location. Empty means
	// <OutputDir>/.crawler_index.db.
	IndexPath string

	// StatsOutput is a file path the final statistics are written to as JSON.
	StatsOutput string

	// LogFile tees log output to this file when set.
	LogFile string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// JSONReport prints the final statistics as JSON instead of text.
	JSONReport bool

	// MarkdownReport prints the final statistics as Markdown.
	MarkdownReport bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .infpoisk.yaml is searched in the current and home directories.
	ConfigFilePath string

	// Domains holds per-domain settings loaded from the config file.
	Domains *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:          DefaultMaxPages,
		MaxDepth:          DefaultMaxDepth,
		OutputDir:         DefaultOutputDir,
		MinContentLength:  DefaultMinContentLength,
		UserAgent:         DefaultUserAgent,
		MaxPagesPerDomain: DefaultMaxPagesPerDomain,
		Timeout:           DefaultTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		RetryBackoff:      DefaultRetryBackoff,
		MaxBodySize:       DefaultMaxBodySize,
		CheckpointEvery:   DefaultCheckpointEvery,
		IndexEnabled:      true,
	}
}

// Clone returns a copy of the configuration that shares no slices with c.
// The Domains file is shared; it is treated as read-only once loaded.
func (c *Config) Clone() *Config {
	clone := *c
	clone.SeedURLs = append([]string(nil), c.SeedURLs...)
	return &clone
}

// IndexFile returns the path of the SQLite corpus index.
func (c *Config) IndexFile() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return filepath.Join(c.OutputDir, IndexFileName)
}

// DomainConfig returns the merged settings for host.
// It returns the zero value when no config file was loaded.
func (c *Config) DomainConfig(host string) DomainConfig {
	if c.Domains == nil {
		return DomainConfig{}
	}
	return c.Domains.GetDomainConfig(host)
}

// DomainCaps returns explicit per-domain page caps from the config file.
func (c *Config) DomainCaps() map[string]int {
	caps := make(map[string]int)
	if c.Domains == nil {
		return caps
	}
	for host, dc := range c.Domains.Domains {
		if dc.MaxPages > 0 {
			caps[strings.ToLower(host)] = dc.MaxPages
		}
	}
	return caps
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/infpoisk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
// On Linux: ~/.config/infpoisk
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return ErrNoSeedURLs
	}
	for _, seed := range c.SeedURLs {
		if err := validateSeed(seed); err != nil {
			return err
		}
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MinContentLength < 0 {
		return ErrInvalidMinContentLength
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrEmptyOutputDir
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return ErrEmptyUserAgent
	}
	if c.MaxPagesPerDomain <= 0 {
		return ErrInvalidDomainCap
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

func validateSeed(seed string) error {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSeedURL, seed)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeedURL, seed)
	}
	return nil
}

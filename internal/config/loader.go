package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".infpoisk.yaml"

// XDGConfigFile is the file name looked up inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// CrawlSettings mirrors the crawl options that can be set in the file.
// Zero values mean "not set" and leave the Config default untouched.
type CrawlSettings struct {
	SeedURLs          []string `yaml:"seed_urls,omitempty"`
	MaxPages          int      `yaml:"max_pages,omitempty"`
	MaxDepth          *int     `yaml:"max_depth,omitempty"`
	OutputDir         string   `yaml:"output_dir,omitempty"`
	MinContentLength  *int     `yaml:"min_content_length,omitempty"`
	UserAgent         string   `yaml:"user_agent,omitempty"`
	MaxPagesPerDomain int      `yaml:"max_pages_per_domain,omitempty"`
	Timeout           string   `yaml:"timeout,omitempty"`
	MaxAttempts       int      `yaml:"max_attempts,omitempty"`
	RetryBackoff      string   `yaml:"retry_backoff,omitempty"`
}

// File represents the structure of the .infpoisk.yaml configuration file.
type File struct {
	// Crawl holds run defaults. CLI flags override them.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`

	// Domains maps host names to their specific configurations.
	// Keys are bare hosts without scheme (e.g. "example.com").
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`

	// Defaults apply to every host unless overridden in Domains.
	Defaults DomainConfig `yaml:"defaults,omitempty"`
}

// LoadConfigFile loads a configuration file from path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Domains == nil {
		cf.Domains = make(map[string]DomainConfig)
	}

	return &cf, nil
}

// Apply copies the file's crawl settings onto cfg and attaches the
// per-domain settings.
func (cf *File) Apply(cfg *Config) error {
	s := cf.Crawl
	if len(s.SeedURLs) > 0 {
		cfg.SeedURLs = append([]string(nil), s.SeedURLs...)
	}
	if s.MaxPages != 0 {
		cfg.MaxPages = s.MaxPages
	}
	if s.MaxDepth != nil {
		cfg.MaxDepth = *s.MaxDepth
	}
	if s.OutputDir != "" {
		cfg.OutputDir = s.OutputDir
	}
	if s.MinContentLength != nil {
		cfg.MinContentLength = *s.MinContentLength
	}
	if s.UserAgent != "" {
		cfg.UserAgent = s.UserAgent
	}
	if s.MaxPagesPerDomain != 0 {
		cfg.MaxPagesPerDomain = s.MaxPagesPerDomain
	}
	if s.MaxAttempts != 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("invalid crawl.timeout %q: %w", s.Timeout, err)
		}
		cfg.Timeout = d
	}
	if s.RetryBackoff != "" {
		d, err := time.ParseDuration(s.RetryBackoff)
		if err != nil {
			return fmt.Errorf("invalid crawl.retry_backoff %q: %w", s.RetryBackoff, err)
		}
		cfg.RetryBackoff = d
	}

	cfg.Domains = cf
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .infpoisk.yaml in the current directory
// 3. Look for .infpoisk.yaml in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

package config

import (
	"path"
	"strings"
)

// DomainConfig holds per-host crawl settings from the config file.
type DomainConfig struct {
	// Cookie is an HTTP cookie sent to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers included in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global per-domain page cap for this host.
	// If zero, Config.MaxPagesPerDomain is used.
	MaxPages int `yaml:"max_pages,omitempty"`

	// IgnorePatterns are glob patterns matched against the URL path
	// (e.g. "/tag/*", "*.xml"); matching URLs are never enqueued.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`
}

// RequestHeaders returns the extra headers for this host, with the cookie
// folded in as a Cookie header.
func (dc DomainConfig) RequestHeaders() map[string]string {
	if dc.Cookie == "" && len(dc.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(dc.Headers)+1)
	for k, v := range dc.Headers {
		headers[k] = v
	}
	if dc.Cookie != "" {
		headers["Cookie"] = dc.Cookie
	}
	return headers
}

// Ignores reports whether urlPath matches one of the ignore patterns.
// Invalid patterns never match.
func (dc DomainConfig) Ignores(urlPath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}
	for _, pattern := range dc.IgnorePatterns {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern checks if a URL path matches a glob pattern.
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match, and slash-free patterns are also
//     tried against the last path segment
func matchPattern(pattern, urlPath string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(urlPath, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}

	return false
}

// GetDomainConfig returns the configuration for host merged over the defaults.
// Host matching is case-insensitive.
func (cf *File) GetDomainConfig(host string) DomainConfig {
	result := cf.Defaults
	if len(result.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	domain, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if domain.Cookie != "" {
		result.Cookie = domain.Cookie
	}
	if domain.MaxPages != 0 {
		result.MaxPages = domain.MaxPages
	}
	if len(domain.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range domain.Headers {
			result.Headers[k] = v
		}
	}
	if len(domain.IgnorePatterns) > 0 {
		result.IgnorePatterns = domain.IgnorePatterns
	}

	return result
}

func (cf *File) lookup(host string) (DomainConfig, bool) {
	if dc, ok := cf.Domains[host]; ok {
		return dc, true
	}
	for key, dc := range cf.Domains {
		if strings.EqualFold(key, host) {
			return dc, true
		}
	}
	return DomainConfig{}, false
}

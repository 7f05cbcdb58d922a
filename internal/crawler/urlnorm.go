package crawler

import (
	"net/url"
	"strings"
)

// excludedExtensions are path suffixes of binary and media files the
// crawler never fetches.
var excludedExtensions = []string{
	".pdf", ".doc", ".docx", ".zip", ".rar", ".exe",
	".jpg", ".jpeg", ".png", ".gif", ".mp4", ".avi",
}

// NormalizeURL resolves raw against base and reduces it to the form used
// for deduplication: lower-case scheme and host, no trailing slash, no query
// and no fragment. It returns "" when raw cannot be parsed.
//
//	NormalizeURL("/news/?page=2#top", "https://Example.COM/") == "https://example.com/news"
func NormalizeURL(raw, base string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	if base != "" {
		b, err := url.Parse(base)
		if err == nil {
			ref = b.ResolveReference(ref)
		}
	}

	ref.Scheme = strings.ToLower(ref.Scheme)
	ref.Host = strings.ToLower(ref.Host)
	ref.Path = strings.TrimRight(ref.Path, "/")
	ref.RawPath = strings.TrimRight(ref.RawPath, "/")
	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.Fragment = ""
	ref.RawFragment = ""

	return ref.String()
}

// IsValidURL reports whether u may enter the frontier: an http or https URL
// with a host whose path does not end in a binary or media extension.
func IsValidURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	return true
}

// domainOf returns the lower-cased host[:port] of u, or "" if it cannot be parsed.
func domainOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

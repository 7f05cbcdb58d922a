// Package metrics exposes crawl progress as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

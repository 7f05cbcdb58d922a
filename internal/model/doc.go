// Package model defines the core data structures shared by the crawler,
// the corpus store, the index and the report writers.
//
// This package contains the following main types:
//   - FrontierEntry: a queued URL with its depth
//   - Content and Document: extracted page content and its persisted form
//   - CrawlState: the resumable checkpoint
//   - CrawlStats: run counters
//   - RunRecord: a run as stored in the corpus index
package model

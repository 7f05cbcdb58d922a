// Package database keeps a SQLite index of crawl runs and saved documents.
//
// The index lives next to the corpus (by default <output>/.crawler_index.db)
// and records, for every run, its seeds, status and counters, and for every
// saved document its URL, title and a SHA3-256 hash of the text. The corpus
// files remain the source of truth; the index only answers history and
// duplicate queries.
//
// The database uses modernc.org/sqlite, a CGO-free driver, with WAL
// journaling and a single connection.
package database

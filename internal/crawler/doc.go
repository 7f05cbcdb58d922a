// Package crawler implements the breadth-first crawl.
//
// The Frontier holds normalized URLs in FIFO order together with the
// visited set and per-domain visit counts. The Extractor turns HTML into
// title, body text, date and outgoing links. The Orchestrator drives the
// loop: pop, robots check, politeness delay, fetch, extract, save, enqueue
// links. The Controller lets a long-running service start, stop and
// inspect one crawl at a time.
package crawler

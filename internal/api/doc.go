// Package api serves the crawl controller over HTTP.
//
// Routes:
//
//	POST /api/crawl/start   start a crawl from a JSON body
//	POST /api/crawl/stop    request the active crawl to stop
//	GET  /api/crawl/status  live or last crawl status
//	GET  /api/runs          indexed run history, when an index is configured
//	GET  /healthz           liveness
//	GET  /metrics           Prometheus metrics
package api

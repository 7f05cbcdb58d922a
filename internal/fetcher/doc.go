// Package fetcher retrieves HTML pages over HTTP and decides, from
// robots.txt, which of them the crawler may request.
//
// Fetcher retries transient failures (429 and 5xx gateway errors, network
// errors) with exponential backoff and decodes bodies to UTF-8 using the
// declared or sniffed charset. RobotsPolicy fetches robots.txt once per
// scheme and host and answers allow/disallow and Crawl-delay questions
// from that cache.
package fetcher

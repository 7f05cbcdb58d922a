// Package main provides the entry point for the infpoisk CLI.
//
// infpoisk is a polite breadth-first web crawler that builds a plain-text
// document corpus for search experiments. It honours robots.txt, paces
// requests per host and can resume an interrupted crawl.
//
// Usage:
//
//	infpoisk crawl https://example.com/
//	infpoisk serve --addr :8080
//	infpoisk history
//
// See --help for all available options.
package main

func main() {
	Execute()
}

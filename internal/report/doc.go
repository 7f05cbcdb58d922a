// Package report renders crawl statistics and run history.
//
// Writers for different output formats:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for --stats-output and tool integration
//   - MarkdownWriter: Markdown for sharing a run summary
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report

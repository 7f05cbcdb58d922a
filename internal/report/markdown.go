package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/qwc999/infpoisk/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl summary in Markdown format.
func (w *MarkdownWriter) Write(stats *model.CrawlStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", formatTime(stats.StartTime)},
			{"Finished", formatTime(stats.EndTime)},
			{"Duration", stats.Duration().Round(time.Second).String()},
		},
	})
	md.PlainText("")

	md.H2("Counters")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Documents saved", strconv.Itoa(stats.DocumentsSaved)},
			{"URLs visited", strconv.Itoa(stats.URLsVisited)},
			{"URLs failed", strconv.Itoa(stats.URLsFailed)},
			{"URLs skipped", strconv.Itoa(stats.URLsSkipped)},
		},
	})
	md.PlainText("")

	if stats.URLsVisited+stats.URLsSkipped > 0 {
		w.writePieChart(md, stats)
	}
	w.writeAlert(md, stats)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of URL outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats *model.CrawlStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("URL Outcomes"),
		piechart.WithShowData(true),
	)

	if ok := stats.URLsVisited - stats.URLsFailed; ok > 0 {
		chart.LabelAndIntValue("Fetched", uint64(ok))
	}
	if stats.URLsFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(stats.URLsFailed))
	}
	if stats.URLsSkipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(stats.URLsSkipped))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, stats *model.CrawlStats) {
	switch {
	case stats.URLsVisited == 0:
		md.Warningf("No URLs were visited (%d skipped by robots.txt).", stats.URLsSkipped)
	case stats.DocumentsSaved == 0:
		md.Importantf("No documents were saved out of %d visited URL(s).", stats.URLsVisited)
	case stats.URLsFailed > 0:
		md.Note(fmt.Sprintf("%d URL(s) failed after retries.", stats.URLsFailed))
	default:
		md.Tip(fmt.Sprintf("%d document(s) saved.", stats.DocumentsSaved))
	}
	md.PlainText("")
}

// WriteRuns outputs a table of runs in Markdown format.
func (w *MarkdownWriter) WriteRuns(runs []*model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No crawl runs recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			"`" + run.ID + "`",
			string(run.Status),
			formatTime(run.StartedAt),
			strconv.Itoa(run.Stats.DocumentsSaved),
			strconv.Itoa(run.Stats.URLsVisited),
			strconv.Itoa(run.Stats.URLsFailed),
			strconv.Itoa(run.Stats.URLsSkipped),
			truncateString(strings.Join(run.SeedURLs, " "), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Run", "Status", "Started", "Docs", "Visited", "Failed", "Skipped", "Seeds"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by infpoisk*")
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

package crawler

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/qwc999/infpoisk/internal/model"
)

// noiseSelector matches elements dropped before any text is read.
const noiseSelector = "script, style, nav, header, footer, aside, iframe"

// contentSelectors are tried in order; the first one with any match
// provides the body text. Generic blog and CMS containers come first,
// then layouts common on Russian news sites.
var contentSelectors = []string{
	"article",
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"main",
	".main-content",
	"#content",
	".story-body",
	".article-body",
	".b-article__body",
	".article__text",
	".news-text",
}

// dateClassPattern finds elements whose class mentions a date or time.
var dateClassPattern = regexp.MustCompile(`date|time`)

// Extractor pulls the title, main text, publication date and outgoing
// links from HTML pages.
type Extractor struct {
	logger *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorLogger sets the logger used for parse failures.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the title, body text and date of an HTML page.
// A document that cannot be parsed yields the zero Content.
func (e *Extractor) Extract(html string) model.Content {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("failed to parse HTML", "error", err)
		return model.Content{}
	}

	doc.Find(noiseSelector).Remove()

	return model.Content{
		Title: extractTitle(doc),
		Text:  extractBody(doc),
		Date:  extractDate(doc),
	}
}

// ExtractLinks returns every anchor target of html resolved against base,
// normalized and filtered with IsValidURL. Navigation and footer links are
// included. Order follows the document.
func (e *Extractor) ExtractLinks(html, base string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("failed to parse HTML for links", "url", base, "error", err)
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		normalized := NormalizeURL(href, base)
		if normalized != "" && IsValidURL(normalized) {
			links = append(links, normalized)
		}
	})

	return links
}

func extractTitle(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		title = doc.Find("h1").First()
	}
	return cleanText(title.Text())
}

// extractBody picks the longest match of the first selector that matches
// anything, falling back to the whole <body>. A selector whose matches hold
// only whitespace also falls back, and later selectors are not tried.
func extractBody(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}

		var longest string
		longestLen := -1
		matches.Each(func(_ int, s *goquery.Selection) {
			text := s.Text()
			if n := utf8.RuneCountInString(text); n > longestLen {
				longest, longestLen = text, n
			}
		})
		if text := cleanText(longest); text != "" {
			return text
		}
		break
	}

	return cleanText(doc.Find("body").Text())
}

// extractDate returns the first <time> element, or the first element with
// a date-like class. The datetime attribute wins over the element text.
func extractDate(doc *goquery.Document) string {
	elem := doc.Find("time").First()
	if elem.Length() == 0 {
		elem = doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return dateClassPattern.MatchString(class)
		}).First()
	}
	if elem.Length() == 0 {
		return ""
	}

	if datetime, ok := elem.Attr("datetime"); ok && strings.TrimSpace(datetime) != "" {
		return strings.TrimSpace(datetime)
	}
	return cleanText(elem.Text())
}

// cleanText applies NFC normalization and collapses whitespace runs.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

package model

import (
	"net/url"
	"unicode/utf8"
)

// DocumentType is the "type" value written into every metadata file.
const DocumentType = "crawled_web_page"

// UntitledTitle replaces an empty title in saved documents.
const UntitledTitle = "Untitled"

// Content is the result of extracting one HTML page.
// Empty fields mean the value was not found.
type Content struct {
	// Title comes from <title>, falling back to the first <h1>.
	Title string

	// Text is the main body text with whitespace collapsed.
	Text string

	// Date is the publication date as found on the page, unparsed.
	Date string
}

// Length returns the body length in characters.
func (c Content) Length() int {
	return utf8.RuneCountInString(c.Text)
}

// Document is one persisted corpus entry.
type Document struct {
	// ID is the numeric identifier used in the doc_%08d file names.
	ID int

	// Title is the extracted page title, possibly empty.
	Title string

	// Source is the network location (host and port) of URL.
	Source string

	// URL is the normalized address the page was fetched from.
	URL string

	// Date is the publication date string, possibly empty.
	Date string

	// Text is the extracted body text.
	Text string
}

// NewDocument builds a Document for pageURL from extracted content.
func NewDocument(id int, pageURL string, c Content) *Document {
	return &Document{
		ID:     id,
		Title:  c.Title,
		Source: SourceOf(pageURL),
		URL:    pageURL,
		Date:   c.Date,
		Text:   c.Text,
	}
}

// DisplayTitle returns the title, or "Untitled" when it is empty.
func (d *Document) DisplayTitle() string {
	if d.Title == "" {
		return UntitledTitle
	}
	return d.Title
}

// DocumentMeta is the JSON sidecar written next to each document.
// Field order matches the on-disk key order.
type DocumentMeta struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url"`
	Date   string `json:"date"`
	Text   string `json:"text"`
	Type   string `json:"type"`
}

// Meta returns the sidecar metadata for the document.
func (d *Document) Meta() DocumentMeta {
	return DocumentMeta{
		Title:  d.DisplayTitle(),
		Source: d.Source,
		URL:    d.URL,
		Date:   d.Date,
		Text:   d.Text,
		Type:   DocumentType,
	}
}

// SourceOf returns the host[:port] part of rawURL, or "" if it cannot be parsed.
func SourceOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

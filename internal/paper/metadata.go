package paper

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Metadata is supplied out-of-band (scraper sidecars, upload form fields)
// and merged into an Article by the caller, never by the extractor.
type Metadata struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Published string   `json:"published"`
	Abstract  string   `json:"abstract,omitempty"`
	HTMLURL   string   `json:"html_url,omitempty"`
	PDFURL    string   `json:"pdf_url,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// Article is a Record enriched with metadata, ready for indexing.
type Article struct {
	Record
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Date     string   `json:"date"`
	Abstract string   `json:"abstract"`
	Source   string   `json:"source"`
}

var validSources = map[string]bool{
	"arxiv":  true,
	"pubmed": true,
}

const maxTitleLen = 500

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01",
	"2006",
}

// NewArticle merges metadata into a record. Fields missing from meta fall
// back to what the record itself implies: the paper id as title and the
// source named by kind.
func NewArticle(rec Record, meta *Metadata, kind FormatKind) Article {
	a := Article{Record: rec, Authors: []string{}}
	if meta != nil {
		NormalizeMetadata(meta)
		a.Title = meta.Title
		a.Authors = meta.Authors
		a.Date = meta.Published
		a.Abstract = meta.Abstract
		a.Source = meta.Source
	}
	if a.Title == "" {
		a.Title = rec.PaperID
	}
	if a.Source == "" {
		a.Source = kind.String()
	}
	return a
}

// NormalizeMetadata trims fields, drops empty authors, coerces the date to
// YYYY-MM-DD (or clears it) and clears unknown sources.
func NormalizeMetadata(m *Metadata) {
	if m == nil {
		return
	}
	m.Title = collapse(m.Title)
	m.Title = truncate(m.Title, maxTitleLen)
	m.Abstract = collapse(m.Abstract)

	authors := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		if a = collapse(a); a != "" {
			authors = append(authors, a)
		}
	}
	m.Authors = authors

	m.Published = NormalizeDate(m.Published)

	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	if !validSources[m.Source] {
		m.Source = ""
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// NormalizeDate returns s as YYYY-MM-DD, or "" if it is not a recognizable date.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

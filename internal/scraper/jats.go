package scraper

import (
	"fmt"
	"strings"

	"github.com/dgallion1/papergest/internal/adapter"
	"github.com/dgallion1/papergest/internal/doctree"
	"github.com/dgallion1/papergest/internal/paper"
)

// ParseJATSMetadata reads bibliographic fields from a JATS article. The
// publication date comes from the epub pub-date, then pmc-release, then the
// first pub-date of any type; missing month or day default to 01.
func ParseJATSMetadata(doc doctree.Node, pmcID string) paper.Metadata {
	m := paper.Metadata{
		ID:      pmcID,
		Title:   doctree.TextOf(doc.Find("article-title")),
		Authors: []string{},
		HTMLURL: adapter.PMCBase + "/" + pmcID + "/",
		Source:  "pubmed",
	}
	if m.Title == "" {
		m.Title = fmt.Sprintf("Unknown Title (%s)", pmcID)
	}

	if group := doc.Find("contrib-group"); group != nil {
		for _, c := range group.FindAll("contrib") {
			if typ, _ := c.Attr("contrib-type"); typ != "author" {
				continue
			}
			name := c.Find("name")
			if name == nil {
				continue
			}
			full := strings.TrimSpace(doctree.TextOf(name.Find("given-names")) + " " + doctree.TextOf(name.Find("surname")))
			if full != "" {
				m.Authors = append(m.Authors, full)
			}
		}
	}

	if abs := doc.Find("abstract"); abs != nil {
		m.Abstract = abs.SpacedText()
	}
	m.Published = jatsDate(pubDate(doc))
	return m
}

func pubDate(doc doctree.Node) doctree.Node {
	dates := doc.FindAll("pub-date")
	for _, want := range []string{"epub", "pmc-release"} {
		for _, d := range dates {
			if typ, _ := d.Attr("pub-type"); typ == want {
				return d
			}
		}
	}
	if len(dates) > 0 {
		return dates[0]
	}
	return nil
}

func jatsDate(d doctree.Node) string {
	if d == nil {
		return ""
	}
	year := doctree.TextOf(d.Find("year"))
	if year == "" {
		return ""
	}
	month := doctree.TextOf(d.Find("month"))
	if month == "" {
		month = "01"
	}
	day := doctree.TextOf(d.Find("day"))
	if day == "" {
		day = "01"
	}
	return fmt.Sprintf("%s-%s-%s", year, zeroPad(month), zeroPad(day))
}

func zeroPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

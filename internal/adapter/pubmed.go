package adapter

import (
	"fmt"
	"strings"

	"github.com/dgallion1/papergest/internal/doctree"
	"github.com/dgallion1/papergest/internal/paper"
)

// PMCBase is where PubMed Central serves article binaries.
const PMCBase = "https://www.ncbi.nlm.nih.gov/pmc/articles"

// PubMed adapts JATS XML from PubMed Central.
type PubMed struct{}

func (PubMed) Adapt(doc doctree.Node, paperID string) Result {
	return Result{
		FullText:   doc.SpacedText(),
		Tables:     pubmedTables(doc),
		Figures:    pubmedFigures(doc, paperID),
		Paragraphs: paragraphs(doc, jatsHrefs),
	}
}

// ImageURL builds the PMC binary URL for a graphic reference. JATS names the
// file without extension and PMC serves most figures as JPEG, so ".jpg" is
// assumed; GIF or PNG figures get a URL that does not resolve.
func ImageURL(paperID, ref string) string {
	if ref == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/bin/%s.jpg", PMCBase, paperID, ref)
}

func pubmedTables(doc doctree.Node) []paper.Item {
	wraps := doc.FindAll("table-wrap")
	tables := make([]paper.Item, 0, len(wraps))
	for i, wrap := range wraps {
		item := newItem(paper.KindTable, doctree.AttrOr(wrap, "id", tableID(i)), doctree.TextOf(wrap.Find("caption")))
		if tbl := wrap.Find("table"); tbl != nil {
			item.Body = tbl.SpacedText()
			item.RawMarkup = tbl.Markup()
		}
		tables = append(tables, item)
	}
	return tables
}

func pubmedFigures(doc doctree.Node, paperID string) []paper.Item {
	figs := doc.FindAll("fig")
	figures := make([]paper.Item, 0, len(figs))
	for i, fig := range figs {
		item := newItem(paper.KindFigure, doctree.AttrOr(fig, "id", figureID(i)), doctree.TextOf(fig.Find("caption")))
		if graphic := fig.Find("graphic"); graphic != nil {
			ref, _ := graphic.Attr("xlink:href")
			item.ImageRef = ImageURL(paperID, strings.TrimSpace(ref))
		}
		figures = append(figures, item)
	}
	return figures
}

// jatsHrefs gathers link targets of a JATS paragraph. Cross references
// (<xref rid="F1 F2">) become "#F1", "#F2" so they resolve like HTML anchors.
func jatsHrefs(p doctree.Node) []string {
	hrefs := anchorHrefs(p)
	for _, link := range p.FindAll("ext-link") {
		if href, ok := link.Attr("xlink:href"); ok {
			hrefs = append(hrefs, href)
		}
	}
	for _, xref := range p.FindAll("xref") {
		rid, _ := xref.Attr("rid")
		for _, id := range strings.Fields(rid) {
			hrefs = append(hrefs, "#"+id)
		}
	}
	return hrefs
}

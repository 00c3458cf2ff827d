package adapter

import (
	"github.com/dgallion1/papergest/internal/doctree"
	"github.com/dgallion1/papergest/internal/paper"
)

// LaTeXML marker classes used by arXiv's HTML rendering.
const (
	ClassDocument = "ltx_document"
	ClassTable    = "ltx_table"
	ClassFigure   = "ltx_figure"
)

// ArXiv adapts LaTeXML HTML as served under arxiv.org/html.
type ArXiv struct{}

func (ArXiv) Adapt(doc doctree.Node, paperID string) Result {
	return Result{
		FullText:   arxivFullText(doc),
		Tables:     arxivTables(doc),
		Figures:    arxivFigures(doc),
		Paragraphs: paragraphs(doc, anchorHrefs),
	}
}

func arxivFullText(doc doctree.Node) string {
	if article := doctree.FindWithClass(doc, "article", ClassDocument); article != nil {
		return article.SpacedText()
	}
	if body := doc.Find("body"); body != nil {
		return body.SpacedText()
	}
	return doc.SpacedText()
}

// arxivTables prefers tables carrying the LaTeXML table class. Without any,
// every table in the document is taken, layout tables included.
func arxivTables(doc doctree.Node) []paper.Item {
	nodes := doctree.FindAllWithClass(doc, "table", ClassTable)
	if len(nodes) == 0 {
		nodes = doc.FindAll("table")
	}

	tables := make([]paper.Item, 0, len(nodes))
	for i, tbl := range nodes {
		id := tableID(i)
		caption := ""
		if wrapper := tbl.Closest("figure"); wrapper != nil {
			id = doctree.AttrOr(wrapper, "id", id)
			caption = doctree.TextOf(wrapper.Find("figcaption"))
		}
		if caption == "" {
			caption = doctree.TextOf(tbl.Find("caption"))
		}

		item := newItem(paper.KindTable, id, caption)
		item.Body = tbl.SpacedText()
		item.RawMarkup = tbl.Markup()
		tables = append(tables, item)
	}
	return tables
}

func arxivFigures(doc doctree.Node) []paper.Item {
	nodes := doctree.FindAllWithClass(doc, "figure", ClassFigure)
	figures := make([]paper.Item, 0, len(nodes))
	for i, fig := range nodes {
		item := newItem(paper.KindFigure, doctree.AttrOr(fig, "id", figureID(i)), doctree.TextOf(fig.Find("figcaption")))
		if img := fig.Find("img"); img != nil {
			item.ImageRef, _ = img.Attr("src")
		}
		figures = append(figures, item)
	}
	return figures
}

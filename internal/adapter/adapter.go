// Package adapter locates the text body, tables, figures and paragraphs of a
// parsed paper and normalizes them into paper.Item values.
package adapter

import (
	"fmt"

	"github.com/dgallion1/papergest/internal/doctree"
	"github.com/dgallion1/papergest/internal/paper"
)

// Result is what an adapter finds in one document. Items come back with
// empty Mentions and ContextParagraphs; the linker fills those.
type Result struct {
	FullText   string
	Tables     []paper.Item
	Figures    []paper.Item
	Paragraphs []paper.Paragraph
}

// Adapter extracts a Result from a document of one source format.
type Adapter interface {
	Adapt(doc doctree.Node, paperID string) Result
}

// For returns the adapter for a format.
func For(kind paper.FormatKind) Adapter {
	if kind == paper.FormatPubMed {
		return PubMed{}
	}
	return ArXiv{}
}

// tableID and figureID build the positional fallback ids. They are stable
// only while the markup order is.
func tableID(i int) string  { return fmt.Sprintf("tab_%d", i) }
func figureID(i int) string { return fmt.Sprintf("fig_%d", i) }

func newItem(kind paper.ItemKind, id, caption string) paper.Item {
	return paper.Item{
		ID:                id,
		Kind:              kind,
		Caption:           caption,
		Mentions:          []string{},
		ContextParagraphs: []string{},
	}
}

// paragraphs collects every <p> under doc in document order, with the link
// targets found by hrefsOf.
func paragraphs(doc doctree.Node, hrefsOf func(doctree.Node) []string) []paper.Paragraph {
	nodes := doc.FindAll("p")
	out := make([]paper.Paragraph, 0, len(nodes))
	for _, p := range nodes {
		out = append(out, paper.Paragraph{
			Text:  p.Text(),
			Hrefs: hrefsOf(p),
		})
	}
	return out
}

func anchorHrefs(p doctree.Node) []string {
	var hrefs []string
	for _, a := range p.FindAll("a") {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

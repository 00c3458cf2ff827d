// Package linker associates tables and figures with the paragraphs that
// cite them (explicit anchor mentions) or discuss them (keyword overlap with
// the caption).
package linker

import (
	"strings"

	"github.com/dgallion1/papergest/internal/keywords"
	"github.com/dgallion1/papergest/internal/paper"
)

// MinSharedKeywords is the caption/paragraph overlap that makes a paragraph
// context for an item.
const MinSharedKeywords = 2

// Linker holds one document's paragraphs with their keyword sets computed
// once. It is read-only after construction and safe for concurrent use.
type Linker struct {
	paragraphs []paper.Paragraph
	keywords   []keywords.Set
}

// New prepares a linker over paragraphs in document order.
func New(paragraphs []paper.Paragraph) *Linker {
	l := &Linker{
		paragraphs: paragraphs,
		keywords:   make([]keywords.Set, len(paragraphs)),
	}
	for i, p := range paragraphs {
		l.keywords[i] = keywords.Extract(p.Text)
	}
	return l
}

// Link returns a copy of item with Mentions and ContextParagraphs computed
// against every paragraph. The two tests are independent: a paragraph can
// land in both lists, either, or neither.
func (l *Linker) Link(item paper.Item) paper.Item {
	captionKeywords := keywords.Extract(item.Caption)

	mentions := []string{}
	context := []string{}
	for i, p := range l.paragraphs {
		if Mentions(p, item.ID) {
			mentions = append(mentions, p.Text)
		}
		if len(captionKeywords) > 0 && captionKeywords.Overlap(l.keywords[i]) >= MinSharedKeywords {
			context = append(context, p.Text)
		}
	}

	item.Mentions = mentions
	item.ContextParagraphs = context
	return item
}

// LinkAll links every item, preserving order.
func (l *Linker) LinkAll(items []paper.Item) []paper.Item {
	out := make([]paper.Item, len(items))
	for i, it := range items {
		out[i] = l.Link(it)
	}
	return out
}

// Link is the one-shot form of New(paragraphs).Link(item).
func Link(item paper.Item, paragraphs []paper.Paragraph) paper.Item {
	return New(paragraphs).Link(item)
}

// Mentions reports whether any link in p targets id, either as "#id" or as
// a URL ending in "#id". The suffix rule also accepts links into other
// documents ("supplement.html#t1") that happen to reuse the id.
func Mentions(p paper.Paragraph, id string) bool {
	if id == "" {
		return false
	}
	anchor := "#" + id
	for _, href := range p.Hrefs {
		if href == anchor || strings.HasSuffix(href, anchor) {
			return true
		}
	}
	return false
}

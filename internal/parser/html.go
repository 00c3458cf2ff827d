package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/papergest/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTMLParser handles HTML files, including LaTeXML output.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (doctree.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("read html: %w", err)}
	}
	var body io.Reader = bytes.NewReader(src)
	if !utf8.Valid(src) {
		// Decode by BOM or <meta charset>, else windows-1252.
		body, err = charset.NewReader(body, "")
		if err != nil {
			return nil, &ParseError{Filename: filename, Err: fmt.Errorf("decode html: %w", err)}
		}
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("parse html: %w", err)}
	}
	return &htmlNode{sel: doc.Selection}, nil
}

// htmlNode wraps a single-node goquery selection.
type htmlNode struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []doctree.Node {
	out := make([]doctree.Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &htmlNode{sel: s})
	})
	return out
}

func (n *htmlNode) raw() *html.Node {
	return n.sel.Get(0)
}

func (n *htmlNode) Tag() string {
	if raw := n.raw(); raw.Type == html.ElementNode {
		return raw.Data
	}
	return ""
}

func (n *htmlNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *htmlNode) HasClass(class string) bool {
	return n.sel.HasClass(class)
}

func (n *htmlNode) Text() string {
	return doctree.CollapseSpace(strings.Join(textFragments(n.raw()), ""))
}

func (n *htmlNode) SpacedText() string {
	return doctree.CollapseSpace(strings.Join(textFragments(n.raw()), " "))
}

func (n *htmlNode) FindAll(tag string) []doctree.Node {
	return wrapSelection(n.sel.Find(tag))
}

func (n *htmlNode) Find(tag string) doctree.Node {
	found := n.sel.Find(tag).First()
	if found.Length() == 0 {
		return nil
	}
	return &htmlNode{sel: found}
}

func (n *htmlNode) Closest(tag string) doctree.Node {
	found := n.sel.ParentsFiltered(tag).First()
	if found.Length() == 0 {
		return nil
	}
	return &htmlNode{sel: found}
}

func (n *htmlNode) Markup() string {
	out, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return out
}

// textFragments collects text nodes in document order, skipping elements
// that never render.
func textFragments(root *html.Node) []string {
	var frags []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			frags = append(frags, n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return frags
}

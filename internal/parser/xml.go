package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/papergest/internal/doctree"
	"golang.org/x/net/html/charset"
)

// XMLParser handles JATS XML as served by PubMed Central. Decoding is
// lenient: unknown entities pass through, an end tag closes any elements
// left open inside it, and end tags with no open element are dropped.
type XMLParser struct{}

func (p *XMLParser) Parse(r io.Reader, filename string) (doctree.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("read xml: %w", err)}
	}

	d := xml.NewDecoder(bytes.NewReader(src))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	root := &xmlNode{src: src}
	// RawToken does no nesting checks; open elements are tracked here.
	stack := []*xmlNode{root}
	for {
		offset := d.InputOffset()
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Filename: filename, Err: fmt.Errorf("decode xml: %w", err)}
		}
		cur := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{
				parent: cur,
				name:   t.Name,
				attrs:  append([]xml.Attr(nil), t.Attr...),
				src:    src,
				start:  offset,
				end:    -1,
			}
			cur.parts = append(cur.parts, xmlPart{child: n})
			stack = append(stack, n)
		case xml.EndElement:
			i := openIndex(stack, t.Name)
			if i < 0 {
				continue
			}
			for _, open := range stack[i+1:] {
				open.end = offset
			}
			stack[i].end = d.InputOffset()
			stack = stack[:i]
		case xml.CharData:
			cur.parts = append(cur.parts, xmlPart{text: string(t)})
		}
	}

	if root.Find("") == nil {
		return nil, &ParseError{Filename: filename, Err: errors.New("no root element")}
	}
	root.closeOpen(int64(len(src)))
	return root, nil
}

// openIndex finds the innermost open element named name, or -1. The
// document node at the bottom of the stack never matches.
func openIndex(stack []*xmlNode, name xml.Name) int {
	for i := len(stack) - 1; i > 0; i-- {
		if stack[i].name.Local == name.Local && stack[i].name.Space == name.Space {
			return i
		}
	}
	return -1
}

// xmlNode is an element of a decoded XML document. The document itself is
// the parentless node with an empty name.
type xmlNode struct {
	parent *xmlNode
	name   xml.Name
	attrs  []xml.Attr
	parts  []xmlPart
	src    []byte
	start  int64
	end    int64
}

// xmlPart is either a text run or a child element, kept in source order.
type xmlPart struct {
	text  string
	child *xmlNode
}

func (n *xmlNode) closeOpen(eof int64) {
	if n.end < 0 {
		n.end = eof
	}
	for _, p := range n.parts {
		if p.child != nil {
			p.child.closeOpen(eof)
		}
	}
}

func (n *xmlNode) Tag() string {
	return n.name.Local
}

func (n *xmlNode) Attr(name string) (string, bool) {
	prefix, local, qualified := strings.Cut(name, ":")
	if !qualified {
		local, prefix = prefix, ""
	}
	// Exact prefix match first, then any prefix with the same local name.
	for _, a := range n.attrs {
		if a.Name.Space == prefix && a.Name.Local == local {
			return a.Value, true
		}
	}
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) HasClass(class string) bool {
	v, ok := n.Attr("class")
	return ok && doctree.ClassListContains(v, class)
}

func (n *xmlNode) Text() string {
	var b strings.Builder
	n.writeText(&b, "")
	return doctree.CollapseSpace(b.String())
}

func (n *xmlNode) SpacedText() string {
	var b strings.Builder
	n.writeText(&b, " ")
	return doctree.CollapseSpace(b.String())
}

func (n *xmlNode) writeText(b *strings.Builder, sep string) {
	for _, p := range n.parts {
		if p.child != nil {
			p.child.writeText(b, sep)
			continue
		}
		b.WriteString(p.text)
		b.WriteString(sep)
	}
}

func (n *xmlNode) matches(tag string) bool {
	return tag == "" || strings.EqualFold(n.name.Local, tag)
}

func (n *xmlNode) FindAll(tag string) []doctree.Node {
	var out []doctree.Node
	var walk func(*xmlNode)
	walk = func(cur *xmlNode) {
		for _, p := range cur.parts {
			if p.child == nil {
				continue
			}
			if p.child.matches(tag) {
				out = append(out, p.child)
			}
			walk(p.child)
		}
	}
	walk(n)
	return out
}

func (n *xmlNode) Find(tag string) doctree.Node {
	if found := n.find(tag); found != nil {
		return found
	}
	return nil
}

func (n *xmlNode) find(tag string) *xmlNode {
	for _, p := range n.parts {
		if p.child == nil {
			continue
		}
		if p.child.matches(tag) {
			return p.child
		}
		if found := p.child.find(tag); found != nil {
			return found
		}
	}
	return nil
}

func (n *xmlNode) Closest(tag string) doctree.Node {
	for p := n.parent; p != nil && p.parent != nil; p = p.parent {
		if p.matches(tag) {
			return p
		}
	}
	return nil
}

func (n *xmlNode) Markup() string {
	if n.parent == nil {
		return string(n.src)
	}
	if n.start < 0 || n.end > int64(len(n.src)) || n.start >= n.end {
		return ""
	}
	return string(n.src[n.start:n.end])
}

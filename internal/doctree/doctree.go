// Package doctree defines the read-only markup tree the document adapters
// query. HTML and XML parsers each provide an implementation.
package doctree

import "strings"

// Node is an element of a parsed document.
type Node interface {
	// Tag is the element's local name, lower-cased for HTML.
	Tag() string
	// Attr returns an attribute value. Namespaced XML attributes match on
	// their local name as well as on "prefix:local".
	Attr(name string) (string, bool)
	// HasClass reports whether the class attribute contains class.
	HasClass(class string) bool
	// Text is the node's visible text with whitespace runs collapsed.
	Text() string
	// SpacedText joins every text fragment with a single space.
	SpacedText() string
	// FindAll returns descendants with the given tag in document order.
	FindAll(tag string) []Node
	// Find returns the first descendant with the given tag, or nil.
	Find(tag string) Node
	// Closest returns the nearest ancestor with the given tag, or nil.
	Closest(tag string) Node
	// Markup serializes the node as it appeared in the source.
	Markup() string
}

// FindAllWithClass filters FindAll(tag) to elements carrying class.
func FindAllWithClass(n Node, tag, class string) []Node {
	var out []Node
	for _, c := range n.FindAll(tag) {
		if c.HasClass(class) {
			out = append(out, c)
		}
	}
	return out
}

// FindWithClass returns the first descendant matching tag and class, or nil.
func FindWithClass(n Node, tag, class string) Node {
	for _, c := range n.FindAll(tag) {
		if c.HasClass(class) {
			return c
		}
	}
	return nil
}

// AttrOr returns the attribute value, or fallback when it is missing or blank.
func AttrOr(n Node, name, fallback string) string {
	if v, ok := n.Attr(name); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// TextOf returns the Text of n, or "" for a nil node.
func TextOf(n Node) string {
	if n == nil {
		return ""
	}
	return n.Text()
}

// ClassListContains reports whether a space-separated class list holds class.
func ClassListContains(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

// CollapseSpace trims s and replaces whitespace runs with single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

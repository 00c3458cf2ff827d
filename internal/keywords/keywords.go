// Package keywords turns free text into the normalized keyword sets used to
// relate captions to paragraphs.
package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MinLength is the shortest token kept; shorter tokens carry no topic.
const MinLength = 3

// StopWords holds common English and Italian function words.
var StopWords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true,
	"for": true, "to": true, "of": true, "and": true, "or": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"we": true, "can": true, "as": true, "by": true, "from": true, "with": true,
	"il": true, "lo": true, "la": true, "i": true, "gli": true, "le": true,
	"un": true, "uno": true, "una": true, "di": true, "da": true, "con": true,
	"su": true, "per": true, "tra": true, "fra": true,
}

// Set is an unordered collection of keywords.
type Set map[string]struct{}

// Has reports whether k is in the set.
func (s Set) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Overlap counts the keywords present in both sets.
func (s Set) Overlap(other Set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for k := range small {
		if large.Has(k) {
			n++
		}
	}
	return n
}

var lower = cases.Lower(language.Und)

// Extract lower-cases text, drops every rune that is neither a letter,
// digit, underscore nor whitespace, splits on whitespace and keeps tokens
// of at least MinLength runes that are not stop words.
func Extract(text string) Set {
	out := Set{}
	if text == "" {
		return out
	}
	text = lower.String(norm.NFC.String(text))

	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	for _, tok := range strings.Fields(cleaned) {
		if len([]rune(tok)) < MinLength || StopWords[tok] {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

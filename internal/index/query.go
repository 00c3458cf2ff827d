package index

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	field string
	text  string
}

// lexQuery splits a boolean query into tokens. Only upper-case AND, OR and
// NOT are operators; a leading '-' negates a term and a leading '+' is
// ignored. An unterminated quote runs to the end of the input.
func lexQuery(s string) []token {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokOpen})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokClose})
			i++
		case r == '"':
			text, n := readPhrase(rs[i+1:])
			toks = append(toks, token{kind: tokPhrase, text: text})
			i += n + 1
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && rs[j] != '(' && rs[j] != ')' && rs[j] != '"' {
				j++
			}
			word := string(rs[i:j])
			i = j

			switch word {
			case "AND", "&&":
				toks = append(toks, token{kind: tokAnd})
				continue
			case "OR", "||":
				toks = append(toks, token{kind: tokOr})
				continue
			case "NOT":
				toks = append(toks, token{kind: tokNot})
				continue
			}
			if strings.HasPrefix(word, "-") && len(word) > 1 {
				toks = append(toks, token{kind: tokNot})
				word = word[1:]
			}
			word = strings.TrimPrefix(word, "+")

			field := ""
			if k := strings.Index(word, ":"); k > 0 {
				field, word = word[:k], word[k+1:]
			}
			if word == "" && field != "" && i < len(rs) && rs[i] == '"' {
				text, n := readPhrase(rs[i+1:])
				toks = append(toks, token{kind: tokPhrase, field: field, text: text})
				i += n + 1
				continue
			}
			if word == "" {
				continue
			}
			toks = append(toks, token{kind: tokTerm, field: field, text: word})
		}
	}
	return toks
}

// readPhrase reads up to the closing quote and reports how many runes it
// consumed, including the quote.
func readPhrase(rs []rune) (string, int) {
	for k, r := range rs {
		if r == '"' {
			return string(rs[:k]), k + 1
		}
	}
	return string(rs), len(rs)
}

// ftsQuery translates a boolean query into an FTS5 MATCH expression over a
// table whose indexed columns are columns. Every term is quoted so that
// punctuation inside terms cannot break the FTS5 grammar. A field prefix
// naming an unknown column is searched as plain text. Dangling operators
// and unbalanced parentheses are repaired; a NOT without a preceding term
// is rejected because FTS5 has no unary negation.
func ftsQuery(q string, columns []string) (string, error) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	var parts []string
	depth := 0
	operand := false // last part ends an operand

	endsOperand := func() bool {
		if len(parts) == 0 {
			return false
		}
		switch parts[len(parts)-1] {
		case "AND", "OR", "NOT", "(":
			return false
		}
		return true
	}
	trimDangling := func() {
		for len(parts) > 0 {
			switch parts[len(parts)-1] {
			case "AND", "OR", "NOT":
				parts = parts[:len(parts)-1]
			case "(":
				parts = parts[:len(parts)-1]
				depth--
			default:
				return
			}
		}
	}

	for _, tok := range lexQuery(q) {
		switch tok.kind {
		case tokTerm, tokPhrase:
			text := strings.TrimSpace(tok.text)
			if tok.field != "" && !known[strings.ToLower(tok.field)] {
				text = strings.TrimSpace(tok.field + " " + text)
			}
			if text == "" {
				continue
			}
			if operand {
				parts = append(parts, "AND")
			}
			expr := quoteFTS(text)
			if tok.field != "" && known[strings.ToLower(tok.field)] {
				expr = strings.ToLower(tok.field) + " : " + expr
			}
			parts = append(parts, expr)
			operand = true
		case tokOpen:
			if operand {
				parts = append(parts, "AND")
			}
			parts = append(parts, "(")
			depth++
			operand = false
		case tokClose:
			if depth == 0 {
				continue
			}
			if !operand {
				trimDangling()
				operand = endsOperand()
				continue
			}
			parts = append(parts, ")")
			depth--
			operand = true
		case tokAnd, tokOr:
			if !operand {
				continue
			}
			if tok.kind == tokAnd {
				parts = append(parts, "AND")
			} else {
				parts = append(parts, "OR")
			}
			operand = false
		case tokNot:
			if !operand {
				return "", fmt.Errorf("%w: NOT needs a preceding term", ErrBadQuery)
			}
			parts = append(parts, "NOT")
			operand = false
		}
	}

	trimDangling()
	for ; depth > 0; depth-- {
		parts = append(parts, ")")
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no search terms", ErrBadQuery)
	}
	return strings.Join(parts, " "), nil
}

func quoteFTS(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Package chunker splits a paper's full text into overlapping passages for
// passage-level search.
package chunker

import "strings"

// Config controls passage sizes, counted in words.
type Config struct {
	Size     int // Target passage size.
	Overlap  int // Words repeated at the start of the next passage.
	MinWords int // Trailing fragments shorter than this join the previous passage.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:     200,
		Overlap:  40,
		MinWords: 30,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Size <= 0 {
		c.Size = d.Size
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 2
	}
	if c.MinWords <= 0 {
		c.MinWords = min(d.MinWords, c.Size)
	}
	return c
}

// Passage is one window of a paper's text.
type Passage struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Words int    `json:"words"`
}

// Split breaks text into passages of about cfg.Size words. Passages end on
// sentence boundaries where possible; a sentence longer than a passage is cut
// by words. Every word of text appears in at least one passage.
func Split(text string, cfg Config) []Passage {
	cfg = cfg.withDefaults()
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var out []Passage
	var cur []string
	fresh := 0 // words in cur not yet emitted

	emit := func() {
		out = append(out, Passage{Index: len(out), Text: strings.Join(cur, " "), Words: len(cur)})
		cur = tail(cur, cfg.Overlap)
		fresh = 0
	}

	for _, sent := range splitSentences(strings.Join(words, " ")) {
		sw := strings.Fields(sent)
		if len(cur)+len(sw) > cfg.Size && fresh > 0 {
			emit()
		}
		for len(cur)+len(sw) > cfg.Size {
			n := cfg.Size - len(cur)
			cur = append(cur, sw[:n]...)
			fresh += n
			sw = sw[n:]
			emit()
		}
		cur = append(cur, sw...)
		fresh += len(sw)
	}

	switch {
	case fresh == 0:
	case len(out) == 0 || fresh >= cfg.MinWords:
		out = append(out, Passage{Index: len(out), Text: strings.Join(cur, " "), Words: len(cur)})
	default:
		last := &out[len(out)-1]
		last.Text += " " + strings.Join(cur[len(cur)-fresh:], " ")
		last.Words += fresh
	}
	return out
}

func tail(words []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(words) < n {
		n = len(words)
	}
	return append([]string(nil), words[len(words)-n:]...)
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

package render

import (
	"strings"
	"testing"

	"github.com/dgallion1/papergest/internal/paper"
)

func sample() *paper.Article {
	return &paper.Article{
		Record: paper.Record{
			PaperID: "2401.00001",
			Tables: []paper.Item{{
				ID: "tab_0", Kind: paper.KindTable, Caption: "Accuracy | by *model*",
				Mentions: []string{"see Table 1"}, ContextParagraphs: []string{},
			}},
			Figures: []paper.Item{{
				ID: "fig_0", Kind: paper.KindFigure, Caption: "Loss curve", ImageRef: "x1.png",
				Mentions: []string{"Figure 1 shows <b>loss</b>"}, ContextParagraphs: []string{},
			}},
		},
		Title:    "Deep Learning Results",
		Authors:  []string{"Ada Lovelace", "Alan Turing"},
		Date:     "2024-01-02",
		Abstract: "We report results.",
		Source:   "arxiv",
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sample())
	for _, want := range []string{
		"# Deep Learning Results",
		"**Authors:** Ada Lovelace, Alan Turing",
		"**Published:** 2024-01-02",
		"## Tables (1)",
		`| tab\_0 | Accuracy \| by \*model\* | 1 | 0 |`,
		"## Figures (1)",
		"![fig\\_0](<https://arxiv.org/html/2401.00001/x1.png>)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected markdown to contain %q, got:\n%s", want, out)
		}
	}
}

func TestHTML(t *testing.T) {
	page, err := HTML(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(page)
	if !strings.Contains(s, "<title>Deep Learning Results</title>") {
		t.Errorf("expected page title, got %s", s)
	}
	if !strings.Contains(s, "<table>") || !strings.Contains(s, "<td>Accuracy | by *model*</td>") {
		t.Errorf("expected rendered table with escaped caption, got %s", s)
	}
	if !strings.Contains(s, `<img src="https://arxiv.org/html/2401.00001/x1.png" alt="fig_0">`) {
		t.Errorf("expected resolved image, got %s", s)
	}
	if strings.Contains(s, "<b>loss</b>") {
		t.Error("expected markup in extracted text to be escaped")
	}
}

func TestMarkdown_EmptyArticle(t *testing.T) {
	out := Markdown(&paper.Article{Record: paper.Record{PaperID: "PMC1"}, Title: "PMC1"})
	if strings.Contains(out, "Abstract") || strings.Contains(out, "Authors") {
		t.Errorf("expected no abstract or authors sections, got:\n%s", out)
	}
	if !strings.Contains(out, "## Tables (0)") || !strings.Contains(out, "## Figures (0)") {
		t.Errorf("expected empty item sections, got:\n%s", out)
	}
}

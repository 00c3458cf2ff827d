// Package render builds a human-readable summary of an indexed article.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/paper"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders the article title, metadata, abstract and its tables
// and figures with their mention and context counts.
func Markdown(a *paper.Article) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(a.Title))
	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "**Authors:** %s\n\n", escape(strings.Join(a.Authors, ", ")))
	}
	var facts []string
	if a.Date != "" {
		facts = append(facts, "**Published:** "+escape(a.Date))
	}
	if a.Source != "" {
		facts = append(facts, "**Source:** "+escape(a.Source))
	}
	facts = append(facts, "**Paper:** `"+strings.ReplaceAll(a.PaperID, "`", "")+"`")
	b.WriteString(strings.Join(facts, " · "))
	b.WriteString("\n\n")

	if a.Abstract != "" {
		fmt.Fprintf(&b, "## Abstract\n\n%s\n\n", escape(a.Abstract))
	}

	fmt.Fprintf(&b, "## Tables (%d)\n\n", len(a.Tables))
	if len(a.Tables) > 0 {
		b.WriteString("| ID | Caption | Mentions | Context |\n|---|---|---|---|\n")
		for _, t := range a.Tables {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", escape(t.ID), escape(t.Caption), len(t.Mentions), len(t.ContextParagraphs))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Figures (%d)\n\n", len(a.Figures))
	for _, f := range a.Figures {
		fmt.Fprintf(&b, "### %s\n\n", escape(f.ID))
		if url := index.ResolveImageURL(a.PaperID, f.ImageRef); url != "" {
			fmt.Fprintf(&b, "![%s](<%s>)\n\n", escape(f.ID), strings.NewReplacer("<", "%3C", ">", "%3E").Replace(url))
		}
		if f.Caption != "" {
			fmt.Fprintf(&b, "%s\n\n", escape(f.Caption))
		}
		for _, m := range f.Mentions {
			fmt.Fprintf(&b, "> %s\n\n", escape(m))
		}
	}
	return b.String()
}

// HTML renders Markdown(a) into a standalone HTML page.
func HTML(a *paper.Article) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(a)), &body); err != nil {
		return nil, fmt.Errorf("render %s: %w", a.PaperID, err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(html.EscapeString(a.Title))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
	"|", `\|`, "#", `\#`, "!", `\!`,
)

// escape neutralizes Markdown syntax in extracted text and joins lines.
func escape(s string) string {
	return mdEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

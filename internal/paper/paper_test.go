package paper

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPaperIDFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2101.00001.html", "2101.00001"},
		{"/data/html_pubmed/PMC999.xml", "PMC999"},
		{"paper.HTM", "paper"},
		{"noext", "noext"},
		{"archive.tar.gz", "archive.tar.gz"},
	}
	for _, tt := range tests {
		if got := PaperIDFromFilename(tt.in); got != tt.want {
			t.Errorf("PaperIDFromFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestKindForFilename(t *testing.T) {
	tests := []struct {
		in   string
		want FormatKind
	}{
		{"2101.00001.html", FormatArXiv},
		{"PMC999.xml", FormatPubMed},
		{"PMC123.html", FormatPubMed},
		{"anything.xml", FormatPubMed},
		{"pmc123.html", FormatArXiv},
		{"", FormatArXiv},
	}
	for _, tt := range tests {
		if got := KindForFilename(tt.in); got != tt.want {
			t.Errorf("KindForFilename(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestParseFormatKind(t *testing.T) {
	if k, ok := ParseFormatKind(" PubMed "); !ok || k != FormatPubMed {
		t.Errorf("expected pubmed, got %v (ok=%v)", k, ok)
	}
	if k, ok := ParseFormatKind("arxiv"); !ok || k != FormatArXiv {
		t.Errorf("expected arxiv, got %v (ok=%v)", k, ok)
	}
	if _, ok := ParseFormatKind("biorxiv"); ok {
		t.Error("expected unknown source to be rejected")
	}
}

func TestRecordLinkCounts(t *testing.T) {
	rec := Record{
		Tables:  []Item{{Mentions: []string{"a", "b"}, ContextParagraphs: []string{"c"}}},
		Figures: []Item{{Mentions: []string{"d"}}, {ContextParagraphs: []string{"e", "f"}}},
	}
	m, c := rec.LinkCounts()
	if m != 3 || c != 3 {
		t.Errorf("expected 3 mentions and 3 context links, got %d and %d", m, c)
	}
}

func TestNormalizeMetadata(t *testing.T) {
	m := &Metadata{
		Title:     "  Deep   learning\nfor speech ",
		Authors:   []string{" Ada Lovelace ", "", "  "},
		Published: "2023-04-05T10:00:00Z",
		Source:    "ArXiv",
	}
	NormalizeMetadata(m)
	if m.Title != "Deep learning for speech" {
		t.Errorf("expected collapsed title, got %q", m.Title)
	}
	if len(m.Authors) != 1 || m.Authors[0] != "Ada Lovelace" {
		t.Errorf("expected one trimmed author, got %v", m.Authors)
	}
	if m.Published != "2023-04-05" {
		t.Errorf("expected date 2023-04-05, got %q", m.Published)
	}
	if m.Source != "arxiv" {
		t.Errorf("expected source arxiv, got %q", m.Source)
	}
}

func TestNormalizeMetadata_UnknownSourceAndLongTitle(t *testing.T) {
	m := &Metadata{Title: strings.Repeat("x", maxTitleLen+10), Source: "scholar"}
	NormalizeMetadata(m)
	if len(m.Title) != maxTitleLen {
		t.Errorf("expected title truncated to %d, got %d", maxTitleLen, len(m.Title))
	}
	if m.Source != "" {
		t.Errorf("expected unknown source to be cleared, got %q", m.Source)
	}
}

func TestNormalizeMetadata_LongTitleKeepsRunes(t *testing.T) {
	m := &Metadata{Title: "a" + strings.Repeat("é", maxTitleLen)}
	NormalizeMetadata(m)
	if !utf8.ValidString(m.Title) {
		t.Fatalf("expected valid UTF-8 after truncation, got %q", m.Title[len(m.Title)-3:])
	}
	if len(m.Title) != maxTitleLen-1 {
		t.Errorf("expected title cut back to %d bytes, got %d", maxTitleLen-1, len(m.Title))
	}
}

func TestArXivFileID(t *testing.T) {
	tests := []struct{ id, file string }{
		{"2401.00001v2", "2401.00001v2"},
		{"hep-th/9901001v1", "hep-th_9901001v1"},
		{"math.AG/0309136", "math.AG_0309136"},
	}
	for _, tt := range tests {
		if got := ArXivFileID(tt.id); got != tt.file {
			t.Errorf("ArXivFileID(%q): expected %q, got %q", tt.id, tt.file, got)
		}
		if got := ArXivID(tt.file); got != tt.id {
			t.Errorf("ArXivID(%q): expected %q, got %q", tt.file, tt.id, got)
		}
	}
	if got := ArXivID("my_paper"); got != "my_paper" {
		t.Errorf("expected non-arXiv ids unchanged, got %q", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2021-03-09":           "2021-03-09",
		"2021-03":              "2021-03-01",
		"2021":                 "2021-01-01",
		"2020-12-31T23:59:59Z": "2020-12-31",
		"yesterday":            "",
		"":                     "",
	}
	for in, want := range tests {
		if got := NormalizeDate(in); got != want {
			t.Errorf("NormalizeDate(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNewArticle_Defaults(t *testing.T) {
	rec := Record{PaperID: "PMC999"}
	a := NewArticle(rec, nil, FormatPubMed)
	if a.Title != "PMC999" {
		t.Errorf("expected title to fall back to paper id, got %q", a.Title)
	}
	if a.Source != "pubmed" {
		t.Errorf("expected source pubmed, got %q", a.Source)
	}
	if a.Authors == nil {
		t.Error("expected non-nil authors")
	}
}

func TestNewArticle_MergesMetadata(t *testing.T) {
	rec := Record{PaperID: "2101.00001", FullText: "body"}
	meta := &Metadata{Title: "A Title", Authors: []string{"B. Author"}, Published: "2021-01-01", Source: "arxiv"}
	a := NewArticle(rec, meta, FormatPubMed)
	if a.Title != "A Title" || a.Date != "2021-01-01" || a.Source != "arxiv" {
		t.Errorf("expected metadata to win, got %+v", a)
	}
	if a.FullText != "body" {
		t.Errorf("expected record fields to be kept, got %q", a.FullText)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := SidecarFor(dir + "/2401.00001.html")
	if path != dir+"/2401.00001_meta.json" {
		t.Fatalf("unexpected sidecar path %q", path)
	}

	if m, err := ReadSidecar(path); err != nil || m != nil {
		t.Fatalf("expected nil metadata for a missing sidecar, got %+v err=%v", m, err)
	}

	in := &Metadata{ID: "2401.00001", Title: "A title", Authors: []string{"A. Author"}, Published: "2024-01-02T00:00:00Z", Source: "arxiv"}
	if err := WriteSidecar(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadSidecar(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Title != "A title" || out.Published != in.Published || len(out.Authors) != 1 {
		t.Errorf("unexpected metadata %+v", out)
	}
}

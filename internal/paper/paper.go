package paper

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FormatKind selects which document adapter handles a paper.
type FormatKind int

const (
	FormatArXiv FormatKind = iota
	FormatPubMed
)

func (k FormatKind) String() string {
	switch k {
	case FormatPubMed:
		return "pubmed"
	default:
		return "arxiv"
	}
}

// ParseFormatKind maps a source name ("arxiv", "pubmed") to a FormatKind.
func ParseFormatKind(s string) (FormatKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arxiv":
		return FormatArXiv, true
	case "pubmed", "pmc":
		return FormatPubMed, true
	}
	return FormatArXiv, false
}

// ItemKind distinguishes tables from figures.
type ItemKind string

const (
	KindTable  ItemKind = "table"
	KindFigure ItemKind = "figure"
)

// Item is an extracted table or figure.
type Item struct {
	ID                string   `json:"id"`
	Kind              ItemKind `json:"kind"`
	Caption           string   `json:"caption"`
	Body              string   `json:"body,omitempty"`
	ImageRef          string   `json:"image_reference,omitempty"`
	RawMarkup         string   `json:"raw_markup,omitempty"`
	Mentions          []string `json:"mentions"`
	ContextParagraphs []string `json:"context_paragraphs"`
}

// Paragraph is a body text span plus the targets of its inline links.
type Paragraph struct {
	Text  string
	Hrefs []string
}

// Record is the extraction result for one source document.
type Record struct {
	PaperID  string `json:"paper_id"`
	FullText string `json:"full_text"`
	Tables   []Item `json:"tables"`
	Figures  []Item `json:"figures"`
}

// LinkCounts totals the mention and context links across all items.
func (r *Record) LinkCounts() (mentions, context int) {
	for _, items := range [][]Item{r.Tables, r.Figures} {
		for _, it := range items {
			mentions += len(it.Mentions)
			context += len(it.ContextParagraphs)
		}
	}
	return mentions, context
}

// knownExtensions are stripped from filenames to form paper ids.
var knownExtensions = []string{".html", ".htm", ".xml"}

// PaperIDFromFilename derives the paper identifier from a file path.
func PaperIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// KindForFilename applies the naming convention: a .xml extension or a
// "PMC" paper id means PubMed, anything else is ArXiv.
func KindForFilename(filename string) FormatKind {
	if strings.EqualFold(filepath.Ext(filename), ".xml") {
		return FormatPubMed
	}
	if strings.HasPrefix(PaperIDFromFilename(filename), "PMC") {
		return FormatPubMed
	}
	return FormatArXiv
}

// oldStyleFileID matches a pre-2007 arXiv id such as hep-th/9901001v1 after
// ArXivFileID has replaced its slash.
var oldStyleFileID = regexp.MustCompile(`^[a-z-]+(\.[A-Z]{2})?_\d{7}(v\d+)?$`)

// ArXivFileID turns an arXiv id into the paper id used for its file name.
func ArXivFileID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// ArXivID recovers the arXiv id from a paper id made by ArXivFileID.
// Other ids are returned unchanged.
func ArXivID(paperID string) string {
	if oldStyleFileID.MatchString(paperID) {
		return strings.Replace(paperID, "_", "/", 1)
	}
	return paperID
}

// Package index stores extracted articles and answers boolean keyword
// queries over articles, tables, figures and passages. Two backends exist:
// an embedded SQLite FTS5 database and a remote Elasticsearch cluster.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/papergest/internal/chunker"
	"github.com/dgallion1/papergest/internal/paper"
)

// Target names a searchable collection.
type Target string

const (
	TargetArticles Target = "articles"
	TargetTables   Target = "tables"
	TargetFigures  Target = "figures"
	TargetPassages Target = "passages"
)

// Targets lists every collection in creation order.
var Targets = []Target{TargetArticles, TargetTables, TargetFigures, TargetPassages}

// ParseTarget maps a user-supplied name to a Target. Empty means articles.
func ParseTarget(s string) (Target, bool) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetArticles, true
	case TargetArticles, TargetTables, TargetFigures, TargetPassages:
		return t, true
	}
	return "", false
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	ErrNotFound = errors.New("paper not found")
	ErrBadQuery = errors.New("invalid query")
)

// RetryableError marks a transient backend failure worth retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Query is a boolean keyword search against one target. Terms are ANDed
// unless joined with OR; NOT excludes, field:term restricts to a field and
// quoted phrases match in sequence.
type Query struct {
	Target Target
	Text   string
	Limit  int
}

func (q Query) normalized() (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("%w: empty query", ErrBadQuery)
	}
	t, ok := ParseTarget(string(q.Target))
	if !ok {
		return q, fmt.Errorf("%w: unknown target %q", ErrBadQuery, q.Target)
	}
	q.Target = t
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

// Hit is one search result.
type Hit struct {
	Target  Target  `json:"index"`
	PaperID string  `json:"paper_id"`
	ItemID  string  `json:"item_id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Caption string  `json:"caption,omitempty"`
	URL     string  `json:"url,omitempty"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Summary is a listing row for an indexed article.
type Summary struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Date      string    `json:"date,omitempty"`
	Tables    int       `json:"tables"`
	Figures   int       `json:"figures"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Counts reports documents per target.
type Counts struct {
	Papers   int `json:"papers"`
	Tables   int `json:"tables"`
	Figures  int `json:"figures"`
	Passages int `json:"passages"`
}

// Document is an article together with its passages.
type Document struct {
	Article  *paper.Article
	Passages []chunker.Passage
}

// NewDocument splits the article's full text into passages.
func NewDocument(a *paper.Article, cfg chunker.Config) Document {
	return Document{Article: a, Passages: chunker.Split(a.FullText, cfg)}
}

// Index is implemented by every backend. IndexArticle replaces any
// previously indexed version of the same paper.
type Index interface {
	Init(ctx context.Context) error
	IndexArticle(ctx context.Context, doc Document) error
	Exists(ctx context.Context, paperID string) (bool, error)
	Get(ctx context.Context, paperID string) (*paper.Article, error)
	Delete(ctx context.Context, paperID string) error
	List(ctx context.Context, offset, limit int) ([]Summary, error)
	Search(ctx context.Context, q Query) ([]Hit, error)
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// ArXivHTMLBase is where ArXiv serves rendered papers and their assets.
const ArXivHTMLBase = "https://arxiv.org/html"

// ResolveImageURL turns a relative image reference into an absolute URL
// under the paper's ArXiv HTML directory. Absolute references are kept.
// Old-style ids stored with an underscore get their slash back.
func ResolveImageURL(paperID, ref string) string {
	if ref == "" || paperID == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return ArXivHTMLBase + "/" + paper.ArXivID(paperID) + "/" + strings.TrimPrefix(ref, "/")
}

// passageID names a passage in hits.
func passageID(i any) string {
	return fmt.Sprintf("passage_%v", i)
}

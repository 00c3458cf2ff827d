package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dgallion1/papergest/internal/paper"
)

// Searchable FTS5 columns per target. paper_id and item ids are stored
// UNINDEXED.
var ftsColumns = map[Target][]string{
	TargetArticles: {"title", "authors", "abstract", "full_text", "source"},
	TargetTables:   {"caption", "body", "mentions", "context_paragraphs", "source"},
	TargetFigures:  {"caption", "mentions", "context_paragraphs", "source"},
	TargetPassages: {"text"},
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
	paper_id   TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	source     TEXT NOT NULL,
	date       TEXT NOT NULL DEFAULT '',
	n_tables   INTEGER NOT NULL DEFAULT 0,
	n_figures  INTEGER NOT NULL DEFAULT 0,
	article    TEXT NOT NULL,
	indexed_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
	paper_id UNINDEXED, title, authors, abstract, full_text, source
);

CREATE VIRTUAL TABLE IF NOT EXISTS tables_fts USING fts5(
	paper_id UNINDEXED, item_id UNINDEXED, caption, body, mentions, context_paragraphs, source
);

CREATE VIRTUAL TABLE IF NOT EXISTS figures_fts USING fts5(
	paper_id UNINDEXED, item_id UNINDEXED, url UNINDEXED, caption, mentions, context_paragraphs, source
);

CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
	paper_id UNINDEXED, passage_index UNINDEXED, text
);
`

// sortableTime keeps fractional seconds fixed-width so indexed_at sorts as text.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the embedded FTS5 backend.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway index.
func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; also keeps a :memory: database on one connection.
	db.SetMaxOpenConns(1)
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("init schema: %w", classifySQLite(err))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) IndexArticle(ctx context.Context, doc Document) error {
	a := doc.Article
	if a == nil || a.PaperID == "" {
		return errors.New("index article: missing paper id")
	}
	blob, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", classifySQLite(err))
	}
	defer tx.Rollback()

	if err := deleteRows(ctx, tx, a.PaperID); err != nil {
		return err
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{
			`INSERT INTO articles (paper_id, title, source, date, n_tables, n_figures, article, indexed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{a.PaperID, a.Title, a.Source, a.Date, len(a.Tables), len(a.Figures), string(blob), time.Now().UTC().Format(sortableTime)},
		},
		{
			`INSERT INTO articles_fts (paper_id, title, authors, abstract, full_text, source) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{a.PaperID, a.Title, strings.Join(a.Authors, "; "), a.Abstract, a.FullText, a.Source},
		},
	}
	for _, t := range a.Tables {
		stmts = append(stmts, struct {
			query string
			args  []any
		}{
			`INSERT INTO tables_fts (paper_id, item_id, caption, body, mentions, context_paragraphs, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{a.PaperID, t.ID, t.Caption, t.Body, strings.Join(t.Mentions, "\n"), strings.Join(t.ContextParagraphs, "\n"), a.Source},
		})
	}
	for _, f := range a.Figures {
		stmts = append(stmts, struct {
			query string
			args  []any
		}{
			`INSERT INTO figures_fts (paper_id, item_id, url, caption, mentions, context_paragraphs, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{a.PaperID, f.ID, f.ImageRef, f.Caption, strings.Join(f.Mentions, "\n"), strings.Join(f.ContextParagraphs, "\n"), a.Source},
		})
	}
	for _, p := range doc.Passages {
		stmts = append(stmts, struct {
			query string
			args  []any
		}{
			`INSERT INTO passages_fts (paper_id, passage_index, text) VALUES (?, ?, ?)`,
			[]any{a.PaperID, p.Index, p.Text},
		})
	}

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("index %s: %w", a.PaperID, classifySQLite(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", a.PaperID, classifySQLite(err))
	}
	s.log.Debug("indexed article", "paper_id", a.PaperID, "tables", len(a.Tables), "figures", len(a.Figures), "passages", len(doc.Passages))
	return nil
}

func deleteRows(ctx context.Context, tx *sql.Tx, paperID string) error {
	for _, table := range []string{"articles", "articles_fts", "tables_fts", "figures_fts", "passages_fts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE paper_id = ?", paperID); err != nil {
			return fmt.Errorf("delete %s from %s: %w", paperID, table, classifySQLite(err))
		}
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, paperID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE paper_id = ?`, paperID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", paperID, classifySQLite(err))
	}
	return n > 0, nil
}

func (s *SQLite) Get(ctx context.Context, paperID string) (*paper.Article, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT article FROM articles WHERE paper_id = ?`, paperID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", paperID, classifySQLite(err))
	}
	var a paper.Article
	if err := json.Unmarshal([]byte(blob), &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", paperID, err)
	}
	return &a, nil
}

func (s *SQLite) Delete(ctx context.Context, paperID string) error {
	ok, err := s.Exists(ctx, paperID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", classifySQLite(err))
	}
	defer tx.Rollback()
	if err := deleteRows(ctx, tx, paperID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", paperID, classifySQLite(err))
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, offset, limit int) ([]Summary, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT paper_id, title, source, date, n_tables, n_figures, indexed_at
		FROM articles ORDER BY indexed_at DESC, paper_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list: %w", classifySQLite(err))
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var indexedAt string
		if err := rows.Scan(&sum.PaperID, &sum.Title, &sum.Source, &sum.Date, &sum.Tables, &sum.Figures, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.IndexedAt, _ = time.Parse(sortableTime, indexedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Search(ctx context.Context, q Query) ([]Hit, error) {
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}
	match, err := ftsQuery(q.Text, ftsColumns[q.Target])
	if err != nil {
		return nil, err
	}

	var query string
	switch q.Target {
	case TargetArticles:
		query = `
		SELECT f.paper_id, '', a.title, '', '', a.source, bm25(articles_fts),
		       snippet(articles_fts, -1, '<em>', '</em>', '…', 16)
		FROM articles_fts f JOIN articles a ON a.paper_id = f.paper_id
		WHERE articles_fts MATCH ? ORDER BY bm25(articles_fts) LIMIT ?`
	case TargetTables:
		query = `
		SELECT f.paper_id, f.item_id, a.title, f.caption, '', f.source, bm25(tables_fts),
		       snippet(tables_fts, -1, '<em>', '</em>', '…', 16)
		FROM tables_fts f JOIN articles a ON a.paper_id = f.paper_id
		WHERE tables_fts MATCH ? ORDER BY bm25(tables_fts) LIMIT ?`
	case TargetFigures:
		query = `
		SELECT f.paper_id, f.item_id, a.title, f.caption, f.url, f.source, bm25(figures_fts),
		       snippet(figures_fts, -1, '<em>', '</em>', '…', 16)
		FROM figures_fts f JOIN articles a ON a.paper_id = f.paper_id
		WHERE figures_fts MATCH ? ORDER BY bm25(figures_fts) LIMIT ?`
	case TargetPassages:
		query = `
		SELECT f.paper_id, f.passage_index, a.title, '', '', a.source, bm25(passages_fts),
		       snippet(passages_fts, -1, '<em>', '</em>', '…', 24)
		FROM passages_fts f JOIN articles a ON a.paper_id = f.paper_id
		WHERE passages_fts MATCH ? ORDER BY bm25(passages_fts) LIMIT ?`
	}

	rows, err := s.db.QueryContext(ctx, query, match, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", q.Target, match, classifySQLite(err))
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		h := Hit{Target: q.Target}
		var item sql.NullString
		var rank float64
		if err := rows.Scan(&h.PaperID, &item, &h.Title, &h.Caption, &h.URL, &h.Source, &rank, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		h.ItemID = item.String
		if q.Target == TargetPassages {
			h.ItemID = passageID(item.String)
		}
		// bm25 ranks better matches lower.
		h.Score = -rank
		if q.Target == TargetFigures {
			h.URL = ResolveImageURL(h.PaperID, h.URL)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLite) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"articles", &c.Papers},
		{"tables_fts", &c.Tables},
		{"figures_fts", &c.Figures},
		{"passages_fts", &c.Passages},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, classifySQLite(err))
		}
	}
	return c, nil
}

// classifySQLite marks lock contention as retryable and a malformed MATCH
// expression as a bad query.
func classifySQLite(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &RetryableError{Err: err}
	}
	if strings.Contains(se.Error(), "fts5: syntax error") {
		return fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	return err
}

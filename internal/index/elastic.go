package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/papergest/internal/paper"
)

// Elastic talks to an Elasticsearch cluster over its REST API. Each target
// is one index; table, figure and passage documents carry a paper_id
// keyword so a paper's items can be replaced or removed together.
type Elastic struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewElastic(baseURL, apiKey string, log *slog.Logger) *Elastic {
	return &Elastic{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

var textField = map[string]string{"type": "text"}
var keywordField = map[string]string{"type": "keyword"}

// esMappings mirrors the FTS5 schema. Article documents also carry the full
// record under "record", stored but not indexed.
var esMappings = map[Target]map[string]any{
	TargetArticles: {
		"title":      textField,
		"authors":    textField,
		"date":       map[string]string{"type": "date"},
		"abstract":   textField,
		"full_text":  textField,
		"source":     keywordField,
		"n_tables":   map[string]string{"type": "integer"},
		"n_figures":  map[string]string{"type": "integer"},
		"indexed_at": map[string]string{"type": "date"},
		"record":     map[string]any{"type": "object", "enabled": false},
	},
	TargetTables: {
		"paper_id": keywordField, "item_id": keywordField, "caption": textField, "body": textField,
		"mentions": textField, "context_paragraphs": textField, "source": keywordField,
	},
	TargetFigures: {
		"paper_id": keywordField, "item_id": keywordField, "url": keywordField, "caption": textField,
		"mentions": textField, "context_paragraphs": textField, "source": keywordField,
	},
	TargetPassages: {
		"paper_id": keywordField, "passage_index": map[string]string{"type": "integer"}, "text": textField,
	},
}

type esArticle struct {
	PaperID   string         `json:"paper_id"`
	Title     string         `json:"title"`
	Authors   []string       `json:"authors"`
	Date      string         `json:"date,omitempty"`
	Abstract  string         `json:"abstract"`
	FullText  string         `json:"full_text"`
	Source    string         `json:"source"`
	NTables   int            `json:"n_tables"`
	NFigures  int            `json:"n_figures"`
	IndexedAt time.Time      `json:"indexed_at"`
	Record    *paper.Article `json:"record,omitempty"`
}

type esItem struct {
	PaperID           string   `json:"paper_id"`
	ItemID            string   `json:"item_id"`
	URL               string   `json:"url,omitempty"`
	Caption           string   `json:"caption"`
	Body              string   `json:"body,omitempty"`
	Mentions          []string `json:"mentions"`
	ContextParagraphs []string `json:"context_paragraphs"`
	Source            string   `json:"source"`
}

type esPassage struct {
	PaperID      string `json:"paper_id"`
	PassageIndex int    `json:"passage_index"`
	Text         string `json:"text"`
}

// do sends a request and maps transport failures, 429 and 5xx to
// RetryableError. Any other non-2xx status is returned as an error unless
// listed in ok.
func (e *Elastic) do(ctx context.Context, method, path string, body io.Reader, contentType string, ok ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RetryableError{Err: err}
	case resp.StatusCode == http.StatusBadRequest && strings.HasSuffix(path, "/_search"):
		return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	return nil, err
}

func (e *Elastic) doJSON(ctx context.Context, method, path string, in, out any, ok ...int) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := e.do(ctx, method, path, body, "application/json", ok...)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Init creates any missing index with its mapping.
func (e *Elastic) Init(ctx context.Context) error {
	for _, t := range Targets {
		status, err := e.doJSON(ctx, http.MethodHead, "/"+string(t), nil, nil, http.StatusNotFound)
		if err != nil {
			return fmt.Errorf("check index %s: %w", t, err)
		}
		if status != http.StatusNotFound {
			continue
		}
		body := map[string]any{"mappings": map[string]any{"properties": esMappings[t]}}
		if _, err := e.doJSON(ctx, http.MethodPut, "/"+string(t), body, nil); err != nil {
			return fmt.Errorf("create index %s: %w", t, err)
		}
		e.log.Info("created index", "index", t)
	}
	return nil
}

func (e *Elastic) IndexArticle(ctx context.Context, doc Document) error {
	a := doc.Article
	if a == nil || a.PaperID == "" {
		return errors.New("index article: missing paper id")
	}
	if err := e.deleteItems(ctx, a.PaperID); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	add := func(t Target, id string, src any) error {
		if err := enc.Encode(map[string]any{"index": map[string]string{"_index": string(t), "_id": id}}); err != nil {
			return err
		}
		return enc.Encode(src)
	}

	err := add(TargetArticles, a.PaperID, esArticle{
		PaperID: a.PaperID, Title: a.Title, Authors: a.Authors, Date: a.Date, Abstract: a.Abstract,
		FullText: a.FullText, Source: a.Source, NTables: len(a.Tables), NFigures: len(a.Figures),
		IndexedAt: time.Now().UTC(), Record: a,
	})
	for _, t := range a.Tables {
		if err != nil {
			break
		}
		err = add(TargetTables, a.PaperID+"/"+t.ID, esItem{
			PaperID: a.PaperID, ItemID: t.ID, Caption: t.Caption, Body: t.Body,
			Mentions: t.Mentions, ContextParagraphs: t.ContextParagraphs, Source: a.Source,
		})
	}
	for _, f := range a.Figures {
		if err != nil {
			break
		}
		err = add(TargetFigures, a.PaperID+"/"+f.ID, esItem{
			PaperID: a.PaperID, ItemID: f.ID, URL: f.ImageRef, Caption: f.Caption,
			Mentions: f.Mentions, ContextParagraphs: f.ContextParagraphs, Source: a.Source,
		})
	}
	for _, p := range doc.Passages {
		if err != nil {
			break
		}
		err = add(TargetPassages, fmt.Sprintf("%s/%d", a.PaperID, p.Index), esPassage{
			PaperID: a.PaperID, PassageIndex: p.Index, Text: p.Text,
		})
	}
	if err != nil {
		return fmt.Errorf("encode bulk body: %w", err)
	}

	resp, err := e.do(ctx, http.MethodPost, "/_bulk?refresh=wait_for", &buf, "application/x-ndjson")
	if err != nil {
		return fmt.Errorf("bulk index %s: %w", a.PaperID, err)
	}
	defer resp.Body.Close()

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if result.Errors {
		for _, item := range result.Items {
			for _, r := range item {
				if r.Error == nil {
					continue
				}
				err := fmt.Errorf("bulk index %s: %s: %s", a.PaperID, r.Error.Type, r.Error.Reason)
				if r.Status == http.StatusTooManyRequests || r.Status >= 500 {
					return &RetryableError{Err: err}
				}
				return err
			}
		}
		return fmt.Errorf("bulk index %s: errors reported", a.PaperID)
	}
	e.log.Debug("indexed article", "paper_id", a.PaperID, "tables", len(a.Tables), "figures", len(a.Figures), "passages", len(doc.Passages))
	return nil
}

// deleteItems removes a paper's tables, figures and passages.
func (e *Elastic) deleteItems(ctx context.Context, paperID string) error {
	body := map[string]any{"query": map[string]any{"term": map[string]string{"paper_id": paperID}}}
	path := "/tables,figures,passages/_delete_by_query?refresh=true&conflicts=proceed&ignore_unavailable=true"
	if _, err := e.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("delete items of %s: %w", paperID, err)
	}
	return nil
}

func (e *Elastic) docPath(paperID string) string {
	return "/articles/_doc/" + url.PathEscape(paperID)
}

func (e *Elastic) Exists(ctx context.Context, paperID string) (bool, error) {
	status, err := e.doJSON(ctx, http.MethodHead, e.docPath(paperID), nil, nil, http.StatusNotFound)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", paperID, err)
	}
	return status == http.StatusOK, nil
}

func (e *Elastic) Get(ctx context.Context, paperID string) (*paper.Article, error) {
	var doc struct {
		Found  bool      `json:"found"`
		Source esArticle `json:"_source"`
	}
	status, err := e.doJSON(ctx, http.MethodGet, e.docPath(paperID), nil, &doc, http.StatusNotFound)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", paperID, err)
	}
	if status == http.StatusNotFound || !doc.Found || doc.Source.Record == nil {
		return nil, ErrNotFound
	}
	return doc.Source.Record, nil
}

func (e *Elastic) Delete(ctx context.Context, paperID string) error {
	status, err := e.doJSON(ctx, http.MethodDelete, e.docPath(paperID)+"?refresh=true", nil, nil, http.StatusNotFound)
	if err != nil {
		return fmt.Errorf("delete %s: %w", paperID, err)
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return e.deleteItems(ctx, paperID)
}

type esHit struct {
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

func (e *Elastic) List(ctx context.Context, offset, limit int) ([]Summary, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	body := map[string]any{
		"from":    max(offset, 0),
		"size":    limit,
		"query":   map[string]any{"match_all": map[string]any{}},
		"sort":    []any{map[string]string{"indexed_at": "desc"}},
		"_source": []string{"paper_id", "title", "source", "date", "n_tables", "n_figures", "indexed_at"},
	}
	var res esSearchResponse
	if _, err := e.doJSON(ctx, http.MethodPost, "/articles/_search", body, &res); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	out := make([]Summary, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		var a esArticle
		if err := json.Unmarshal(h.Source, &a); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", h.ID, err)
		}
		out = append(out, Summary{
			PaperID: h.ID, Title: a.Title, Source: a.Source, Date: a.Date,
			Tables: a.NTables, Figures: a.NFigures, IndexedAt: a.IndexedAt,
		})
	}
	return out, nil
}

// Search runs a query_string query with AND as the default operator, so
// the boolean syntax is handled by Elasticsearch itself.
func (e *Elastic) Search(ctx context.Context, q Query) ([]Hit, error) {
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"size": q.Limit,
		"query": map[string]any{
			"query_string": map[string]any{
				"query":            q.Text,
				"fields":           ftsColumns[q.Target],
				"default_operator": "AND",
			},
		},
		"_source":   map[string]any{"excludes": []string{"record", "full_text"}},
		"highlight": map[string]any{"fields": map[string]any{"*": map[string]any{}}},
	}
	var res esSearchResponse
	if _, err := e.doJSON(ctx, http.MethodPost, "/"+string(q.Target)+"/_search", body, &res); err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Target, err)
	}

	hits := make([]Hit, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		hit := Hit{Target: q.Target, Score: h.Score, Snippet: firstHighlight(h.Highlight)}
		switch q.Target {
		case TargetArticles:
			var a esArticle
			if err := json.Unmarshal(h.Source, &a); err != nil {
				return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
			}
			hit.PaperID, hit.Title, hit.Source = h.ID, a.Title, a.Source
		case TargetPassages:
			var p esPassage
			if err := json.Unmarshal(h.Source, &p); err != nil {
				return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
			}
			hit.PaperID, hit.ItemID = p.PaperID, passageID(p.PassageIndex)
			if hit.Snippet == "" {
				hit.Snippet = p.Text
			}
		default:
			var it esItem
			if err := json.Unmarshal(h.Source, &it); err != nil {
				return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
			}
			hit.PaperID, hit.ItemID, hit.Caption, hit.Source = it.PaperID, it.ItemID, it.Caption, it.Source
			hit.URL = ResolveImageURL(it.PaperID, it.URL)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func firstHighlight(h map[string][]string) string {
	// Prefer the most descriptive fields when several matched.
	for _, f := range []string{"caption", "title", "text", "abstract", "body", "context_paragraphs", "mentions", "full_text"} {
		if frags := h[f]; len(frags) > 0 {
			return frags[0]
		}
	}
	for _, frags := range h {
		if len(frags) > 0 {
			return frags[0]
		}
	}
	return ""
}

func (e *Elastic) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		target Target
		dst    *int
	}{
		{TargetArticles, &c.Papers},
		{TargetTables, &c.Tables},
		{TargetFigures, &c.Figures},
		{TargetPassages, &c.Passages},
	} {
		var res struct {
			Count int `json:"count"`
		}
		if _, err := e.doJSON(ctx, http.MethodGet, "/"+string(q.target)+"/_count", nil, &res); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.target, err)
		}
		*q.dst = res.Count
	}
	return c, nil
}

// Close releases idle connections.
func (e *Elastic) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

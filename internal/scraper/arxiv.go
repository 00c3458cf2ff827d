package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dgallion1/papergest/internal/paper"
)

// ArXiv searches the arXiv API and downloads the HTML rendering of each hit.
type ArXiv struct {
	cfg Config
	log *slog.Logger
}

func NewArXiv(cfg Config, log *slog.Logger) *ArXiv {
	return &ArXiv{cfg: cfg.withDefaults(), log: logger(log)}
}

// searchURL builds an API query sorted by relevance. A query without a
// field prefix searches all fields.
func (s *ArXiv) searchURL(query string, max int) string {
	if !strings.Contains(query, ":") {
		query = "all:" + query
	}
	v := url.Values{}
	v.Set("search_query", query)
	v.Set("start", "0")
	v.Set("max_results", strconv.Itoa(max))
	v.Set("sortBy", "relevance")
	return s.cfg.ArXivAPI + "?" + v.Encode()
}

// Search returns metadata for up to max papers matching query.
func (s *ArXiv) Search(ctx context.Context, query string, max int) ([]paper.Metadata, error) {
	resp, err := get(ctx, s.cfg.HTTPClient, s.searchURL(query, max))
	if err != nil {
		return nil, fmt.Errorf("arxiv search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv search: status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	out := make([]paper.Metadata, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := shortID(item)
		if id == "" {
			continue
		}
		// Feed titles and summaries are hard-wrapped.
		m := paper.Metadata{
			ID:       id,
			Title:    strings.Join(strings.Fields(item.Title), " "),
			Abstract: strings.Join(strings.Fields(item.Description), " "),
			HTMLURL:  s.cfg.ArXivHTML + "/" + id,
			PDFURL:   pdfLink(item),
			Source:   "arxiv",
		}
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				m.Authors = append(m.Authors, a.Name)
			}
		}
		if item.PublishedParsed != nil {
			m.Published = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		out = append(out, m)
	}
	return out, nil
}

// shortID turns an entry id such as http://arxiv.org/abs/2401.00001v2 into
// 2401.00001v2.
func shortID(item *gofeed.Item) string {
	for _, ref := range []string{item.GUID, item.Link} {
		if i := strings.Index(ref, "/abs/"); i >= 0 {
			return ref[i+len("/abs/"):]
		}
	}
	return ""
}

func pdfLink(item *gofeed.Item) string {
	for _, l := range item.Links {
		if strings.Contains(l, "/pdf/") {
			return l
		}
	}
	return ""
}

// Scrape searches and downloads every hit with an HTML rendering. Papers
// whose HTML redirects to the abstract page, or that do not answer 200 with
// text/html, are skipped. Existing files are left alone.
func (s *ArXiv) Scrape(ctx context.Context, query string, max int) (Result, error) {
	metas, err := s.Search(ctx, query, max)
	if err != nil {
		return Result{}, err
	}
	res := Result{Found: len(metas), Files: []string{}}

	for i := range metas {
		m := &metas[i]
		log := s.log.With("paper_id", m.ID)
		filename := paper.ArXivFileID(m.ID) + ".html"
		if exists(filepath.Join(s.cfg.DataDir, filename)) {
			log.Debug("already downloaded")
			res.Skipped++
			continue
		}

		data, ok, err := s.fetchHTML(ctx, m.HTMLURL)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("download failed", "error", err)
			res.Failed++
			continue
		}
		if !ok {
			log.Info("no html rendering, skipping")
			res.Skipped++
			continue
		}

		path, err := save(s.cfg.DataDir, filename, data, m)
		if err != nil {
			return res, err
		}
		log.Info("downloaded", "file", path)
		res.Downloaded++
		res.Files = append(res.Files, path)

		if err := pause(ctx, s.cfg.Delay); err != nil {
			return res, err
		}
	}
	return res, nil
}

// fetchHTML reports ok=false when the paper has no HTML rendering.
func (s *ArXiv) fetchHTML(ctx context.Context, htmlURL string) ([]byte, bool, error) {
	resp, err := get(ctx, s.cfg.HTTPClient, htmlURL)
	if err != nil {
		return nil, false, err
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", htmlURL, err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, false, nil
	}
	if strings.Contains(resp.Request.URL.Path, "/abs/") {
		return nil, false, nil
	}
	return data, true, nil
}

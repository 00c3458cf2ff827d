package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/papergest/internal/parser"
)

// PubMed searches PubMed Central for open-access articles and downloads
// their JATS XML through the E-utilities API.
type PubMed struct {
	cfg Config
	log *slog.Logger
}

func NewPubMed(cfg Config, log *slog.Logger) *PubMed {
	return &PubMed{cfg: cfg.withDefaults(), log: logger(log)}
}

func (s *PubMed) params(v url.Values) string {
	v.Set("db", "pmc")
	v.Set("tool", "papergest")
	if s.cfg.Email != "" {
		v.Set("email", s.cfg.Email)
	}
	return v.Encode()
}

// Search returns PMC ids ("PMC" + number) for open-access articles
// matching query, most relevant first.
func (s *PubMed) Search(ctx context.Context, query string, max int) ([]string, error) {
	v := url.Values{}
	v.Set("term", query+" AND open access[filter]")
	v.Set("retmax", strconv.Itoa(max))
	v.Set("sort", "relevance")
	v.Set("retmode", "json")

	resp, err := get(ctx, s.cfg.HTTPClient, s.cfg.EUtils+"/esearch.fcgi?"+s.params(v))
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esearch: status %d", resp.StatusCode)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode esearch: %w", err)
	}

	ids := make([]string, 0, len(result.ESearchResult.IDList))
	for _, id := range result.ESearchResult.IDList {
		if !strings.HasPrefix(id, "PMC") {
			id = "PMC" + id
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Fetch downloads the full JATS XML of one article.
func (s *PubMed) Fetch(ctx context.Context, pmcID string) ([]byte, error) {
	v := url.Values{}
	v.Set("id", pmcID)
	v.Set("rettype", "full")
	v.Set("retmode", "xml")

	resp, err := get(ctx, s.cfg.HTTPClient, s.cfg.EUtils+"/efetch.fcgi?"+s.params(v))
	if err != nil {
		return nil, fmt.Errorf("efetch %s: %w", pmcID, err)
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pmcID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch %s: status %d", pmcID, resp.StatusCode)
	}
	return data, nil
}

// Scrape searches and downloads each article with a metadata sidecar read
// from the article itself. Articles already on disk are skipped.
func (s *PubMed) Scrape(ctx context.Context, query string, max int) (Result, error) {
	ids, err := s.Search(ctx, query, max)
	if err != nil {
		return Result{}, err
	}
	res := Result{Found: len(ids), Files: []string{}}

	for _, id := range ids {
		log := s.log.With("paper_id", id)
		filename := id + ".xml"
		if exists(filepath.Join(s.cfg.DataDir, filename)) {
			log.Debug("already downloaded")
			res.Skipped++
			continue
		}

		data, err := s.Fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("download failed", "error", err)
			res.Failed++
			continue
		}

		doc, err := (&parser.XMLParser{}).Parse(bytes.NewReader(data), filename)
		if err != nil {
			log.Warn("unparseable article", "error", err)
			res.Failed++
			continue
		}
		meta := ParseJATSMetadata(doc, id)

		path, err := save(s.cfg.DataDir, filename, data, &meta)
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

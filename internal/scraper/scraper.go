// Package scraper downloads papers and their metadata into a data
// directory: ArXiv HTML renderings and PubMed Central JATS XML, each with a
// "<id>_meta.json" sidecar.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/papergest/internal/paper"
)

const (
	DefaultArXivAPI  = "https://export.arxiv.org/api/query"
	DefaultArXivHTML = "https://arxiv.org/html"
	DefaultEUtils    = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	userAgent   = "papergest/1.0"
	maxDocBytes = 64 << 20
)

// Config controls where and how fast papers are fetched.
type Config struct {
	DataDir string
	Delay   time.Duration // pause after each download
	Email   string        // sent to E-utilities as the contact address

	ArXivAPI  string
	ArXivHTML string
	EUtils    string

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.ArXivAPI == "" {
		c.ArXivAPI = DefaultArXivAPI
	}
	if c.ArXivHTML == "" {
		c.ArXivHTML = DefaultArXivHTML
	}
	if c.EUtils == "" {
		c.EUtils = DefaultEUtils
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Result summarizes one scrape run.
type Result struct {
	Found      int      `json:"found"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Files      []string `json:"files"`
}

func get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return client.Do(req)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
}

// save writes the document and its sidecar.
func save(dir, filename string, data []byte, meta *paper.Metadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := paper.WriteSidecar(paper.SidecarFor(path), meta); err != nil {
		return "", err
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// pause waits d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func logger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

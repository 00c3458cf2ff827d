package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "INDEX_BACKEND", "WORKER_COUNT", "JOB_TTL", "PASSAGE_SIZE", "SCRAPE_DELAY"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" || cfg.IndexBackend != "sqlite" || cfg.WorkerCount != 4 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.JobTTL != time.Hour || cfg.PassageSize != 200 || cfg.ScrapeDelay != time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "elasticsearch")
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("EXTRACT_TIMEOUT", "30s")
	t.Setenv("PASSAGE_OVERLAP", "0")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")

	cfg := Load()
	if cfg.IndexBackend != "elasticsearch" {
		t.Errorf("expected elasticsearch backend, got %q", cfg.IndexBackend)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected invalid worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.ExtractTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.ExtractTimeout)
	}
	if cfg.PassageOverlap != 0 {
		t.Errorf("expected zero overlap to be allowed, got %d", cfg.PassageOverlap)
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("expected unparseable size to fall back, got %d", cfg.MaxUploadBytes)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{IndexBackend: "sqlite", SQLitePath: "x.db"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing api key to fail")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.IndexBackend = "mongo"
	if err := cfg.ValidateIndex(); err == nil {
		t.Error("expected unknown backend to fail")
	}
}

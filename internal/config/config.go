package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Search index
	IndexBackend  string // "sqlite" or "elasticsearch"
	SQLitePath    string
	ElasticURL    string
	ElasticAPIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Per-document processing budget
	ExtractTimeout time.Duration

	// Passage splitting, in words
	PassageSize    int
	PassageOverlap int

	// Job state
	JobTTL time.Duration

	// Scraping
	DataDir     string
	ScrapeDelay time.Duration
	EntrezEmail string
}

// Load reads the environment, after loading a .env file from the working
// directory when one exists. Variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PAPERGEST_API_KEY"),

		IndexBackend:  envOr("INDEX_BACKEND", "sqlite"),
		SQLitePath:    envOr("SQLITE_PATH", "papergest.db"),
		ElasticURL:    envOr("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticAPIKey: os.Getenv("ELASTICSEARCH_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ExtractTimeout: envDuration("EXTRACT_TIMEOUT", 2*time.Minute),

		PassageSize:    envInt("PASSAGE_SIZE", 200),
		PassageOverlap: envInt("PASSAGE_OVERLAP", 40),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		DataDir:     envOr("DATA_DIR", "data"),
		ScrapeDelay: envDuration("SCRAPE_DELAY", 1*time.Second),
		EntrezEmail: os.Getenv("ENTREZ_EMAIL"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 2 * time.Minute
	}
	if cfg.PassageSize <= 0 {
		cfg.PassageSize = 200
	}
	if cfg.PassageOverlap < 0 {
		cfg.PassageOverlap = 40
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.ScrapeDelay < 0 {
		cfg.ScrapeDelay = 0
	}

	return cfg
}

// Validate checks what the HTTP service needs. The CLI only needs a
// usable index backend and calls ValidateIndex.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PAPERGEST_API_KEY is required")
	}
	return c.ValidateIndex()
}

func (c Config) ValidateIndex() error {
	switch c.IndexBackend {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case "elasticsearch":
		if c.ElasticURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("INDEX_BACKEND must be sqlite or elasticsearch, got %q", c.IndexBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

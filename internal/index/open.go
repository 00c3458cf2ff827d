package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/papergest/internal/config"
)

// Open connects to the backend named in cfg and makes sure its tables or
// indices exist.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (Index, error) {
	var idx Index
	switch cfg.IndexBackend {
	case "elasticsearch":
		idx = NewElastic(cfg.ElasticURL, cfg.ElasticAPIKey, log)
	case "sqlite", "":
		s, err := OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		idx = s
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
	if err := idx.Init(ctx); err != nil {
		idx.Close()
		return nil, fmt.Errorf("init %s index: %w", cfg.IndexBackend, err)
	}
	log.Info("index ready", "backend", cfg.IndexBackend)
	return idx, nil
}

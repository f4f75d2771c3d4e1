package vectorstore

import (
	"context"
	"fmt"

	"form-rag/internal/config"
)

// New builds the store selected by the config, loading any existing
// durable state at the configured location.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "chromem":
		return NewChromem(cfg.Path, cfg.Collection, false)
	case "postgres":
		return NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

package index

import (
	"fmt"
	"os"
	"path/filepath"

	"findup/internal/config"
	"findup/internal/findup"
)

// NewIndexFromConfig creates an Index implementation based on the
// database config type.
func NewIndexFromConfig(cfg config.DatabaseConfig, idgen findup.IDGenerator) (findup.Index, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite index")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating data dir: %w", findup.ErrStoreUnavailable, err)
		}
		return OpenSQLite(filepath.Join(cfg.DataDir, "index.db"), idgen)
	case "memory":
		return NewMemoryIndex(idgen), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}

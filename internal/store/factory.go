package store

import (
	"fmt"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

// New creates a RecordStore from configuration.
func New(cfg model.StoreConfig) (RecordStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: sqlite, memory)", cfg.Backend)
	}
}

// Package kv provides the small key-value persistence used for chat history and
// document sessions. Values are opaque byte slices (JSON in practice).
package kv

import (
	"context"
	"fmt"

	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/logger"
)

// Store is a namespaced key-value store. Put overwrites.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open returns the backend selected by cfg.Driver. A sqlite file that cannot be
// opened degrades to an in-memory store; postgres failures are returned.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite, "":
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.L.Warn("sqlite open failed; using in-memory store", "path", cfg.SQLitePath, "error", err)
			return NewMemoryStore(), nil
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

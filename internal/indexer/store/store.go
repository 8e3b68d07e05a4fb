// Package store persists and restores the inverted index. Every backend writes
// the same Token → [Symbol] shape; Load never builds an index itself, it only
// reports ErrIndexNotFound or ErrIndexMalformed so the caller can decide.
package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/sqldb"
)

// Store is the durable home of a built index.
type Store interface {
	// Load restores the last saved index. It returns an error wrapping
	// ErrIndexNotFound when nothing was saved and ErrIndexMalformed when the
	// artifact cannot be decoded.
	Load(ctx context.Context) (*index.InvertedIndex, error)
	// Save replaces the persisted index as a whole. Failures wrap
	// ErrPersistence.
	Save(ctx context.Context, ix *index.InvertedIndex) error
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "bolt":
		return OpenBolt(cfg.Path)
	case "badger":
		return OpenBadger(cfg.Path, false)
	case "sqlite":
		client, err := sqldb.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, client)
	case "postgres":
		client, err := sqldb.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, client)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

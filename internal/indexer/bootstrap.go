package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/resilience"
)

// Open opens the configured store and loads the corpus. A corpus that fails
// to load is logged and left recorded on the engine rather than returned, so
// callers can still serve and report it; only store failures are fatal.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	var st store.Store
	err := resilience.WithTimeout(ctx, cfg.Store.LoadTimeout, "open-store", func(ctx context.Context) error {
		var err error
		st, err = store.Open(ctx, cfg.Store)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s index store: %w", cfg.Store.Driver, err)
	}
	slog.Info("index store opened", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	e := NewEngine(st, m)
	_ = e.LoadCorpus(cfg.Corpus.Path)
	return e, nil
}

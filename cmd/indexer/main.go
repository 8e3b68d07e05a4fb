// Command indexer builds the inverted index from the corpus and saves it to
// the configured store, then exits.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-corpus data/emoji-en-US.json]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "override corpus.path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build", "corpus", cfg.Corpus.Path, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := indexer.Open(ctx, cfg, metrics.NewWithRegistry(prometheus.NewRegistry()))
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := engine.RebuildIndex(ctx); err != nil {
		slog.Error("index build failed", "error", err)
		engine.Close()
		os.Exit(1)
	}
	st := engine.Stats()
	slog.Info("index build complete",
		"symbols", st.Symbols,
		"terms", st.Terms,
		"postings", st.Postings,
	)
}

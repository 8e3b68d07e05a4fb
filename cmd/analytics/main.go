// Command analytics consumes search events from Kafka, aggregates them in
// memory and serves the running stats over HTTP. Snapshots are written to
// the SQL store every minute when store.driver is sqlite or postgres.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/sqldb"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port for the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.SearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	var lister analytics.SnapshotLister
	if db, err := openSnapshotDB(ctx, cfg.Store); err != nil {
		slog.Warn("snapshot persistence disabled", "error", err)
	} else if db != nil {
		defer db.Close()
		snapshots, err := aggregator.NewStore(ctx, db)
		if err != nil {
			slog.Warn("snapshot persistence disabled", "error", err)
		} else {
			snapshots.StartPeriodicSave(ctx, agg, time.Minute)
			lister = snapshots
		}
	}

	checker := health.NewChecker()
	checker.Register("aggregator", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d searches aggregated", agg.Stats().TotalSearches),
		}
	})

	h := analytics.NewHandler(agg, lister)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

// openSnapshotDB reuses the index store's database for snapshots. It returns
// nil, nil for drivers without one.
func openSnapshotDB(ctx context.Context, cfg config.StoreConfig) (*sqldb.Client, error) {
	switch cfg.Driver {
	case "postgres":
		return sqldb.OpenPostgres(ctx, cfg)
	case "sqlite":
		return sqldb.OpenSQLite(ctx, filepath.Join(filepath.Dir(cfg.Path), "analytics.db"))
	default:
		return nil, nil
	}
}

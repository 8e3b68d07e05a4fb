// Command searcher serves symbol search over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/watcher"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine, err := indexer.Open(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	err = resilience.WithTimeout(ctx, cfg.Store.LoadTimeout, "ensure-index", engine.EnsureIndex)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrPersistence):
		slog.Warn("index built but not persisted", "error", err)
	default:
		slog.Error("index not ready at startup, will retry on first search", "error", err)
	}

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, time.Second)
		collector.Start(ctx)
		defer collector.Close()
		engine.OnIndexChange(func(ix *index.InvertedIndex, source string) {
			collector.TrackIndex(analytics.IndexEvent{
				Type:      analytics.EventIndexBuild,
				Source:    source,
				Terms:     ix.Len(),
				Postings:  ix.Postings(),
				Symbols:   engine.Corpus().Len(),
				Timestamp: time.Now().UTC(),
			})
		})
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Corpus.Path, engine, cfg.Watch.Debounce, func(ctx context.Context) {
			if queryCache != nil {
				if err := queryCache.Invalidate(ctx); err != nil {
					slog.Warn("cache invalidation after corpus reload failed", "error", err)
				}
			}
		})
		if err != nil {
			slog.Warn("corpus watcher disabled", "error", err)
		} else {
			go w.Run(ctx)
		}
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		if err := engine.CorpusErr(); err != nil {
			return health.Down(err)
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d symbols", engine.Corpus().Len())}
	})
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		st := engine.Stats()
		if st.State != indexer.StateLoaded.String() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index not loaded yet"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d terms from %s", st.Terms, st.Source)}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.Down(err)
			}
			return health.Up()
		})
	}

	h := handler.New(engine, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
		go limiter.Cleanup(ctx, 5*time.Minute, 10*time.Minute)
		slog.Info("rate limiting enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond, "burst", cfg.Server.RateLimit.Burst)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.CORS(cfg.Server.CORS),
			middleware.RateLimit(cfg.Server.RateLimit, limiter),
			middleware.Timeout(cfg.Search.Timeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-drained
	slog.Info("search service stopped")
}

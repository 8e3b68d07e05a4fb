package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/tracing"
)

// Engine is the part of indexer.Engine the HTTP API needs.
type Engine interface {
	Search(ctx context.Context, query string) (executor.Match, error)
	Order(set index.Set) []string
	Keywords(symbol string) ([]string, bool)
	Chunk(start, count int) []string
	RebuildIndex(ctx context.Context) error
	Stats() indexer.Stats
}

type SearchResponse struct {
	Query     string   `json:"query"`
	Phase     string   `json:"phase"`
	TotalHits int      `json:"total_hits"`
	Results   []string `json:"results"`
	CacheHit  bool     `json:"cache_hit"`
}

type Handler struct {
	engine       Engine
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the search API. queryCache, collector and m may each be nil.
func New(engine Engine, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/symbols", h.Symbols)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/keywords", h.Keywords)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	defer span.End(ctx)
	log := logger.FromContext(ctx)

	if !r.URL.Query().Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := r.URL.Query().Get("q")
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	span.SetAttr("query", query)

	tokens := tokenizer.Query(query)
	if len(tokens) == 0 {
		h.writeJSON(w, http.StatusOK, SearchResponse{Query: query, Phase: string(executor.PhaseNone), Results: []string{}})
		return
	}

	compute := func() (*cache.Result, error) {
		_, execSpan := tracing.Start(ctx, "execute")
		defer execSpan.End(ctx)
		m, err := h.engine.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		ordered := h.engine.Order(m.Symbols)
		execSpan.SetAttr("phase", string(m.Phase))
		execSpan.SetAttr("hits", len(ordered))
		return &cache.Result{
			Phase:     string(m.Phase),
			TotalHits: len(ordered),
			Symbols:   truncate(ordered, limit),
		}, nil
	}

	var (
		result   *cache.Result
		cacheHit bool
		err      error
	)
	cacheStatus := "disabled"
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed: "+err.Error())
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"phase", result.Phase,
		"total_hits", result.TotalHits,
		"returned", len(result.Symbols),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		eventType := analytics.EventSearch
		if result.TotalHits == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.TrackSearch(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Tokens:    tokens,
			Phase:     result.Phase,
			TotalHits: result.TotalHits,
			Returned:  len(result.Symbols),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r),
		})
	}

	symbols := result.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Phase:     result.Phase,
		TotalHits: result.TotalHits,
		Results:   symbols,
		CacheHit:  cacheHit,
	})
}

// Symbols pages through the corpus in display order.
func (h *Handler) Symbols(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"offset":  offset,
		"limit":   limit,
		"total":   h.engine.Stats().Symbols,
		"symbols": h.engine.Chunk(offset, limit),
	})
}

func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	keywords, ok := h.engine.Keywords(symbol)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"keywords": keywords,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// Rebuild rebuilds the index from the current corpus and drops cached
// results. A persistence failure still installs the new index, so it is
// reported with a 200 and persisted=false.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	err := h.engine.RebuildIndex(ctx)
	persisted := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrPersistence) {
		log.Error("index rebuild failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			log.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	resp := map[string]any{
		"index":     h.engine.Stats(),
		"persisted": persisted,
	}
	if !persisted {
		resp["warning"] = err.Error()
	}
	log.Info("index rebuilt via api", "persisted", persisted)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker": map[string]any{
			"state":  h.cache.BreakerState().String(),
			"counts": h.cache.BreakerCounts(),
		},
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseLimit reads ?limit=, defaulting to defaultLimit and capping at
// maxResults. It writes the 400 itself.
func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := h.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, false
		}
		limit = n
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, true
}

func truncate(symbols []string, limit int) []string {
	if len(symbols) > limit {
		return symbols[:limit]
	}
	return symbols
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

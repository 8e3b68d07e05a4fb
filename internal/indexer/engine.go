// Package indexer coordinates the corpus, the inverted index and its store.
// Engine owns the NotLoaded → Loaded lifecycle: the index is restored from the
// store, or built from the corpus and saved when the store has none, the first
// time it is needed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/metrics"
)

// State is the index lifecycle state.
type State int32

const (
	StateNotLoaded State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "not_loaded"
}

// Stats describes the installed corpus and index.
type Stats struct {
	State       string    `json:"state"`
	Symbols     int       `json:"symbols"`
	Terms       int       `json:"terms"`
	Postings    int       `json:"postings"`
	Source      string    `json:"source,omitempty"`
	InstalledAt time.Time `json:"installed_at,omitempty"`
	CorpusError string    `json:"corpus_error,omitempty"`
}

// Listener is called after a new index is installed, with where it came
// from. It runs while the engine's write lock is held and must not call back
// into RebuildIndex, EnsureIndex or Stats.
type Listener func(ix *index.InvertedIndex, source string)

type Engine struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	corpus    atomic.Pointer[corpus.Corpus]
	corpusErr atomic.Pointer[error]
	current   atomic.Pointer[index.InvertedIndex]
	// hollow is set while the installed index was built from a corpus that
	// failed to load.
	hollow atomic.Bool

	mu          sync.Mutex
	group       singleflight.Group
	source      string
	installedAt time.Time
	listeners   []Listener
}

// NewEngine returns an engine with an empty corpus and no index. st may be
// nil, in which case built indexes are kept in memory only. m may be nil.
func NewEngine(st store.Store, m *metrics.Metrics) *Engine {
	e := &Engine{
		store:   st,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	e.corpus.Store(corpus.Empty())
	return e
}

// NewEngineWithIndex returns an engine that is already Loaded with ix.
func NewEngineWithIndex(c *corpus.Corpus, ix *index.InvertedIndex) *Engine {
	e := NewEngine(nil, nil)
	e.corpus.Store(c)
	e.install(ix, "provided")
	return e
}

// LoadCorpus reads the corpus at path and installs it. On failure the empty
// corpus is installed and the error is returned.
func (e *Engine) LoadCorpus(path string) error {
	c, err := corpus.Load(path)
	e.SetCorpus(c, err)
	if err != nil {
		e.logger.Error("corpus load failed", "path", path, "error", err)
		return err
	}
	e.logger.Info("corpus loaded", "path", path, "symbols", c.Len())
	return nil
}

// SetCorpus installs c. loadErr records why c is empty, if it is.
func (e *Engine) SetCorpus(c *corpus.Corpus, loadErr error) {
	e.corpus.Store(c)
	if loadErr != nil {
		e.corpusErr.Store(&loadErr)
	} else {
		e.corpusErr.Store(nil)
	}
	if e.metrics != nil {
		e.metrics.CorpusSymbols.Set(float64(c.Len()))
	}
}

// Corpus returns the installed corpus.
func (e *Engine) Corpus() *corpus.Corpus {
	return e.corpus.Load()
}

// CorpusErr returns the error from the last corpus load, if any.
func (e *Engine) CorpusErr() error {
	if p := e.corpusErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (e *Engine) State() State {
	if e.current.Load() != nil {
		return StateLoaded
	}
	return StateNotLoaded
}

// Index returns the installed index, or nil when NotLoaded.
func (e *Engine) Index() *index.InvertedIndex {
	return e.current.Load()
}

// EnsureIndex makes the engine Loaded. It restores the index from the store
// and falls back to building from the corpus when the store reports it
// missing or malformed; the built index is then saved. A failed save leaves
// the engine Loaded and returns an error wrapping ErrPersistence, once.
// Concurrent callers share a single execution.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	if e.current.Load() != nil {
		return nil
	}
	_, err, _ := e.group.Do("ensure-index", func() (any, error) {
		return nil, e.ensure(ctx)
	})
	return err
}

func (e *Engine) ensure(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.Load() != nil {
		return nil
	}

	trigger := "missing"
	if e.store != nil {
		ix, err := e.store.Load(ctx)
		switch {
		case err == nil:
			e.recordLoad("ok")
			e.install(ix, "store")
			e.logger.Info("index restored from store", "terms", ix.Len())
			return nil
		case errors.Is(err, apperrors.ErrIndexMalformed):
			e.recordLoad("malformed")
			trigger = "malformed"
			e.logger.Warn("persisted index is malformed, rebuilding", "error", err)
		case apperrors.IsRecoverableIndexError(err):
			e.recordLoad("not_found")
			e.logger.Info("no persisted index, building from corpus")
		default:
			e.recordLoad("error")
			return fmt.Errorf("%w: loading index: %v", apperrors.ErrIndexNotReady, err)
		}
	}

	ix := e.build(trigger)
	e.install(ix, "build")

	if corpusErr := e.CorpusErr(); corpusErr != nil {
		e.logger.Warn("corpus unavailable, built index not persisted", "error", corpusErr)
		return corpusErr
	}
	return e.save(ctx, ix)
}

// RebuildIndex builds a fresh index from the current corpus, swaps it in and
// saves it. Searches keep using the previous index until the swap. When the
// last corpus load failed nothing is replaced and that error is returned.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	if corpusErr := e.CorpusErr(); corpusErr != nil {
		return fmt.Errorf("rebuild skipped: %w", corpusErr)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ix := e.build("rebuild")
	e.install(ix, "build")
	return e.save(ctx, ix)
}

// Search answers query against the installed index, loading or building it
// first when needed. A persistence failure does not fail the search; any
// other failure yields an empty match together with the error. While the
// index is the empty one built from a failed corpus, every search returns
// the corpus error.
func (e *Engine) Search(ctx context.Context, query string) (executor.Match, error) {
	if len(tokenizer.Query(query)) == 0 {
		return executor.Match{Symbols: index.NewSet(), Phase: executor.PhaseNone}, nil
	}
	if err := e.EnsureIndex(ctx); err != nil {
		if !errors.Is(err, apperrors.ErrPersistence) {
			e.recordQuery("error")
			return executor.Match{Symbols: index.NewSet(), Phase: executor.PhaseNone}, err
		}
		e.logger.Warn("search continuing without persisted index", "error", err)
	}
	ix := e.current.Load()
	if ix == nil {
		e.recordQuery("error")
		return executor.Match{Symbols: index.NewSet(), Phase: executor.PhaseNone}, apperrors.ErrIndexNotReady
	}
	if e.hollow.Load() {
		if corpusErr := e.CorpusErr(); corpusErr != nil {
			e.recordQuery("error")
			return executor.Match{Symbols: index.NewSet(), Phase: executor.PhaseNone}, corpusErr
		}
	}

	m := executor.Execute(ix, query)
	e.recordQuery(string(m.Phase))
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(m.Symbols)))
	}
	e.logger.Debug("query executed",
		"query", query,
		"tokens", m.Tokens,
		"phase", m.Phase,
		"results", len(m.Symbols),
	)
	return m, nil
}

// Keywords returns the corpus keywords of symbol.
func (e *Engine) Keywords(symbol string) ([]string, bool) {
	return e.corpus.Load().Keywords(symbol)
}

// Chunk returns a page of symbols in corpus order.
func (e *Engine) Chunk(start, count int) []string {
	return e.corpus.Load().Chunk(start, count)
}

// Order returns the members of set in corpus order.
func (e *Engine) Order(set index.Set) []string {
	return e.corpus.Load().Order(set.Sorted())
}

// OnIndexChange registers fn to run after every index install.
func (e *Engine) OnIndexChange(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	source, installedAt := e.source, e.installedAt
	e.mu.Unlock()

	st := Stats{
		State:       e.State().String(),
		Symbols:     e.corpus.Load().Len(),
		Source:      source,
		InstalledAt: installedAt,
	}
	if ix := e.current.Load(); ix != nil {
		st.Terms = ix.Len()
		st.Postings = ix.Postings()
	}
	if err := e.CorpusErr(); err != nil {
		st.CorpusError = err.Error()
	}
	return st
}

// Close releases the store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) build(trigger string) *index.InvertedIndex {
	start := time.Now()
	c := e.corpus.Load()
	ix := index.Build(c)
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues(trigger).Inc()
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
	e.logger.Info("index built",
		"trigger", trigger,
		"symbols", c.Len(),
		"terms", ix.Len(),
		"postings", ix.Postings(),
		"duration", elapsed,
	)
	return ix
}

// install must be called with e.mu held, except from constructors.
func (e *Engine) install(ix *index.InvertedIndex, source string) {
	e.current.Store(ix)
	e.hollow.Store(source == "build" && e.CorpusErr() != nil)
	e.source = source
	e.installedAt = time.Now()
	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(ix.Len()))
	}
	for _, fn := range e.listeners {
		fn(ix, source)
	}
}

func (e *Engine) save(ctx context.Context, ix *index.InvertedIndex) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(ctx, ix); err != nil {
		if e.metrics != nil {
			e.metrics.IndexSavesTotal.WithLabelValues("error").Inc()
		}
		e.logger.Error("index save failed, keeping in-memory index", "error", err)
		if !errors.Is(err, apperrors.ErrPersistence) {
			err = fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.IndexSavesTotal.WithLabelValues("ok").Inc()
	}
	return nil
}

func (e *Engine) recordLoad(outcome string) {
	if e.metrics != nil {
		e.metrics.IndexLoadsTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) recordQuery(phase string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(phase).Inc()
	}
}

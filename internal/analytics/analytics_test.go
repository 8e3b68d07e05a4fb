package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 2, time.Hour)
	c.Start(context.Background())

	c.TrackSearch(SearchEvent{Type: EventSearch, Query: "cat"})
	c.TrackSearch(SearchEvent{Type: EventSearch, Query: "dog"})

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 100, time.Hour)
	c.Start(context.Background())

	c.TrackIndex(IndexEvent{Type: EventIndexBuild, Terms: 3})
	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "index", pub.batches[0][0].Key)
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 16, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.TrackSearch(SearchEvent{Query: "cat"})
	cancel()
	<-c.done
	assert.Equal(t, 1, pub.count())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1, 10, time.Hour)
	c.Track("a", 1)
	c.Track("b", 2)
	assert.Len(t, c.eventCh, 1)
}

func TestAggregatorRecordsSearches(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "cat", Phase: "exact", TotalHits: 2, LatencyMs: 4, CacheHit: true})
	agg.RecordSearch(SearchEvent{Query: "cat", Phase: "exact", TotalHits: 2, LatencyMs: 2})
	agg.RecordSearch(SearchEvent{Query: "zzz", Phase: "none", TotalHits: 0, LatencyMs: 6})
	agg.RecordIndex(IndexEvent{Terms: 42})

	st := agg.Stats()
	assert.Equal(t, int64(3), st.TotalSearches)
	assert.Equal(t, int64(2), st.SearchesByPhase["exact"])
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(2), st.CacheMisses)
	assert.Equal(t, int64(1), st.ZeroResultCount)
	assert.Equal(t, int64(1), st.IndexBuilds)
	assert.Equal(t, 42, st.LastIndexTerms)
	assert.InDelta(t, 4.0, st.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(4), st.P50LatencyMs)
	assert.Equal(t, []QueryCount{{Query: "cat", Count: 2}, {Query: "zzz", Count: 1}}, st.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, st.ZeroResultQueries)
}

func TestAggregatorLatencyRingIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.RecordSearch(SearchEvent{Query: "q", LatencyMs: int64(i)})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalSearches)
}

func TestHandleEventDispatchesByType(t *testing.T) {
	agg := NewAggregator()
	h := HandleEvent(agg)

	search, _ := json.Marshal(SearchEvent{Type: EventSearch, Query: "cat", Phase: "exact", TotalHits: 1})
	index, _ := json.Marshal(IndexEvent{Type: EventIndexBuild, Terms: 9})
	ctx := context.Background()
	require.NoError(t, h(ctx, []byte("cat"), search))
	require.NoError(t, h(ctx, []byte("index"), index))
	require.NoError(t, h(ctx, nil, []byte(`not json`)))
	require.NoError(t, h(ctx, nil, []byte(`{"type":"other"}`)))

	st := agg.Stats()
	assert.Equal(t, int64(1), st.TotalSearches)
	assert.Equal(t, 9, st.LastIndexTerms)
}

func TestRecordRejectsUnknownType(t *testing.T) {
	assert.Error(t, NewAggregator().Record([]byte(`{"type":"other"}`)))
}

type fakeLister struct{ snaps []AggregatedStats }

func (f fakeLister) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	if limit < len(f.snaps) {
		return f.snaps[:limit], nil
	}
	return f.snaps, nil
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "cat", Phase: "exact", TotalHits: 1})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(1), st.TotalSearches)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerSnapshots(t *testing.T) {
	lister := fakeLister{snaps: []AggregatedStats{{TotalSearches: 2}, {TotalSearches: 1}}}
	h := NewHandler(NewAggregator(), lister)

	rec := httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Snapshots []AggregatedStats `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, int64(2), body.Snapshots[0].TotalSearches)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

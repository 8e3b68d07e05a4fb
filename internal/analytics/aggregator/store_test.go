package aggregator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/sqldb"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := sqldb.OpenSQLite(ctx, filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(ctx, db)
	require.NoError(t, err)
	return s
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s := newSQLiteStore(t)
	got, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		stats := analytics.AggregatedStats{TotalSearches: int64(i)}
		require.NoError(t, s.saveAt(ctx, stats, base.Add(time.Duration(i)*time.Minute)))
	}

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.TotalSearches)

	list, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].TotalSearches)
	assert.Equal(t, int64(2), list[1].TotalSearches)
}

func TestStartPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	s := newSQLiteStore(t)
	agg := analytics.NewAggregator()
	agg.RecordSearch(analytics.SearchEvent{Query: "cat", Phase: "exact", TotalHits: 1})

	ctx, cancel := context.WithCancel(context.Background())
	s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()

	assert.Eventually(t, func() bool {
		latest, err := s.LatestSnapshot(context.Background())
		return err == nil && latest != nil && latest.TotalSearches == 1
	}, 2*time.Second, 10*time.Millisecond)
}

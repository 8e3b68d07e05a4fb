package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/sqldb"
)

func sampleIndex() *index.InvertedIndex {
	return index.Build(corpus.New(
		corpus.Entry{Symbol: "😀", Keywords: []string{"grinning", "face", "grinning_face"}},
		corpus.Entry{Symbol: "😁", Keywords: []string{"grinning", "eyes"}},
		corpus.Entry{Symbol: "<&>", Keywords: []string{"html_chars"}},
	))
}

type storeCase struct {
	name string
	open func(t testing.TB) Store
}

func storeCases() []storeCase {
	return []storeCase{
		{"file-json", func(t testing.TB) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "index", "inverted_index.json"))
		}},
		{"file-yaml", func(t testing.TB) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "inverted_index.yaml"))
		}},
		{"bolt", func(t testing.TB) Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "index.db"))
			require.NoError(t, err)
			return s
		}},
		{"badger", func(t testing.TB) Store {
			s, err := OpenBadger("", true)
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t testing.TB) Store {
			client, err := sqldb.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "index.sqlite"))
			require.NoError(t, err)
			s, err := NewSQLStore(context.Background(), client)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t)
			defer s.Close()

			_, err := s.Load(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrIndexNotFound), "got %v", err)

			want := sampleIndex()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, want.EqualSets(got))
			assert.Equal(t, want.Entries(), got.Entries(), "symbol order and duplicates survive")
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t)
			defer s.Close()

			require.NoError(t, s.Save(ctx, sampleIndex()))

			smaller, err := index.FromMap(map[string][]string{"cat": {"🐱"}})
			require.NoError(t, err)
			require.NoError(t, s.Save(ctx, smaller))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"cat"}, got.Terms())
		})
	}
}

func TestStoreEmptyIndex(t *testing.T) {
	ctx := context.Background()
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t)
			defer s.Close()

			require.NoError(t, s.Save(ctx, index.Build(corpus.Empty())))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Len())
		})
	}
}

func TestFileStoreSaveIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"ix.json", "ix.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			s := NewFileStore(path)

			require.NoError(t, s.Save(ctx, sampleIndex()))
			first, err := os.ReadFile(path)
			require.NoError(t, err)

			require.NoError(t, s.Save(ctx, sampleIndex()))
			second, err := os.ReadFile(path)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file is renamed away")
		})
	}
}

func TestFileStoreWritesUnescapedUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ix.json")
	require.NoError(t, NewFileStore(path).Save(context.Background(), sampleIndex()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"😀"`)
	assert.Contains(t, string(data), `"<&>"`)
}

func TestFileStoreMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"cat": [`,
		"wrong shape":    `["cat"]`,
		"empty list":     `{"cat": []}`,
		"null list":      `{"cat": null}`,
		"null document":  `null`,
		"number symbols": `{"cat": [1, 2]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ix.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := NewFileStore(path).Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrIndexMalformed), "got %v", err)
		})
	}
}

func TestFileStoreSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// the parent "directory" is a regular file, so MkdirAll fails
	s := NewFileStore(filepath.Join(blocker, "ix.json"))
	err := s.Save(context.Background(), sampleIndex())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))
}

func TestBadgerIncompleteSaveIsNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadger("", true)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, sampleIndex()))
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerMarkerKey))
	}))

	_, err = s.Load(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrIndexNotFound), "got %v", err)
}

func TestSQLStoreConnectionErrorIsNotMalformed(t *testing.T) {
	ctx := context.Background()
	client, err := sqldb.OpenSQLite(ctx, filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	s, err := NewSQLStore(ctx, client)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleIndex()))

	require.NoError(t, client.DB.Close())
	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.False(t, apperrors.IsRecoverableIndexError(err), "got %v", err)
}

func TestBoltStoreUndecodableValueIsMalformed(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, sampleIndex()))
	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPostings).Put([]byte("cat"), []byte("{not json"))
	}))

	_, err = s.Load(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrIndexMalformed), "got %v", err)
}

func TestBoltStoreClosedDBIsNotMalformed(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleIndex()))
	require.NoError(t, s.Close())

	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.False(t, apperrors.IsRecoverableIndexError(err), "got %v", err)
}

type failingFile struct {
	bytes.Buffer
	closeErr error
}

func (f *failingFile) Sync() error  { return nil }
func (f *failingFile) Close() error { return f.closeErr }

func TestFileStoreCloseFailureIsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ix.json")
	s := NewFileStore(path)
	s.create = func(string) (indexFile, error) {
		return &failingFile{closeErr: errors.New("quota exceeded")}, nil
	}

	err := s.Save(context.Background(), sampleIndex())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence), "got %v", err)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "index file must not be replaced")
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.StoreConfig{Driver: "file", Path: filepath.Join(dir, "ix.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StoreConfig{Driver: "bolt", Path: filepath.Join(dir, "ix.db")})
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "ix.sqlite")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func BenchmarkSaveLoad(b *testing.B) {
	ctx := context.Background()
	entries := make([]corpus.Entry, 0, 2000)
	for i := 0; i < 2000; i++ {
		entries = append(entries, corpus.Entry{
			Symbol:   fmt.Sprintf("sym-%04d", i),
			Keywords: []string{fmt.Sprintf("word%d", i%300), fmt.Sprintf("group_%d", i%40), "shared"},
		})
	}
	ix := index.Build(corpus.New(entries...))

	for _, tc := range storeCases() {
		b.Run(tc.name, func(b *testing.B) {
			s := tc.open(b)
			defer s.Close()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := s.Save(ctx, ix); err != nil {
					b.Fatal(err)
				}
				if _, err := s.Load(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

var bucketPostings = []byte("postings")

// BoltStore keeps one key per token in a single bbolt bucket. The value is the
// JSON-encoded symbol list.
type BoltStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating bolt directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database %s: %w", path, err)
	}
	return &BoltStore{
		db:     db,
		logger: slog.Default().With("component", "bolt-store"),
	}, nil
}

func (s *BoltStore) Load(ctx context.Context) (*index.InvertedIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := make(map[string][]string)
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPostings)
		if b == nil {
			return nil
		}
		found = true
		return b.ForEach(func(k, v []byte) error {
			var symbols []string
			if err := json.Unmarshal(v, &symbols); err != nil {
				return fmt.Errorf("%w: token %q: %v", apperrors.ErrIndexMalformed, k, err)
			}
			m[string(k)] = symbols
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no postings bucket", apperrors.ErrIndexNotFound)
	}
	ix, err := index.FromMap(m)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("index loaded", "terms", ix.Len())
	return ix, nil
}

// Save drops and recreates the bucket inside one write transaction.
func (s *BoltStore) Save(ctx context.Context, ix *index.InvertedIndex) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketPostings) != nil {
			if err := tx.DeleteBucket(bucketPostings); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketPostings)
		if err != nil {
			return err
		}
		for _, entry := range ix.Entries() {
			data, err := json.Marshal(entry.Symbols)
			if err != nil {
				return fmt.Errorf("marshaling token %q: %w", entry.Term, err)
			}
			if err := b.Put([]byte(entry.Term), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	s.logger.Info("index saved", "terms", ix.Len())
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

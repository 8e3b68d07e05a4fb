package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

const (
	badgerTokenPrefix = "tok/"
	badgerMarkerKey   = "meta/complete"
)

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// BadgerStore keeps one key per token under the tok/ prefix. A marker key is
// written after the last token; without it the store reports NotFound, so an
// interrupted save is rebuilt rather than loaded half-way.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens the database directory at path, creating it if needed.
// inMemory is used by tests.
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	logger := slog.Default().With("component", "badger-store")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database %s: %w", path, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Load(ctx context.Context) (*index.InvertedIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := make(map[string][]string)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(badgerMarkerKey)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrIndexNotFound
			}
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerTokenPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			term := string(item.Key()[len(badgerTokenPrefix):])
			err := item.Value(func(val []byte) error {
				var symbols []string
				if err := json.Unmarshal(val, &symbols); err != nil {
					return fmt.Errorf("%w: token %q: %v", apperrors.ErrIndexMalformed, term, err)
				}
				m[term] = symbols
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, apperrors.ErrIndexNotFound) {
		return nil, fmt.Errorf("%w: no completed index", apperrors.ErrIndexNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	ix, err := index.FromMap(m)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("index loaded", "terms", ix.Len())
	return ix, nil
}

// Save clears the marker, drops every token key, writes the new tokens in a
// batch and finally sets the marker again.
func (s *BadgerStore) Save(ctx context.Context, ix *index.InvertedIndex) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerMarkerKey))
	})
	if err != nil {
		return fmt.Errorf("%w: clearing marker: %v", apperrors.ErrPersistence, err)
	}
	if err := s.db.DropPrefix([]byte(badgerTokenPrefix)); err != nil {
		return fmt.Errorf("%w: dropping old tokens: %v", apperrors.ErrPersistence, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, entry := range ix.Entries() {
		data, err := json.Marshal(entry.Symbols)
		if err != nil {
			return fmt.Errorf("%w: marshaling token %q: %v", apperrors.ErrPersistence, entry.Term, err)
		}
		if err := wb.Set([]byte(badgerTokenPrefix+entry.Term), data); err != nil {
			return fmt.Errorf("%w: writing token %q: %v", apperrors.ErrPersistence, entry.Term, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flushing tokens: %v", apperrors.ErrPersistence, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerMarkerKey), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("%w: writing marker: %v", apperrors.ErrPersistence, err)
	}
	s.logger.Info("index saved", "terms", ix.Len())
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

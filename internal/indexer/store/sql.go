package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/sqldb"
)

const createPostingsTable = `
CREATE TABLE IF NOT EXISTS index_postings (
	token    TEXT    NOT NULL,
	position INTEGER NOT NULL,
	symbol   TEXT    NOT NULL,
	PRIMARY KEY (token, position)
)`

const createIndexMetaTable = `
CREATE TABLE IF NOT EXISTS index_meta (
	id       INTEGER PRIMARY KEY,
	terms    INTEGER NOT NULL,
	postings INTEGER NOT NULL
)`

// SQLStore keeps the index as (token, position, symbol) rows. The single
// index_meta row marks a completed save; Save rewrites both tables in one
// transaction.
type SQLStore struct {
	client *sqldb.Client
	logger *slog.Logger
}

// NewSQLStore creates the tables if needed. It takes ownership of client.
func NewSQLStore(ctx context.Context, client *sqldb.Client) (*SQLStore, error) {
	for _, stmt := range []string{createPostingsTable, createIndexMetaTable} {
		if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
			client.Close()
			return nil, fmt.Errorf("creating index tables: %w", err)
		}
	}
	return &SQLStore{
		client: client,
		logger: slog.Default().With("component", "sql-store", "driver", client.Driver),
	}, nil
}

// Load reports query and connection failures as they are; only rows that
// do not form a valid index are ErrIndexMalformed.
func (s *SQLStore) Load(ctx context.Context) (*index.InvertedIndex, error) {
	var terms int
	err := s.client.DB.QueryRowContext(ctx, `SELECT terms FROM index_meta WHERE id = 1`).Scan(&terms)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no saved index", apperrors.ErrIndexNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT token, symbol FROM index_postings ORDER BY token, position`)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	m := make(map[string][]string, terms)
	for rows.Next() {
		var token, symbol string
		if err := rows.Scan(&token, &symbol); err != nil {
			return nil, fmt.Errorf("%w: scanning posting: %v", apperrors.ErrIndexMalformed, err)
		}
		m[token] = append(m[token], symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating postings: %w", err)
	}
	if len(m) != terms {
		return nil, fmt.Errorf("%w: metadata lists %d tokens, found %d", apperrors.ErrIndexMalformed, terms, len(m))
	}
	ix, err := index.FromMap(m)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("index loaded", "terms", ix.Len())
	return ix, nil
}

func (s *SQLStore) Save(ctx context.Context, ix *index.InvertedIndex) error {
	insertPosting := s.client.Rebind(`INSERT INTO index_postings (token, position, symbol) VALUES (?, ?, ?)`)
	insertMeta := s.client.Rebind(`INSERT INTO index_meta (id, terms, postings) VALUES (1, ?, ?)`)

	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
			return fmt.Errorf("clearing metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_postings`); err != nil {
			return fmt.Errorf("clearing postings: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, insertPosting)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range ix.Entries() {
			for pos, symbol := range entry.Symbols {
				if _, err := stmt.ExecContext(ctx, entry.Term, pos, symbol); err != nil {
					return fmt.Errorf("inserting token %q: %w", entry.Term, err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, insertMeta, ix.Len(), ix.Postings()); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	s.logger.Info("index saved", "terms", ix.Len(), "postings", ix.Postings())
	return nil
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}

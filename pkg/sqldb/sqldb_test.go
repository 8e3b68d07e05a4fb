package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &Client{Driver: DriverPostgres}
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.Rebind("INSERT INTO t (a, b) VALUES (?, ?)"))

	lite := &Client{Driver: DriverSQLite}
	assert.Equal(t, "SELECT ? FROM t", lite.Rebind("SELECT ? FROM t"))
}

func TestSQLiteInTx(t *testing.T) {
	ctx := context.Background()
	c, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.DB.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	err = c.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, c.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", "1")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('b', '2')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 1, n, "failed transaction is rolled back")
}

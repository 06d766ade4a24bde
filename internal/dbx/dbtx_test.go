package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTokens(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE refresh_tokens (token_id TEXT PRIMARY KEY, user_id TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO refresh_tokens VALUES ('old', 'u1')`)
	require.NoError(t, err)
	return db
}

func tokenIDs(t *testing.T, db DBTX) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), `SELECT token_id FROM refresh_tokens ORDER BY token_id`)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

// rotate swaps the "old" row for "new" and then runs after.
func rotate(after func() error) TxFunc {
	return func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_id = 'old'`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO refresh_tokens VALUES ('new', 'u1')`); err != nil {
			return err
		}
		return after()
	}
}

func TestWithTx_Commit(t *testing.T) {
	db := openTokens(t)

	err := WithTx(context.Background(), db, nil, rotate(func() error { return nil }))
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, tokenIDs(t, db))
}

func TestWithTx_ErrorRollsBackEveryStatement(t *testing.T) {
	db := openTokens(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, rotate(func() error { return boom }))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"old"}, tokenIDs(t, db))
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openTokens(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, rotate(func() error { panic("kaput") }))
	})
	assert.Equal(t, []string{"old"}, tokenIDs(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openTokens(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestSQLTransactor(t *testing.T) {
	db := openTokens(t)
	tr := NewSQLTransactor(db, nil)
	require.Same(t, db, tr.DB())

	require.Error(t, tr.WithTx(context.Background(), rotate(func() error { return errors.New("abort") })))
	assert.Equal(t, []string{"old"}, tokenIDs(t, tr.Conn()))

	require.NoError(t, tr.WithTx(context.Background(), rotate(func() error { return nil })))
	assert.Equal(t, []string{"new"}, tokenIDs(t, tr.Conn()))
}

package singleuse

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T, kind Kind) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db, kind), mock, db
}

var tokenCols = []string{"id", "user_id", "token_hash", "expires_at", "used_at", "created_at"}

func TestKindTables(t *testing.T) {
	assert.Equal(t, "password_reset_tokens", PasswordReset.table())
	assert.Equal(t, "email_verify_tokens", EmailVerify.table())
	assert.Equal(t, "email_verify", EmailVerify.String())
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, PasswordReset)
	defer db.Close()

	now := time.Now()
	tok := models.NewSingleUseToken("t1", "u1", "hash", now, now.Add(time.Hour))

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+password_reset_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)$`).
		WithArgs("t1", "u1", "hash", tok.ExpiresAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), &tok))

	mock.ExpectExec(`INSERT\s+INTO\s+password_reset_tokens`).WillReturnError(errors.New("down"))
	err := repo.Create(context.Background(), &tok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: down")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, EmailVerify)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*used_at,\s*created_at\s+FROM\s+email_verify_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+FOR\s+UPDATE$`
	now := time.Now()

	t.Run("active", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("h1").
			WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t1", "u1", "h1", now.Add(time.Hour), nil, now))

		got, err := repo.FindByHashForUpdate(context.Background(), "h1")
		require.NoError(t, err)
		assert.Equal(t, models.TokenActive, got.State)
		assert.Nil(t, got.ConsumedAt)
	})

	t.Run("consumed", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("h2").
			WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t2", "u1", "h2", now.Add(time.Hour), now, now))

		got, err := repo.FindByHashForUpdate(context.Background(), "h2")
		require.NoError(t, err)
		assert.Equal(t, models.TokenConsumed, got.State)
		require.NotNil(t, got.ConsumedAt)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("h3").WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByHashForUpdate(context.Background(), "h3")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestMarkConsumed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, PasswordReset)
	defer db.Close()

	q := `^UPDATE password_reset_tokens SET used_at = \$2 WHERE id = \$1 AND used_at IS NULL$`
	now := time.Now()

	mock.ExpectExec(q).WithArgs("t1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkConsumed(context.Background(), "t1", now))

	mock.ExpectExec(q).WithArgs("t1", now).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkConsumed(context.Background(), "t1", now), models.ErrTokenAlreadyConsumed)

	mock.ExpectExec(q).WithArgs("t1", now).WillReturnError(errors.New("boom"))
	err := repo.MarkConsumed(context.Background(), "t1", now)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrTokenAlreadyConsumed)
}

func TestConsumeActiveForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, EmailVerify)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^UPDATE email_verify_tokens SET used_at = \$2 WHERE user_id = \$1 AND used_at IS NULL$`).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ConsumeActiveForUser(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteStale(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, PasswordReset)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^DELETE FROM password_reset_tokens WHERE expires_at <= \$1 OR used_at IS NOT NULL$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteStale(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

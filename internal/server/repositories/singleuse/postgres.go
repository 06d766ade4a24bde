package singleuse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

func NewPostgresRepository(db dbx.DBTX, kind Kind) *PostgresRepository {
	return &PostgresRepository{db: db, table: kind.table()}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.SingleUseToken) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, user_id, token_hash, expires_at, created_at)
         VALUES ($1, $2, $3, $4, $5)`, r.table)

	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.SingleUseToken, error) {
	query := fmt.Sprintf(
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM %s
		 WHERE token_hash = $1
		 FOR UPDATE`, r.table)

	t := &models.SingleUseToken{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if usedAt.Valid {
		at := usedAt.Time
		t.ConsumedAt = &at
	}
	t.State = models.StateFromUsedAt(t.ConsumedAt)
	return t, nil
}

func (r *PostgresRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, r.table)

	n, err := affected(r.db.ExecContext(ctx, query, id, at))
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrTokenAlreadyConsumed
	}
	return nil
}

func (r *PostgresRepository) ConsumeActiveForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET used_at = $2 WHERE user_id = $1 AND used_at IS NULL`, r.table)
	return affected(r.db.ExecContext(ctx, query, userID, at))
}

func (r *PostgresRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1 OR used_at IS NOT NULL`, r.table)
	return affected(r.db.ExecContext(ctx, query, now))
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Package session keeps the authctl login state in a local SQLite file so
// a restarted CLI can pick up where it left off.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("no session")

const (
	keyEmail           = "email"
	keyUserID          = "user_id"
	keyAccessToken     = "access_token"
	keyAccessExpiresAt = "access_expires_at"
	keyRefreshToken    = "refresh_token"
)

// Session is what the CLI remembers about the logged-in user.
type Session struct {
	Email           string
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (r *SQLiteStore) Load(ctx context.Context) (*Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	if values[keyRefreshToken] == "" {
		return nil, ErrNoSession
	}

	s := &Session{
		Email:        values[keyEmail],
		UserID:       values[keyUserID],
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
	}
	if v := values[keyAccessExpiresAt]; v != "" {
		// a malformed time just makes the token look expired
		s.AccessExpiresAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return s, nil
}

// Save replaces the stored session atomically.
func (r *SQLiteStore) Save(ctx context.Context, s *Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		values := map[string]string{
			keyEmail:           s.Email,
			keyUserID:          s.UserID,
			keyAccessToken:     s.AccessToken,
			keyAccessExpiresAt: s.AccessExpiresAt.UTC().Format(time.RFC3339Nano),
			keyRefreshToken:    s.RefreshToken,
		}
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, `INSERT INTO session (key, value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("failed to set session[%s]: %w", k, err)
			}
		}
		return nil
	})
}

func (r *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

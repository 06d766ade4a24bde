// Package memory is an in-process CredentialStore: a RepositoryManager and
// dbx.Transactor backed by maps. Transactions are serialized and roll back
// by restoring a snapshot. It is selected with the "memory://" DSN and used
// by service and HTTP tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/singleuse"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type data struct {
	users    map[string]models.User
	emails   map[string]string
	refresh  map[string]models.RefreshToken
	resets   map[string]models.SingleUseToken
	verifies map[string]models.SingleUseToken
}

func newData() data {
	return data{
		users:    map[string]models.User{},
		emails:   map[string]string{},
		refresh:  map[string]models.RefreshToken{},
		resets:   map[string]models.SingleUseToken{},
		verifies: map[string]models.SingleUseToken{},
	}
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	for k, v := range d.refresh {
		c.refresh[k] = v
	}
	for k, v := range d.resets {
		c.resets[k] = v
	}
	for k, v := range d.verifies {
		c.verifies[k] = v
	}
	return c
}

// Store holds all rows. The zero value is not usable; call New.
type Store struct {
	txMu sync.Mutex // held for a whole transaction or a single statement
	mu   sync.Mutex // guards d
	d    data
}

// New returns an empty store.
func New() *Store {
	return &Store{d: newData()}
}

// txHandle marks repositories created inside WithTx. They already hold txMu.
type txHandle struct{}

func (txHandle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (txHandle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (txHandle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// Conn returns the non-transactional handle. Memory repositories only use
// it to tell statements from transactions.
func (s *Store) Conn() dbx.DBTX { return nil }

// WithTx runs fn while holding the store exclusively. If fn fails or
// panics every change it made is discarded.
func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, txHandle{})
}

func (s *Store) restore(d data) {
	s.mu.Lock()
	s.d = d
	s.mu.Unlock()
}

// do runs f with the data lock, taking the transaction lock as well when
// the caller is not already inside WithTx.
func (s *Store) do(db dbx.DBTX, f func(d *data)) {
	if _, inTx := db.(txHandle); !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.d)
}

// RunMigrations is a no-op; the schema is implicit.
func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

func (s *Store) Users(db dbx.DBTX) users.Repository {
	return &userRepo{s: s, db: db}
}

func (s *Store) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &refreshRepo{s: s, db: db}
}

func (s *Store) PasswordResets(db dbx.DBTX) singleuse.Repository {
	return &singleUseRepo{s: s, db: db, rows: func(d *data) map[string]models.SingleUseToken { return d.resets }}
}

func (s *Store) EmailVerifications(db dbx.DBTX) singleuse.Repository {
	return &singleUseRepo{s: s, db: db, rows: func(d *data) map[string]models.SingleUseToken { return d.verifies }}
}

// Counts reports row counts per table, for tests and diagnostics.
type Counts struct {
	Users, RefreshTokens, PasswordResets, EmailVerifications int
}

func (s *Store) Counts() Counts {
	var c Counts
	s.do(nil, func(d *data) {
		c = Counts{
			Users:              len(d.users),
			RefreshTokens:      len(d.refresh),
			PasswordResets:     len(d.resets),
			EmailVerifications: len(d.verifies),
		}
	})
	return c
}

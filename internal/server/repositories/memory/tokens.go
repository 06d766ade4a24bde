package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type refreshRepo struct {
	s  *Store
	db dbx.DBTX
}

// refresh rows are keyed by token id, which is unique.
func (r *refreshRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	var err error
	r.s.do(r.db, func(d *data) {
		if _, ok := d.users[token.UserID]; !ok {
			err = common.ErrNotFound
			return
		}
		if _, dup := d.refresh[token.TokenID]; dup {
			err = common.ErrConflict
			return
		}
		d.refresh[token.TokenID] = *token
	})
	return err
}

func (r *refreshRepo) FindByTokenID(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	var (
		t  models.RefreshToken
		ok bool
	)
	r.s.do(r.db, func(d *data) { t, ok = d.refresh[tokenID] })
	if !ok {
		return nil, common.ErrNotFound
	}
	return &t, nil
}

func (r *refreshRepo) DeleteByTokenID(ctx context.Context, tokenID string) (bool, error) {
	var ok bool
	r.s.do(r.db, func(d *data) {
		_, ok = d.refresh[tokenID]
		delete(d.refresh, tokenID)
	})
	return ok, nil
}

func (r *refreshRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	r.s.do(r.db, func(d *data) {
		for k, t := range d.refresh {
			if t.UserID == userID {
				delete(d.refresh, k)
				n++
			}
		}
	})
	return n, nil
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	r.s.do(r.db, func(d *data) {
		for k, t := range d.refresh {
			if t.Expired(now) {
				delete(d.refresh, k)
				n++
			}
		}
	})
	return n, nil
}

type singleUseRepo struct {
	s    *Store
	db   dbx.DBTX
	rows func(d *data) map[string]models.SingleUseToken
}

func (r *singleUseRepo) Create(ctx context.Context, token *models.SingleUseToken) error {
	var err error
	r.s.do(r.db, func(d *data) {
		if _, ok := d.users[token.UserID]; !ok {
			err = common.ErrNotFound
			return
		}
		m := r.rows(d)
		for _, t := range m {
			if t.TokenHash == token.TokenHash {
				err = common.ErrConflict
				return
			}
		}
		m[token.ID] = *token
	})
	return err
}

// FindByHashForUpdate needs no row lock: transactions are already exclusive.
func (r *singleUseRepo) FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.SingleUseToken, error) {
	var found *models.SingleUseToken
	r.s.do(r.db, func(d *data) {
		for _, t := range r.rows(d) {
			if t.TokenHash == tokenHash {
				t := t
				found = &t
				return
			}
		}
	})
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found, nil
}

func (r *singleUseRepo) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	var err error
	r.s.do(r.db, func(d *data) {
		m := r.rows(d)
		t, ok := m[id]
		if !ok {
			err = models.ErrTokenAlreadyConsumed
			return
		}
		if err = t.Consume(at); err != nil {
			return
		}
		m[id] = t
	})
	return err
}

func (r *singleUseRepo) ConsumeActiveForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	r.s.do(r.db, func(d *data) {
		m := r.rows(d)
		for k, t := range m {
			if t.UserID != userID {
				continue
			}
			if t.Consume(at) == nil {
				m[k] = t
				n++
			}
		}
	})
	return n, nil
}

func (r *singleUseRepo) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	r.s.do(r.db, func(d *data) {
		m := r.rows(d)
		for k, t := range m {
			if t.Expired(now) || t.State == models.TokenConsumed {
				delete(m, k)
				n++
			}
		}
	})
	return n, nil
}

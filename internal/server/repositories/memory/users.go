package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type userRepo struct {
	s  *Store
	db dbx.DBTX
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	var err error
	r.s.do(r.db, func(d *data) {
		if _, taken := d.emails[user.Email]; taken {
			err = common.ErrConflict
			return
		}
		if _, taken := d.users[user.ID]; taken {
			err = common.ErrConflict
			return
		}
		d.users[user.ID] = *user
		d.emails[user.Email] = user.ID
	})
	return err
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var (
		u   models.User
		err error
	)
	r.s.do(r.db, func(d *data) {
		id, ok := d.emails[email]
		if !ok {
			err = common.ErrNotFound
			return
		}
		u = d.users[id]
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.s.do(r.db, func(d *data) { u, ok = d.users[id] })
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) update(id string, f func(u *models.User)) error {
	err := common.ErrNotFound
	r.s.do(r.db, func(d *data) {
		u, ok := d.users[id]
		if !ok {
			return
		}
		f(&u)
		d.users[id] = u
		err = nil
	})
	return err
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	})
}

func (r *userRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.EmailVerified = true
		u.EmailVerifiedAt = &at
		u.UpdatedAt = at
	})
}

// Delete removes the user and, like ON DELETE CASCADE, every token row.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	err := common.ErrNotFound
	r.s.do(r.db, func(d *data) {
		u, ok := d.users[id]
		if !ok {
			return
		}
		delete(d.users, id)
		delete(d.emails, u.Email)
		for k, t := range d.refresh {
			if t.UserID == id {
				delete(d.refresh, k)
			}
		}
		for _, m := range []map[string]models.SingleUseToken{d.resets, d.verifies} {
			for k, t := range m {
				if t.UserID == id {
					delete(m, k)
				}
			}
		}
		err = nil
	})
	return err
}

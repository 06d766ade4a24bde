// Package singleuse stores password-reset and email-verification tokens.
// Both kinds share one row shape and live in separate tables.
package singleuse

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Kind selects the table a Repository works on.
type Kind int

const (
	PasswordReset Kind = iota
	EmailVerify
)

func (k Kind) table() string {
	if k == EmailVerify {
		return "email_verify_tokens"
	}
	return "password_reset_tokens"
}

func (k Kind) String() string {
	if k == EmailVerify {
		return "email_verify"
	}
	return "password_reset"
}

// Repository stores single-use tokens of one Kind.
type Repository interface {
	Create(ctx context.Context, token *models.SingleUseToken) error

	// FindByHashForUpdate returns the row for tokenHash and, inside a
	// transaction, locks it until commit. Returns common.ErrNotFound.
	FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.SingleUseToken, error)

	// MarkConsumed sets used_at on an active row. It returns
	// models.ErrTokenAlreadyConsumed if the row was consumed meanwhile.
	MarkConsumed(ctx context.Context, id string, at time.Time) error

	// ConsumeActiveForUser marks every active token of userID consumed.
	ConsumeActiveForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteStale removes expired or consumed rows.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

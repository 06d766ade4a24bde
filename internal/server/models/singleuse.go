package models

import (
	"errors"
	"time"
)

// ErrTokenAlreadyConsumed is returned by Consume on a token that was used.
var ErrTokenAlreadyConsumed = errors.New("token already consumed")

// TokenState is the lifecycle of a single-use token. The only transition
// is Active -> Consumed.
type TokenState int

const (
	TokenActive TokenState = iota
	TokenConsumed
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// SingleUseToken is a password-reset or email-verify token. Only the
// SHA-256 hex of the opaque token is kept.
type SingleUseToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	State      TokenState
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// NewSingleUseToken returns an active token.
func NewSingleUseToken(id, userID, tokenHash string, createdAt, expiresAt time.Time) SingleUseToken {
	return SingleUseToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		State:     TokenActive,
		CreatedAt: createdAt,
	}
}

// StateFromUsedAt maps the nullable used_at column to a TokenState.
func StateFromUsedAt(usedAt *time.Time) TokenState {
	if usedAt == nil {
		return TokenActive
	}
	return TokenConsumed
}

// Expired reports whether the token is past its expiry at now.
func (t *SingleUseToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Consume moves the token to TokenConsumed.
func (t *SingleUseToken) Consume(now time.Time) error {
	if t.State == TokenConsumed {
		return ErrTokenAlreadyConsumed
	}
	t.State = TokenConsumed
	t.ConsumedAt = &now
	return nil
}

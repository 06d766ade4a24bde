package models

import "time"

// RefreshToken is the server-side row a signed refresh token is bound to.
// TokenID is the jti embedded in the JWT, not the JWT itself.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the row is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

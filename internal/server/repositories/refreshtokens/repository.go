// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByTokenID looks up a row by the jti embedded in the signed token.
	// Returns common.ErrNotFound when absent.
	FindByTokenID(ctx context.Context, tokenID string) (*models.RefreshToken, error)

	// DeleteByTokenID removes a row and reports whether one existed.
	DeleteByTokenID(ctx context.Context, tokenID string) (bool, error)

	// DeleteByUser revokes every refresh token of userID and returns the count.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired purges rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Package refreshtokens declares the storage contract for issued refresh
// tokens. Rows are created once and only ever mutated to set revoked_at.
package refreshtokens

import (
	"context"

	"github.com/relativit/relativit/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking
// refresh tokens.
type Repository interface {
	// Create stores a newly issued token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a token by its opaque value and returns its metadata,
	// revoked or not. Returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke sets revoked_at on the matching non-revoked row owned by
	// userID. Revoking an unknown or already-revoked token is a no-op.
	Revoke(ctx context.Context, token string, userID string) error

	// RevokeAllForUser revokes every active token of the user. Idempotent.
	RevokeAllForUser(ctx context.Context, userID string) error
}

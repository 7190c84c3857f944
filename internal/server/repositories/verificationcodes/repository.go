// Package verificationcodes declares the storage contract for one-time
// email verification codes.
package verificationcodes

import (
	"context"
	"time"

	"github.com/relativit/relativit/internal/server/models"
)

// Repository defines operations over verification code rows.
type Repository interface {
	// DeleteForEmail removes all codes for the (email, purpose) pair so at
	// most one unused, unexpired code exists per pair.
	DeleteForEmail(ctx context.Context, email string, purpose string) error

	// Create inserts a freshly issued code row.
	Create(ctx context.Context, code *models.VerificationCode) error

	// Consume marks the matching unused, unexpired code as used in a single
	// statement, guaranteeing one-time consumption. Returns
	// common.ErrorNotFound when no such row exists.
	Consume(ctx context.Context, email string, code string) error

	// HasRecentlyUsed reports whether a code for the email was consumed
	// within the given window. Gates registration after verification.
	HasRecentlyUsed(ctx context.Context, email string, window time.Duration) (bool, error)
}

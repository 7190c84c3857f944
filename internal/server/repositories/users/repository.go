// Package users declares the storage contract for account records.
package users

import (
	"context"

	"github.com/relativit/relativit/internal/server/models"
)

// Repository defines operations over user rows. Implementations return
// common.ErrorNotFound when a row is absent.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	UpdateLastLogin(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, name, avatar *string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error

	// SetAPICredential replaces the stored (provider, ciphertext, iv) triple.
	SetAPICredential(ctx context.Context, id, provider, ciphertext, iv string) error
	// ClearAPICredential removes all three credential fields in one statement.
	ClearAPICredential(ctx context.Context, id string) error

	// EnableTrialMode grants the starting balance exactly once. It reports
	// enabled=false when trial mode was already on, leaving the balance
	// untouched.
	EnableTrialMode(ctx context.Context, id string, credits float64) (enabled bool, err error)

	// DebitTrialCredits atomically decrements the balance by amount, clamped
	// at zero, guarded by a positive-balance predicate. It returns the
	// remaining balance, or common.ErrTrialCreditsExhausted when the balance
	// was already spent.
	DebitTrialCredits(ctx context.Context, id string, amount float64) (remaining float64, err error)
}

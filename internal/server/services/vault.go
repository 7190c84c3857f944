package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/cryptox"
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/audit"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
)

// validProviders is the closed set of providers a credential may belong to.
var validProviders = map[string]struct{}{
	"anthropic": {},
	"openai":    {},
	"gemini":    {},
}

// KeyStatus describes the user's credential configuration without exposing
// any key material.
type KeyStatus struct {
	HasAPIKey      bool
	Provider       string
	UseTrialMode   bool
	TrialCredits   float64
	TrialStartedAt *time.Time
}

// TrialStatus is the outcome of EnableTrialMode.
type TrialStatus struct {
	TrialCredits   float64
	TrialStartedAt *time.Time
	AlreadyEnabled bool
}

// VaultService stores a user's third-party API key under authenticated
// encryption and manages trial mode. Plaintext keys exist only transiently
// in memory; the vault never persists or logs them.
type VaultService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	encryptionKey string
	trialCredits  float64
	audit         *audit.Writer
	logger        logging.Logger
}

// NewVaultService constructs a VaultService. encryptionKey is the operator
// secret the at-rest AES key is derived from; trialCredits is the one-time
// starting balance.
func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, encryptionKey string, trialCredits float64, a *audit.Writer, l logging.Logger) *VaultService {
	return &VaultService{
		db:            db,
		repomanager:   m,
		encryptionKey: encryptionKey,
		trialCredits:  trialCredits,
		audit:         a,
		logger:        l.With("module", "vault"),
	}
}

// SaveAPIKey encrypts and stores the user's provider key, replacing any
// prior value. The key is not validated against the provider here; that is
// an optional pre-check the caller may run first.
func (s *VaultService) SaveAPIKey(ctx context.Context, userID, provider, apiKey string) error {
	if _, ok := validProviders[provider]; !ok {
		return common.ErrInvalidProvider
	}
	if apiKey == "" {
		return fmt.Errorf("%w: api key is required", common.ErrorValidation)
	}

	ciphertext, iv, err := cryptox.Encrypt(apiKey, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypting api key: %w", err)
	}

	if err := s.repomanager.Users(s.db).SetAPICredential(ctx, userID, provider, ciphertext, iv); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, "api_key_update", "user", userID,
		map[string]any{"provider": provider}, "", "")
	return nil
}

// DecryptedKey returns the user's provider and plaintext key for the
// duration of one outbound call. A missing credential is
// common.ErrCredentialNotConfigured; a credential that no longer
// authenticates (secret rotated underneath stored data) surfaces as
// common.ErrDecryptionFailed and is never swallowed.
func (s *VaultService) DecryptedKey(ctx context.Context, userID string) (provider, apiKey string, err error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if !user.HasAPIKey() {
		return "", "", common.ErrCredentialNotConfigured
	}

	apiKey, err = cryptox.Decrypt(user.APIKeyEncrypted, user.APIKeyIV, s.encryptionKey)
	if err != nil {
		if errors.Is(err, common.ErrDecryptionFailed) {
			s.logger.Error(ctx, "stored credential failed authentication", "user_id", userID)
		}
		return "", "", err
	}
	return user.APIProvider, apiKey, nil
}

// RemoveAPIKey clears the stored credential triple atomically.
func (s *VaultService) RemoveAPIKey(ctx context.Context, userID string) error {
	if err := s.repomanager.Users(s.db).ClearAPICredential(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, "api_key_remove", "user", userID, nil, "", "")
	return nil
}

// Status reports the credential and trial configuration.
func (s *VaultService) Status(ctx context.Context, userID string) (*KeyStatus, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &KeyStatus{
		HasAPIKey:      user.HasAPIKey(),
		Provider:       user.APIProvider,
		UseTrialMode:   user.UseTrialMode,
		TrialCredits:   user.TrialCredits,
		TrialStartedAt: user.TrialStartedAt,
	}, nil
}

// EnableTrialMode grants the starting balance exactly once. Calling it again
// reports AlreadyEnabled with the balance unchanged.
func (s *VaultService) EnableTrialMode(ctx context.Context, userID string) (*TrialStatus, error) {
	users := s.repomanager.Users(s.db)

	enabled, err := users.EnableTrialMode(ctx, userID, s.trialCredits)
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return &TrialStatus{
			TrialCredits:   user.TrialCredits,
			TrialStartedAt: user.TrialStartedAt,
			AlreadyEnabled: true,
		}, nil
	}

	s.audit.Record(ctx, userID, "trial_mode_enabled", "user", userID,
		map[string]any{"credits": s.trialCredits}, "", "")
	return &TrialStatus{
		TrialCredits:   user.TrialCredits,
		TrialStartedAt: user.TrialStartedAt,
	}, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/cryptox"
	"github.com/relativit/relativit/internal/dbx"
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/email"
	"github.com/relativit/relativit/internal/server/models"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
)

const (
	codeValidity = 10 * time.Minute

	// registrationWindow is how long after consuming a code the email still
	// counts as verified for completing registration.
	registrationWindow = 15 * time.Minute
)

// VerificationService drives the one-time-code state machine per
// (email, purpose): none -> issued -> verified | expired.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	generator   cryptox.CodeGenerator
	sender      email.Sender
	logger      logging.Logger
}

// NewVerificationService constructs a VerificationService. The code
// generator is injected so the fixed demo generator is an explicit wiring
// decision, never an implicit environment check.
func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, g cryptox.CodeGenerator, s email.Sender, l logging.Logger) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		generator:   g,
		sender:      s,
		logger:      l.With("module", "verification"),
	}
}

// NormalizeEmail lowercases and trims an email address. All storage and
// lookups use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestCode issues a fresh code for the (email, purpose) pair, replacing
// any prior unused code, and hands it to the email collaborator. It reports
// whether the email already belongs to a registered user so the caller can
// drive the login-vs-signup flow.
func (s *VerificationService) RequestCode(ctx context.Context, emailAddr string, purpose string) (userExists bool, err error) {
	normalized := NormalizeEmail(emailAddr)

	_, err = s.repomanager.Users(s.db).GetByEmail(ctx, normalized)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return false, fmt.Errorf("looking up user: %w", err)
	}
	userExists = err == nil

	code, err := s.generator.GenerateCode()
	if err != nil {
		return false, fmt.Errorf("generating code: %w", err)
	}

	// Delete-then-insert inside one transaction keeps the invariant of at
	// most one live code per (email, purpose).
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.VerificationCodes(tx)
		if err := repo.DeleteForEmail(ctx, normalized, purpose); err != nil {
			return err
		}
		return repo.Create(ctx, &models.VerificationCode{
			Email:     normalized,
			Code:      code,
			Purpose:   purpose,
			ExpiresAt: time.Now().Add(codeValidity),
		})
	})
	if err != nil {
		return false, err
	}

	// Delivery failure is the collaborator's problem; the code row is
	// already durable and the caller may retry.
	if _, err := s.sender.Send(ctx, normalized, email.VerificationSubject(purpose), email.VerificationBody(code)); err != nil {
		s.logger.Warn(ctx, "verification email delivery failed", "email", normalized, "error", err.Error())
	}

	return userExists, nil
}

// Verify consumes the code for the email. Consumption is one-time: a second
// call with the same code fails with common.ErrInvalidOrExpiredCode.
func (s *VerificationService) Verify(ctx context.Context, emailAddr string, code string) error {
	normalized := NormalizeEmail(emailAddr)
	err := s.repomanager.VerificationCodes(s.db).Consume(ctx, normalized, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("consuming code: %w", err)
	}
	return nil
}

// RecentlyVerified reports whether the email consumed a code within the
// registration window.
func (s *VerificationService) RecentlyVerified(ctx context.Context, emailAddr string) (bool, error) {
	normalized := NormalizeEmail(emailAddr)
	return s.repomanager.VerificationCodes(s.db).HasRecentlyUsed(ctx, normalized, registrationWindow)
}

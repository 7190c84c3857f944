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
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/audit"
	"github.com/relativit/relativit/internal/server/email"
	"github.com/relativit/relativit/internal/server/models"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// RequestMeta carries per-request metadata recorded with tokens and audit
// entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// VerifyCodeResult is the outcome of a successful code verification: either
// an authenticated existing user with a token pair, or a verified email that
// may proceed to registration.
type VerifyCodeResult struct {
	Status string // "existing_user" or "new_user"
	Email  string
	Tokens *TokenPair
	User   *models.User
}

// AuthService is the session orchestrator. It composes the verification
// code store, the token service, and user record lookups to drive the
// login, registration, refresh, and logout flows.
type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	verification *VerificationService
	tokens       *TokenService
	audit        *audit.Writer
	sender       email.Sender
	logger       logging.Logger
}

// NewAuthService constructs the orchestrator from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, v *VerificationService, t *TokenService, a *audit.Writer, s email.Sender, l logging.Logger) *AuthService {
	return &AuthService{
		db:           db,
		repomanager:  m,
		verification: v,
		tokens:       t,
		audit:        a,
		sender:       s,
		logger:       l.With("module", "auth"),
	}
}

// RequestCode starts the email flow for login or signup.
func (s *AuthService) RequestCode(ctx context.Context, emailAddr string, purpose string) (userExists bool, err error) {
	if purpose != common.CodePurposeLogin && purpose != common.CodePurposeSignup {
		purpose = common.CodePurposeLogin
	}
	return s.verification.RequestCode(ctx, emailAddr, purpose)
}

// VerifyCode consumes the code and either authenticates an existing account
// or clears the email for registration.
func (s *AuthService) VerifyCode(ctx context.Context, emailAddr, code string, meta RequestMeta) (*VerifyCodeResult, error) {
	normalized := NormalizeEmail(emailAddr)

	if err := s.verification.Verify(ctx, normalized, code); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &VerifyCodeResult{Status: "new_user", Email: normalized}, nil
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	pair, err := s.tokens.IssuePair(ctx, user, meta.IPAddress, meta.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Users(s.db).UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn(ctx, "updating last login failed", "error", err.Error())
	}
	s.audit.Record(ctx, user.ID, "login", "user", user.ID,
		map[string]any{"method": "verification_code"}, meta.IPAddress, meta.UserAgent)

	return &VerifyCodeResult{Status: "existing_user", Email: normalized, Tokens: pair, User: user}, nil
}

// Register completes signup for an email that was verified recently.
func (s *AuthService) Register(ctx context.Context, emailAddr, name, password string, meta RequestMeta) (*TokenPair, *models.User, error) {
	normalized := NormalizeEmail(emailAddr)

	verified, err := s.verification.RecentlyVerified(ctx, normalized)
	if err != nil {
		return nil, nil, err
	}
	if !verified {
		return nil, nil, common.ErrEmailNotVerified
	}

	users := s.repomanager.Users(s.db)
	if _, err := users.GetByEmail(ctx, normalized); err == nil {
		return nil, nil, common.ErrEmailAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}

	if len(password) < minPasswordLength {
		return nil, nil, common.ErrPasswordTooShort
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := users.Create(ctx, &models.User{
		Email:           normalized,
		Name:            strings.TrimSpace(name),
		PasswordHash:    hash,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		LastLoginAt:     &now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating user: %w", err)
	}

	pair, err := s.tokens.IssuePair(ctx, user, meta.IPAddress, meta.UserAgent)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.sender.Send(ctx, normalized, email.WelcomeSubject(), email.WelcomeBody(user.Name)); err != nil {
		s.logger.Warn(ctx, "welcome email delivery failed", "error", err.Error())
	}
	s.audit.Record(ctx, user.ID, "register", "user", user.ID, nil, meta.IPAddress, meta.UserAgent)

	return pair, user, nil
}

// Login authenticates with email and password. Unknown email and wrong
// password produce the same error so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string, meta RequestMeta) (*TokenPair, *models.User, error) {
	normalized := NormalizeEmail(emailAddr)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}
	if user.PasswordHash == "" || !cryptox.VerifyPassword(password, user.PasswordHash) {
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user, meta.IPAddress, meta.UserAgent)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repomanager.Users(s.db).UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn(ctx, "updating last login failed", "error", err.Error())
	}
	s.audit.Record(ctx, user.ID, "login", "user", user.ID,
		map[string]any{"method": "password"}, meta.IPAddress, meta.UserAgent)

	return pair, user, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, *models.User, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes one refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID string, meta RequestMeta) error {
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken, userID); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, userID, "logout", "user", userID, nil, meta.IPAddress, meta.UserAgent)
	return nil
}

// LogoutAll revokes every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string, meta RequestMeta) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, "logout_all", "user", userID, nil, meta.IPAddress, meta.UserAgent)
	return nil
}

// CurrentUser loads the account record for an authenticated user id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UpdateProfile changes the user's display fields. Nil means "leave as is".
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, name, avatar *string) (*models.User, error) {
	return s.repomanager.Users(s.db).UpdateProfile(ctx, userID, name, avatar)
}

// ChangePassword verifies the current password, stores a new hash, and
// revokes every session so stolen refresh tokens die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta RequestMeta) error {
	users := s.repomanager.Users(s.db)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || !cryptox.VerifyPassword(currentPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return common.ErrPasswordTooShort
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, "password_change", "user", userID, nil, meta.IPAddress, meta.UserAgent)
	return nil
}

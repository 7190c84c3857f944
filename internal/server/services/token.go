// Package services contains the server-side business logic: the token
// service, the verification-code store, the session orchestrator, the
// credential vault, and the metered AI proxy router.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/cryptox"
	"github.com/relativit/relativit/internal/server/auth"
	"github.com/relativit/relativit/internal/server/config"
	"github.com/relativit/relativit/internal/server/models"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
)

// refreshTokenBytes is the entropy of an opaque refresh token value; the
// stored string is twice as long in hex.
const refreshTokenBytes = 64

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues signed access tokens, persists opaque refresh tokens,
// and verifies, refreshes, and revokes both.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewTokenService constructs a TokenService using repositories and server
// config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.JWTSecret),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// IssuePair mints an access token for the user and persists a fresh refresh
// token carrying the request metadata.
func (s *TokenService) IssuePair(ctx context.Context, user *models.User, ipAddress, userAgent string) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	refresh, err := cryptox.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	repo := s.repomanager.RefreshTokens(s.db)
	err = repo.Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(s.refreshTokenValidityDuration),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks an access token and returns its claims. Failures are
// common.ErrTokenExpired or common.ErrTokenInvalid.
func (s *TokenService) VerifyAccess(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated; its row is untouched.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, *models.User, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrRefreshTokenNotFound
		}
		return "", nil, fmt.Errorf("searching refresh token: %w", err)
	}
	if token.RevokedAt != nil {
		return "", nil, common.ErrRefreshTokenRevoked
	}
	if token.ExpiresAt.Before(time.Now()) {
		return "", nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("loading token owner: %w", err)
	}

	access, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", nil, fmt.Errorf("generating access token: %w", err)
	}
	return access, user, nil
}

// Revoke marks the user's refresh token revoked. Revoking an unknown or
// already-revoked token is a no-op, not an error.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string, userID string) error {
	return s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken, userID)
}

// RevokeAll revokes every active refresh token of the user. Idempotent.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID)
}

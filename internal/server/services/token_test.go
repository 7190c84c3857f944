package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/server/config"
	"github.com/relativit/relativit/internal/server/models"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "test-secret"
	cfg.AccessTokenValidityDuration = time.Minute
	cfg.RefreshTokenValidityDuration = time.Hour
	return cfg
}

func TestIssuePair(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com"})

	s := NewTokenService(db, rm, testConfig())

	pair, err := s.IssuePair(context.Background(), user, "10.0.0.1", "curl")
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatalf("empty access token")
	}
	if len(pair.RefreshToken) != refreshTokenBytes*2 {
		t.Fatalf("refresh token length = %d, want %d", len(pair.RefreshToken), refreshTokenBytes*2)
	}

	claims, err := s.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess error: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	stored, err := rm.refresh.Find(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token not stored: %v", err)
	}
	if stored.UserID != user.ID || stored.IPAddress != "10.0.0.1" || stored.UserAgent != "curl" {
		t.Fatalf("unexpected stored token: %+v", stored)
	}
}

func TestRefresh_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com"})
	rm.refresh.tokens["r-1"] = &models.RefreshToken{
		UserID:    user.ID,
		Token:     "r-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	s := NewTokenService(db, rm, testConfig())

	access, got, err := s.Refresh(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if access == "" || got.ID != user.ID {
		t.Fatalf("unexpected refresh result: %q %+v", access, got)
	}

	// The refresh token row is untouched; no rotation.
	if _, err := rm.refresh.Find(context.Background(), "r-1"); err != nil {
		t.Fatalf("refresh token rotated away: %v", err)
	}
}

func TestRefresh_NotFound(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewTokenService(db, newFakeRepoManager(), testConfig())

	_, _, err := s.Refresh(context.Background(), "ghost")
	if !errors.Is(err, common.ErrRefreshTokenNotFound) {
		t.Fatalf("want ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestRefresh_Revoked(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	now := time.Now()
	rm.refresh.tokens["r-1"] = &models.RefreshToken{
		UserID:    "u-1",
		Token:     "r-1",
		ExpiresAt: time.Now().Add(time.Hour),
		RevokedAt: &now,
	}

	s := NewTokenService(db, rm, testConfig())

	_, _, err := s.Refresh(context.Background(), "r-1")
	if !errors.Is(err, common.ErrRefreshTokenRevoked) {
		t.Fatalf("want ErrRefreshTokenRevoked, got %v", err)
	}
}

func TestRefresh_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.refresh.tokens["r-1"] = &models.RefreshToken{
		UserID:    "u-1",
		Token:     "r-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	s := NewTokenService(db, rm, testConfig())

	_, _, err := s.Refresh(context.Background(), "r-1")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.refresh.tokens["r-1"] = &models.RefreshToken{
		UserID:    "u-1",
		Token:     "r-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	s := NewTokenService(db, rm, testConfig())

	if err := s.Revoke(context.Background(), "r-1", "u-1"); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if err := s.Revoke(context.Background(), "r-1", "u-1"); err != nil {
		t.Fatalf("second Revoke error: %v", err)
	}
	if err := s.Revoke(context.Background(), "unknown", "u-1"); err != nil {
		t.Fatalf("Revoke of unknown token error: %v", err)
	}

	_, _, err := s.Refresh(context.Background(), "r-1")
	if !errors.Is(err, common.ErrRefreshTokenRevoked) {
		t.Fatalf("token usable after revoke: %v", err)
	}
}

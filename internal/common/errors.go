// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors. Messages wrapped around ErrorValidation are safe
	// to show to the caller.
	ErrorValidation       = errors.New("validation error")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrEmailAlreadyExists = errors.New("an account with this email already exists")
	ErrEmailNotVerified   = errors.New("email not verified")

	// Auth errors. Kept generic to avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenExpired       = errors.New("access token expired")
	ErrTokenInvalid       = errors.New("invalid access token")

	// Refresh token lifecycle errors.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")

	// Verification code errors.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")

	// Credential vault / trial errors.
	ErrCredentialNotConfigured = errors.New("api key not configured")
	ErrTrialKeyNotConfigured   = errors.New("trial mode is enabled but the shared api key is not configured")
	ErrTrialCreditsExhausted   = errors.New("trial credits exhausted")
	ErrDecryptionFailed        = errors.New("decryption failed")

	// Upstream provider failure. The raw provider message is wrapped around
	// this sentinel.
	ErrUpstreamProvider = errors.New("upstream provider error")
)

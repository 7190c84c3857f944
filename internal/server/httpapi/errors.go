package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/relativit/relativit/internal/common"
)

// errorResponse is the uniform error body. Code is a stable machine-readable
// discriminator; clients switch on it, not on the message.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError is the single error boundary: it maps the sentinel
// taxonomy onto status codes and production-safe messages, and keeps the
// internal detail for the operator log only.
func (h *Handlers) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrInvalidProvider),
		errors.Is(err, common.ErrPasswordTooShort),
		errors.Is(err, common.ErrEmailAlreadyExists),
		errors.Is(err, common.ErrEmailNotVerified),
		errors.Is(err, common.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusBadRequest, err.Error(), "")

	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, common.ErrInvalidCredentials.Error(), "")

	case errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "Access token expired", "TOKEN_EXPIRED")

	case errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrRefreshTokenNotFound),
		errors.Is(err, common.ErrRefreshTokenRevoked),
		errors.Is(err, common.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, "invalid or expired token", "")

	// Absent and not-owned resources produce the same response so existence
	// cannot be probed.
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found", "")

	case errors.Is(err, common.ErrCredentialNotConfigured),
		errors.Is(err, common.ErrTrialKeyNotConfigured):
		writeError(w, http.StatusBadRequest, err.Error(), "API_KEY_ERROR")

	case errors.Is(err, common.ErrTrialCreditsExhausted):
		writeError(w, http.StatusPaymentRequired,
			"Trial credits exhausted. Please add your own API key to continue.", "CREDITS_EXHAUSTED")

	case errors.Is(err, common.ErrUpstreamProvider):
		h.logger.Error(ctx, "upstream provider failure", "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error(), "AI_ERROR")

	case errors.Is(err, common.ErrDecryptionFailed):
		// Data-integrity failure: always logged, never silently ignored.
		h.logger.Error(ctx, "credential decryption failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "stored credential could not be read", "API_KEY_ERROR")

	default:
		h.logger.Error(ctx, "unhandled error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

// Package httpapi is the thin HTTP surface over the session and credential
// engine: request decoding, bearer-token middleware, and the single error
// boundary. All behavior lives in the services it delegates to.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/models"
	"github.com/relativit/relativit/internal/server/services"
)

// Handlers bundles the services the HTTP layer delegates to.
type Handlers struct {
	auth   *services.AuthService
	tokens *services.TokenService
	vault  *services.VaultService
	ai     *services.AIService
	logger logging.Logger
}

// NewHandlers constructs the handler set.
func NewHandlers(auth *services.AuthService, tokens *services.TokenService, vault *services.VaultService, ai *services.AIService, l logging.Logger) *Handlers {
	return &Handlers{
		auth:   auth,
		tokens: tokens,
		vault:  vault,
		ai:     ai,
		logger: l.With("module", "httpapi"),
	}
}

// userResponse is the sanitized account shape returned to clients. It never
// carries the password hash or any credential material.
type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	HasAPIKey     bool       `json:"hasApiKey"`
	APIProvider   string     `json:"apiProvider,omitempty"`
	UseTrialMode  bool       `json:"useTrialMode"`
	TrialCredits  float64    `json:"trialCredits"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

func sanitizeUser(u *models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		HasAPIKey:     u.HasAPIKey() || u.UseTrialMode,
		APIProvider:   u.APIProvider,
		UseTrialMode:  u.UseTrialMode,
		TrialCredits:  u.TrialCredits,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// decodeBody reads a JSON request body. A failure here is always the
// client's fault, so it answers 400 directly and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return false
	}
	return true
}

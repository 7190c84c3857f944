package httpapi

import "net/http"

type saveKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

func (h *Handlers) handleSaveAPIKey(w http.ResponseWriter, r *http.Request) {
	var req saveKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.vault.SaveAPIKey(r.Context(), UserID(r.Context()), req.Provider, req.APIKey); err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) handleValidateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req saveKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	valid, message := h.ai.ValidateKey(r.Context(), req.Provider, req.APIKey)
	resp := map[string]any{"valid": valid}
	if message != "" {
		resp["error"] = message
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.vault.Status(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasApiKey":      status.HasAPIKey,
		"provider":       status.Provider,
		"useTrialMode":   status.UseTrialMode,
		"trialCredits":   status.TrialCredits,
		"trialStartedAt": status.TrialStartedAt,
	})
}

func (h *Handlers) handleRemoveAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.RemoveAPIKey(r.Context(), UserID(r.Context())); err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) handleEnableTrialMode(w http.ResponseWriter, r *http.Request) {
	status, err := h.vault.EnableTrialMode(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"trialCredits":   status.TrialCredits,
		"trialStartedAt": status.TrialStartedAt,
		"alreadyEnabled": status.AlreadyEnabled,
	})
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/relativit/relativit/internal/server/ai"
)

// maxUserMessageLength bounds a single user turn.
const maxUserMessageLength = 1000

type chatRequest struct {
	Messages []ai.Message `json:"messages"`
}

func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Messages array is required", "")
		return
	}
	for _, m := range req.Messages {
		if m.Role == "user" && len(m.Content) > maxUserMessageLength {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Message is too long. Maximum %d characters allowed.", maxUserMessageLength), "")
			return
		}
	}

	result, err := h.ai.Chat(r.Context(), UserID(r.Context()), req.Messages)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}

	resp := map[string]any{
		"response": result.Response,
		"model":    result.Model,
		"tokens":   result.Tokens,
	}
	if result.TrialCredits != nil {
		resp["trialCredits"] = *result.TrialCredits
	}
	writeJSON(w, http.StatusOK, resp)
}

type extractIssuesRequest struct {
	Messages    []ai.Message    `json:"messages"`
	CurrentTree json.RawMessage `json:"currentTree"`
}

// handleExtractIssues always answers 200: extraction is best-effort and a
// parse failure degrades to the unmodified input tree.
func (h *Handlers) handleExtractIssues(w http.ResponseWriter, r *http.Request) {
	var req extractIssuesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tree := h.ai.ExtractIssues(r.Context(), UserID(r.Context()), req.Messages, req.CurrentTree)
	if len(tree) == 0 {
		tree = json.RawMessage("{}")
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

// parsePeriodDays reads a "30d"-style period parameter. Anything absent or
// unparseable falls back to 30 days.
func parsePeriodDays(period string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
	if err != nil || n <= 0 {
		return 30
	}
	return n
}

func (h *Handlers) handleUsage(w http.ResponseWriter, r *http.Request) {
	days := parsePeriodDays(r.URL.Query().Get("period"))

	summary, err := h.ai.UsageSummary(r.Context(), UserID(r.Context()), days)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}

	byProvider := make([]map[string]any, 0, len(summary.ByProvider))
	for _, g := range summary.ByProvider {
		byProvider = append(byProvider, map[string]any{
			"provider": g.Provider,
			"endpoint": g.Endpoint,
			"requests": g.Requests,
			"tokens":   g.Tokens,
			"cost":     g.Cost,
		})
	}
	daily := make([]map[string]any, 0, len(summary.Daily))
	for _, d := range summary.Daily {
		daily = append(daily, map[string]any{
			"date":     d.Date.Format("2006-01-02"),
			"requests": d.Requests,
			"tokens":   d.Tokens,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period": summary.Period,
		"summary": map[string]any{
			"totalRequests": summary.Totals.Requests,
			"totalTokens":   summary.Totals.Tokens,
			"estimatedCost": summary.Totals.Cost,
		},
		"byProvider": byProvider,
		"daily":      daily,
	})
}

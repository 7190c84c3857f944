package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/ai"
	"github.com/relativit/relativit/internal/server/config"
	"github.com/relativit/relativit/internal/server/models"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
)

// ChatResult is the outcome of one proxied chat call. TrialCredits is set
// only when the call ran in trial mode, carrying the balance after debit.
type ChatResult struct {
	Response     string
	Model        string
	Tokens       int
	TrialMode    bool
	TrialCredits *float64
}

// credential is a resolved provider key for exactly one outbound call.
// The plaintext never leaves this struct's scope.
type credential struct {
	provider string
	apiKey   string
	trial    bool
}

// AIService is the metered proxy router. It resolves a usable credential
// (the user's vaulted key, or the shared operator key in trial mode),
// dispatches to one provider adapter, computes cost, and atomically debits
// the trial ledger. Every call, success or failure, appends one usage row.
type AIService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	vault         *VaultService
	trialAPIKey   string
	trialProvider string
	unitPrice     float64
	adapterFor    func(provider string) (ai.Adapter, error)
	logger        logging.Logger
}

// NewAIService constructs the router. Outbound calls share one HTTP client
// so provider timeouts are uniform.
func NewAIService(db *sql.DB, m repomanager.RepositoryManager, vault *VaultService, cfg *config.Config, l logging.Logger) *AIService {
	client := &http.Client{Timeout: cfg.ProviderCallTimeout}
	return &AIService{
		db:            db,
		repomanager:   m,
		vault:         vault,
		trialAPIKey:   cfg.TrialAPIKey,
		trialProvider: cfg.TrialAPIProvider,
		unitPrice:     cfg.TrialUnitPrice,
		adapterFor: func(provider string) (ai.Adapter, error) {
			return ai.ForProvider(provider, client)
		},
		logger: l.With("module", "ai"),
	}
}

// resolveCredential picks the key for this call: the shared operator key
// when trial mode is on with a positive balance, otherwise the user's
// vaulted key. A trial user whose balance ran out falls through to their
// own key if they configured one.
func (s *AIService) resolveCredential(ctx context.Context, userID string) (*credential, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.UseTrialMode && user.TrialCredits > 0 {
		if s.trialAPIKey == "" {
			return nil, common.ErrTrialKeyNotConfigured
		}
		provider := s.trialProvider
		if provider == "" {
			provider = "anthropic"
		}
		return &credential{provider: provider, apiKey: s.trialAPIKey, trial: true}, nil
	}

	provider, apiKey, err := s.vault.DecryptedKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &credential{provider: provider, apiKey: apiKey}, nil
}

// normalizeMessages maps the client's role vocabulary onto the canonical
// one ("ai" and "assistant" are the same turn type).
func normalizeMessages(messages []ai.Message) []ai.Message {
	normalized := make([]ai.Message, len(messages))
	for i, m := range messages {
		role := m.Role
		if role == "ai" || role == "assistant" {
			role = "assistant"
		}
		normalized[i] = ai.Message{Role: role, Content: m.Content}
	}
	return normalized
}

// Chat proxies one chat turn. In trial mode the post-call debit is a single
// conditional decrement: a call whose debit finds the balance already spent
// by a concurrent request fails with common.ErrTrialCreditsExhausted rather
// than overdrawing.
func (s *AIService) Chat(ctx context.Context, userID string, messages []ai.Message) (*ChatResult, error) {
	start := time.Now()

	cred, err := s.resolveCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.adapterFor(cred.provider)
	if err != nil {
		return nil, err
	}

	// The upstream call is detached from the request context: a client that
	// disconnects leaves the call to finish so cost accounting stays
	// correct, and the result is logged even if unconsumed.
	result, err := adapter.Chat(context.WithoutCancel(ctx), cred.apiKey, normalizeMessages(messages), ai.Options{SystemPrompt: ai.SystemPrompt})
	if err != nil {
		s.logUsage(ctx, userID, cred.provider, "", "chat", 0, 0, time.Since(start), false, err.Error())
		return nil, fmt.Errorf("%w: %s", common.ErrUpstreamProvider, err.Error())
	}

	estimatedCost := float64(result.TokensUsed) / 1_000_000 * s.unitPrice

	out := &ChatResult{
		Response:  result.Response,
		Model:     result.Model,
		Tokens:    result.TokensUsed,
		TrialMode: cred.trial,
	}

	if cred.trial {
		remaining, err := s.repomanager.Users(s.db).DebitTrialCredits(ctx, userID, estimatedCost)
		if err != nil {
			s.logUsage(ctx, userID, cred.provider, result.Model, "chat", result.TokensUsed, estimatedCost, time.Since(start), false, err.Error())
			return nil, err
		}
		out.TrialCredits = &remaining
	}

	s.logUsage(ctx, userID, cred.provider, result.Model, "chat", result.TokensUsed, estimatedCost, time.Since(start), true, "")
	return out, nil
}

// ExtractIssues asks the model to rebuild the issue tree. It is auxiliary
// to the chat response and deliberately best-effort: exhausted credits,
// upstream failures, and unparseable responses all return the previous tree
// unchanged, never an error.
func (s *AIService) ExtractIssues(ctx context.Context, userID string, messages []ai.Message, currentTree json.RawMessage) json.RawMessage {
	start := time.Now()

	cred, err := s.resolveCredential(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "issue extraction skipped", "error", err.Error())
		return currentTree
	}

	adapter, err := s.adapterFor(cred.provider)
	if err != nil {
		return currentTree
	}

	prompt := buildExtractionPrompt(messages, currentTree)
	result, err := adapter.Chat(context.WithoutCancel(ctx), cred.apiKey,
		[]ai.Message{{Role: "user", Content: prompt}},
		ai.Options{SystemPrompt: ai.JSONOnlySystemPrompt})
	if err != nil {
		s.logUsage(ctx, userID, cred.provider, "", "extract_issues", 0, 0, time.Since(start), false, err.Error())
		return currentTree
	}

	cost := float64(result.TokensUsed) / 1_000_000 * s.unitPrice

	block, ok := ai.ExtractJSONBlock(result.Response)
	if !ok || !json.Valid([]byte(block)) {
		s.logUsage(ctx, userID, cred.provider, result.Model, "extract_issues", result.TokensUsed, cost, time.Since(start), false, "no valid json in response")
		return currentTree
	}

	if cred.trial {
		if _, err := s.repomanager.Users(s.db).DebitTrialCredits(ctx, userID, cost); err != nil {
			s.logger.Warn(ctx, "trial debit after extraction failed", "error", err.Error())
		}
	}

	s.logUsage(ctx, userID, cred.provider, result.Model, "extract_issues", result.TokensUsed, cost, time.Since(start), true, "")
	return json.RawMessage(block)
}

// UsageSummary is the ledger rolled up over a period: grand totals, a
// per-provider/endpoint breakdown, and per-day request counts.
type UsageSummary struct {
	Period     string
	Totals     models.UsageTotals
	ByProvider []models.UsageGroup
	Daily      []models.UsageDay
}

// UsageSummary aggregates the caller's usage rows over the last days days.
// Non-positive days falls back to 30.
func (s *AIService) UsageSummary(ctx context.Context, userID string, days int) (*UsageSummary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	repo := s.repomanager.APIUsage(s.db)

	totals, err := repo.TotalsForUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	groups, err := repo.GroupedForUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	daily, err := repo.DailyForUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	return &UsageSummary{
		Period:     fmt.Sprintf("%dd", days),
		Totals:     *totals,
		ByProvider: groups,
		Daily:      daily,
	}, nil
}

// ValidateKey probes a provider with a one-token request. It never returns
// an error; an invalid key is a result, not a failure.
func (s *AIService) ValidateKey(ctx context.Context, provider, apiKey string) (valid bool, message string) {
	adapter, err := s.adapterFor(provider)
	if err != nil {
		return false, err.Error()
	}
	_, err = adapter.Chat(ctx, apiKey,
		[]ai.Message{{Role: "user", Content: `Hello, respond with just "OK".`}},
		ai.Options{MaxTokens: 10})
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}

func buildExtractionPrompt(messages []ai.Message, currentTree json.RawMessage) string {
	var b strings.Builder
	b.WriteString(ai.IssueExtractionPrompt)
	b.WriteString("\n\nConversation:\n")
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	b.WriteString("\n\nCurrent issue tree:\n")
	if len(currentTree) > 0 {
		b.Write(currentTree)
	} else {
		b.WriteString("{}")
	}
	b.WriteString("\n\nReturn the updated issue tree as JSON:")
	return b.String()
}

// logUsage appends one usage row. Failures are logged and swallowed so
// accounting noise never fails the caller's request.
func (s *AIService) logUsage(ctx context.Context, userID, provider, model, endpoint string, tokens int, cost float64, duration time.Duration, success bool, errText string) {
	usage := &models.APIUsage{
		UserID:   userID,
		Provider: provider,
		Model:    model,
		Endpoint: endpoint,
		Tokens:   tokens,
		Cost:     cost,
		Duration: duration,
		Success:  success,
		Error:    errText,
	}
	if err := s.repomanager.APIUsage(s.db).Append(ctx, usage); err != nil {
		s.logger.Error(ctx, "usage log append failed", "endpoint", endpoint, "error", err.Error())
	}
}

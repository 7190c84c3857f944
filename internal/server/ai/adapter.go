// Package ai contains the provider adapters the metered proxy router
// dispatches to. Adapters are a closed set of variants behind one contract:
// each maps the canonical message list into its provider's wire format and
// extracts the response text plus token usage. Adding a provider means
// adding one variant here, not touching any call site.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/relativit/relativit/internal/common"
)

// Message is the canonical chat turn shape shared by every adapter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune one outbound call.
type Options struct {
	SystemPrompt string
	MaxTokens    int
}

// Result is the canonical response shape.
type Result struct {
	Response   string
	Model      string
	TokensUsed int
}

// Adapter is the capability contract every provider variant implements:
// send one chat turn and report token usage.
type Adapter interface {
	Provider() string
	Chat(ctx context.Context, apiKey string, messages []Message, opts Options) (*Result, error)
}

const defaultMaxTokens = 4096

// ForProvider selects the adapter variant by provider name. The client is
// shared so adapters inherit its timeouts.
func ForProvider(name string, client *http.Client) (Adapter, error) {
	if client == nil {
		client = http.DefaultClient
	}
	switch name {
	case "anthropic":
		return &AnthropicAdapter{client: client}, nil
	case "openai":
		return &OpenAIAdapter{client: client}, nil
	case "gemini":
		return &GeminiAdapter{client: client}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrInvalidProvider, name)
	}
}

// postJSON runs one JSON POST and decodes the body into out. Non-2xx
// responses and provider-reported errors are the caller's concern; this only
// fails on transport and decoding problems.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding provider response (status %s): %w", resp.Status, err)
	}
	return nil
}

type providerError struct {
	Message string `json:"message"`
}

func (e *providerError) ToError(provider string) error {
	if e == nil || e.Message == "" {
		return nil
	}
	return fmt.Errorf("%s: %s", provider, e.Message)
}

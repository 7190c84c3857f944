package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
)

// AnthropicAdapter speaks the Anthropic Messages API.
type AnthropicAdapter struct {
	client  *http.Client
	baseURL string
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *providerError `json:"error"`
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }

func (a *AnthropicAdapter) Chat(ctx context.Context, apiKey string, messages []Message, opts Options) (*Result, error) {
	url := a.baseURL
	if url == "" {
		url = anthropicURL
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	payload := anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		System:    opts.SystemPrompt,
		Messages:  messages,
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, a.client, url, headers, payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Error.ToError("anthropic"); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("anthropic: empty response content")
	}

	return &Result{
		Response:   resp.Content[0].Text,
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

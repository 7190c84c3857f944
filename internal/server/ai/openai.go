package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	openAIURL   = "https://api.openai.com/v1/chat/completions"
	openAIModel = "gpt-4o"
)

// OpenAIAdapter speaks the OpenAI chat completions API. The system prompt
// travels as the leading message rather than a dedicated field.
type OpenAIAdapter struct {
	client  *http.Client
	baseURL string
}

type openAIRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *providerError `json:"error"`
}

func (a *OpenAIAdapter) Provider() string { return "openai" }

func (a *OpenAIAdapter) Chat(ctx context.Context, apiKey string, messages []Message, opts Options) (*Result, error) {
	url := a.baseURL
	if url == "" {
		url = openAIURL
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	all := make([]Message, 0, len(messages)+1)
	if opts.SystemPrompt != "" {
		all = append(all, Message{Role: "system", Content: opts.SystemPrompt})
	}
	all = append(all, messages...)

	payload := openAIRequest{Model: openAIModel, MaxTokens: maxTokens, Messages: all}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var resp openAIResponse
	if err := postJSON(ctx, a.client, url, headers, payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Error.ToError("openai"); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	return &Result{
		Response:   resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	geminiURLTemplate = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent?key="
	geminiModel       = "gemini-1.5-flash"
)

// GeminiAdapter speaks the Gemini generateContent API. Gemini has no system
// role, so the system prompt is injected as a leading user/model exchange,
// and assistant turns are renamed to "model".
type GeminiAdapter struct {
	client  *http.Client
	baseURL string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *providerError `json:"error"`
}

func (a *GeminiAdapter) Provider() string { return "gemini" }

func (a *GeminiAdapter) Chat(ctx context.Context, apiKey string, messages []Message, opts Options) (*Result, error) {
	url := a.baseURL
	if url == "" {
		url = geminiURLTemplate
	}
	url += apiKey

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	contents := make([]geminiContent, 0, len(messages)+2)
	if opts.SystemPrompt != "" {
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: opts.SystemPrompt}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: "Understood. I will follow these instructions."}}},
		)
	}
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	payload := geminiRequest{Contents: contents}
	payload.GenerationConfig.MaxOutputTokens = maxTokens

	var resp geminiResponse
	if err := postJSON(ctx, a.client, url, nil, payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.Error.ToError("gemini"); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini: empty candidates")
	}

	return &Result{
		Response:   resp.Candidates[0].Content.Parts[0].Text,
		Model:      geminiModel,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
	}, nil
}

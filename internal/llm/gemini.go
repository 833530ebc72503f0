package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiModel calls Google's Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, cfg Config) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: cfg.Model}, nil
}

func (m *GeminiModel) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && retryableStatus(apiErr.Code) {
			return "", &RetryableError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

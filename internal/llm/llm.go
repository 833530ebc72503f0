// Package llm exposes text-in/text-out language model providers behind a
// single Model interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrUnsupportedProvider is returned by New for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

// Model turns a prompt into a completion.
type Model interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RPM        int
}

// DefaultModels holds the model used when Config.Model is empty.
var DefaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderGroq:      "openai/gpt-oss-120b",
	ProviderAnthropic: "claude-sonnet-4-20250514",
}

const groqBaseURL = "https://api.groq.com/openai/v1"

// New builds the configured provider and wraps it with throttling, retries
// and latency recording. stats may be nil.
func New(ctx context.Context, cfg Config, stats *Stats, log *slog.Logger) (Model, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = DefaultModels[provider]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var (
		base Model
		err  error
	)
	switch provider {
	case ProviderOpenAI:
		base, err = NewOpenAIModel(cfg)
	case ProviderGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		base, err = NewOpenAIModel(cfg)
	case ProviderGemini:
		base, err = NewGeminiModel(ctx, cfg)
	case ProviderAnthropic:
		base, err = NewAnthropicModel(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", provider, err)
	}

	m := base
	if stats != nil {
		m = Instrument(m, stats)
	}
	m = WithRetry(m, cfg.MaxRetries, log.With("provider", provider))
	if cfg.RPM > 0 {
		m = Throttle(m, cfg.RPM)
	}
	return m, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package embedding turns text into vectors for the knowledge index.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnsupportedProvider is returned by New for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported embedding provider")

// Embedder produces vectors for documents and queries. Implementations must
// use the same model family for both.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config selects an embedding provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
	RPM      int
	// BaseURL overrides the provider endpoint; empty uses the default.
	BaseURL string
}

// DefaultModels holds the model used when Config.Model is empty.
var DefaultModels = map[string]string{
	"openai": "text-embedding-3-small",
	"gemini": "gemini-embedding-001",
}

// New builds the configured embedder.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = DefaultModels[provider]
	}

	var (
		e   Embedder
		err error
	)
	switch provider {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg)
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s embeddings: %w", provider, err)
	}
	return Throttle(e, cfg.RPM), nil
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

type throttled struct {
	next    Embedder
	limiter *rate.Limiter
}

// Throttle limits provider calls to rpm per minute; rpm <= 0 disables it.
func Throttle(next Embedder, rpm int) Embedder {
	if rpm <= 0 {
		return next
	}
	return &throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (t *throttled) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.EmbedDocuments(ctx, texts)
}

func (t *throttled) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.EmbedQuery(ctx, text)
}

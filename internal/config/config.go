package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/llm"
	"github.com/dgallion1/docloop/internal/loop"
)

type Config struct {
	// Providers
	LLMProvider       string
	EmbeddingProvider string
	EmbeddingModel    string

	OpenAIAPIKey    string
	OpenAIModel     string
	GoogleAPIKey    string
	GeminiModel     string
	GroqAPIKey      string
	GroqModel       string
	AnthropicAPIKey string
	AnthropicModel  string

	LLMTimeout    time.Duration
	LLMMaxRetries int
	RateLimitRPM  int

	// Chunking defaults
	ChunkSize    int
	ChunkOverlap int

	// Loop defaults
	AcceptThreshold int
	MaxIters        int
	AcceptPolicy    string

	// PDF
	PDFFallbackPdftotext bool

	// Server
	Port          string
	DocloopAPIKey string
	WorkerCount   int
	MaxQueueSize  int
	JobTTL        time.Duration

	embeddingExplicit bool
}

// Load reads the environment, after pulling in a local .env file if one
// exists. Variables already set in the environment win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		LLMProvider:       strings.ToLower(envOr("LLM_PROVIDER", llm.ProviderGemini)),
		EmbeddingProvider: strings.ToLower(os.Getenv("EMBEDDING_PROVIDER")),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", llm.DefaultModels[llm.ProviderOpenAI]),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", llm.DefaultModels[llm.ProviderGemini]),
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		GroqModel:       envOr("GROQ_MODEL", llm.DefaultModels[llm.ProviderGroq]),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", llm.DefaultModels[llm.ProviderAnthropic]),

		LLMTimeout:    envDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxRetries: envInt("LLM_MAX_RETRIES", llm.DefaultMaxRetries),
		RateLimitRPM:  envInt("RATE_LIMIT_RPM", 0),

		ChunkSize:    envInt("CHUNK_SIZE", 800),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 150),

		AcceptThreshold: envInt("ACCEPT_THRESHOLD", 85),
		MaxIters:        envInt("MAX_ITERS", 3),
		AcceptPolicy:    envOr("ACCEPT_POLICY", string(loop.AcceptByScore)),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		Port:          envOr("PORT", "8090"),
		DocloopAPIKey: os.Getenv("DOCLOOP_API_KEY"),
		WorkerCount:   envInt("WORKER_COUNT", 2),
		MaxQueueSize:  envInt("MAX_QUEUE_SIZE", 20),
		JobTTL:        envDuration("JOB_TTL", 1*time.Hour),
	}

	cfg.embeddingExplicit = cfg.EmbeddingProvider != ""
	if !cfg.embeddingExplicit {
		cfg.EmbeddingProvider = DefaultEmbeddingProvider(cfg.LLMProvider)
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 30 * time.Second
	}
	if cfg.LLMMaxRetries <= 0 {
		cfg.LLMMaxRetries = llm.DefaultMaxRetries
	}
	if cfg.RateLimitRPM < 0 {
		cfg.RateLimitRPM = 0
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// DefaultEmbeddingProvider picks the LLM provider when it also serves
// embeddings, and openai otherwise.
func DefaultEmbeddingProvider(llmProvider string) string {
	if _, ok := embedding.DefaultModels[llmProvider]; ok {
		return llmProvider
	}
	return llm.ProviderOpenAI
}

// WithLLMProvider switches the chat provider. The embedding provider follows
// it unless EMBEDDING_PROVIDER was set.
func (c Config) WithLLMProvider(provider string) Config {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(provider))
	if !c.embeddingExplicit {
		c.EmbeddingProvider = DefaultEmbeddingProvider(c.LLMProvider)
	}
	return c
}

// Validate rejects values the run loop cannot work with.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderGroq, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
	}
	if _, ok := embedding.DefaultModels[c.EmbeddingProvider]; !ok {
		return fmt.Errorf("EMBEDDING_PROVIDER %q is not supported", c.EmbeddingProvider)
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 100 {
		return fmt.Errorf("ACCEPT_THRESHOLD must be between 0 and 100, got %d", c.AcceptThreshold)
	}
	if c.MaxIters < 1 {
		return fmt.Errorf("MAX_ITERS must be at least 1, got %d", c.MaxIters)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if _, err := loop.ParseAcceptPolicy(c.AcceptPolicy); err != nil {
		return fmt.Errorf("ACCEPT_POLICY: %w", err)
	}
	return nil
}

// ValidateServer additionally requires the API key that guards the HTTP
// surface.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DocloopAPIKey == "" {
		return fmt.Errorf("DOCLOOP_API_KEY is required")
	}
	return nil
}

// LLM returns the provider settings for the named chat provider.
func (c Config) LLM(provider string) llm.Config {
	cfg := llm.Config{
		Provider:   provider,
		Timeout:    c.LLMTimeout,
		MaxRetries: c.LLMMaxRetries,
		RPM:        c.RateLimitRPM,
	}
	switch provider {
	case llm.ProviderOpenAI:
		cfg.APIKey, cfg.Model = c.OpenAIAPIKey, c.OpenAIModel
	case llm.ProviderGemini:
		cfg.APIKey, cfg.Model = c.GoogleAPIKey, c.GeminiModel
	case llm.ProviderGroq:
		cfg.APIKey, cfg.Model = c.GroqAPIKey, c.GroqModel
	case llm.ProviderAnthropic:
		cfg.APIKey, cfg.Model = c.AnthropicAPIKey, c.AnthropicModel
	}
	return cfg
}

// Embedding returns the settings for the named embedding provider.
func (c Config) Embedding(provider, model string) embedding.Config {
	cfg := embedding.Config{
		Provider: provider,
		Model:    model,
		Timeout:  c.LLMTimeout,
		RPM:      c.RateLimitRPM,
	}
	switch provider {
	case llm.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
	case llm.ProviderGemini:
		cfg.APIKey = c.GoogleAPIKey
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// DefaultMaxRetries is the attempt budget when none is configured.
const DefaultMaxRetries = 3

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// retryableStatus reports whether an HTTP status signals a transient failure.
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

type retryModel struct {
	next     Model
	attempts int
	backoff  func(int) time.Duration
	log      *slog.Logger
}

// WithRetry retries RetryableError failures up to attempts times in total.
func WithRetry(next Model, attempts int, log *slog.Logger) Model {
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &retryModel{next: next, attempts: attempts, backoff: Backoff, log: log}
}

func (r *retryModel) Invoke(ctx context.Context, prompt string) (string, error) {
	var (
		out     string
		lastErr error
	)
	for attempt := range r.attempts {
		out, lastErr = r.next.Invoke(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if attempt == r.attempts-1 {
			break
		}
		r.log.Warn("retryable llm error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", r.attempts, lastErr)
}

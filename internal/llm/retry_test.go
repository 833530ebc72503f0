package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type reply struct {
	text string
	err  error
}

// scriptedModel returns replies in order and repeats the last one.
type scriptedModel struct {
	replies []reply
	calls   int
}

func (m *scriptedModel) Invoke(ctx context.Context, prompt string) (string, error) {
	i := m.calls
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	m.calls++
	return m.replies[i].text, m.replies[i].err
}

func noBackoff(m Model) Model {
	r := m.(*retryModel)
	r.backoff = func(int) time.Duration { return 0 }
	return r
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&RetryableError{StatusCode: 429}) {
		t.Error("expected RetryableError to be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", &RetryableError{StatusCode: 503})) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
	if IsRetryable(errors.New("bad request")) {
		t.Error("plain error should not be retryable")
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &scriptedModel{replies: []reply{
		{err: &RetryableError{StatusCode: 503}},
		{err: &RetryableError{StatusCode: 429}},
		{text: "done"},
	}}
	m := noBackoff(WithRetry(inner, 3, nil))

	out, err := m.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" || inner.calls != 3 {
		t.Fatalf("expected done after 3 calls, got %q after %d", out, inner.calls)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	inner := &scriptedModel{replies: []reply{{err: &RetryableError{StatusCode: 500}}}}
	m := noBackoff(WithRetry(inner, 3, nil))

	_, err := m.Invoke(context.Background(), "p")
	if !IsRetryable(err) {
		t.Fatalf("expected wrapped retryable error, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	inner := &scriptedModel{replies: []reply{{err: errors.New("invalid key")}}}
	m := noBackoff(WithRetry(inner, 3, nil))

	if _, err := m.Invoke(context.Background(), "p"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", inner.calls)
	}
}

func TestThrottle_ZeroRPMIsPassthrough(t *testing.T) {
	inner := &scriptedModel{replies: []reply{{text: "x"}}}
	if Throttle(inner, 0) != Model(inner) {
		t.Fatal("expected unthrottled model to be returned as-is")
	}
}

func TestThrottle_HonoursContext(t *testing.T) {
	inner := &scriptedModel{replies: []reply{{text: "x"}}}
	m := Throttle(inner, 1)

	if _, err := m.Invoke(context.Background(), "p"); err != nil {
		t.Fatalf("first call should pass the burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Invoke(ctx, "p"); err == nil {
		t.Fatal("expected second call to fail waiting for the limiter")
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 underlying call, got %d", inner.calls)
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "llama"}, nil, nil)
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

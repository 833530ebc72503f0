package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type throttledModel struct {
	next    Model
	limiter *rate.Limiter
}

// Throttle limits calls to rpm requests per minute. The limiter belongs to
// the returned Model, so separate models never share a budget.
func Throttle(next Model, rpm int) Model {
	if rpm <= 0 {
		return next
	}
	return &throttledModel{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (t *throttledModel) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.Invoke(ctx, prompt)
}

package ai

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/littleexplorer/explorer/internal/logger"
)

// RetryPolicy controls how failed remote calls are repeated.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

// DefaultRetryPolicy doubles from one second up to ten, three times at most.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Initial: time.Second, Max: 10 * time.Second}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func withRetry[T any](ctx context.Context, log *logger.Logger, policy RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	backoff := policy.Initial
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		var aiErr *AIError
		if !errors.As(err, &aiErr) || !aiErr.retryable() || attempt >= policy.MaxRetries {
			return zero, err
		}

		sleepFor := backoff
		if aiErr.RetryAfter > 0 {
			sleepFor = aiErr.RetryAfter
		}
		if policy.Max > 0 && sleepFor > policy.Max {
			sleepFor = policy.Max
		}
		sleepFor = jitter(sleepFor)

		log.Warn("AI request retrying",
			"op", op,
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		if err := sleep(ctx, sleepFor); err != nil {
			return zero, err
		}
		backoff *= 2
	}
}

// jitter spreads d by up to 20% either way.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	delta := float64(d) * 0.2
	return time.Duration(float64(d) - delta + rand.Float64()*2*delta)
}

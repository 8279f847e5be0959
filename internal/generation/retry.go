package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Default retry settings used when a RetryPolicy carries invalid values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// RetryPolicy controls exponential backoff for transient completion errors.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy from configuration values.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Backoff returns the delay before the retry that follows attempt (0-based):
// baseDelay * 2^attempt * jitter, with jitter in [0.5, 1.0).
func (p RetryPolicy) Backoff(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rng.Float64()*0.5
	return time.Duration(backoff * jitter)
}

// Do calls fn until it succeeds, returns a non-transient error, or the retry
// budget is exhausted. Only errors matching ErrTransientFailure are retried.
func (p RetryPolicy) Do(
	ctx context.Context,
	logger *slog.Logger,
	fn func(ctx context.Context) (*Response, error),
) (*Response, error) {
	if p.MaxRetries < 0 {
		logger.WarnContext(ctx, "Invalid max retries value, using default", "max_retries", DefaultMaxRetries)
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		resp, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.InfoContext(ctx, "Completion call succeeded after retry", "attempt", attemptNum)
			}
			return resp, nil
		}

		if !IsTransient(err) {
			logger.WarnContext(ctx, "Permanent error occurred, not retrying",
				"attempt", attemptNum,
				"error", err)
			return nil, err
		}

		if attempt >= p.MaxRetries {
			logger.WarnContext(ctx, "Maximum retry attempts reached",
				"max_retries", p.MaxRetries,
				"error", err)
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, p.MaxRetries, err)
		}

		delay := p.Backoff(attempt, rng)
		logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attemptNum,
			"delay_seconds", delay.Seconds(),
			"error", err)

		if err := sleep(ctx, delay); err != nil {
			logger.WarnContext(ctx, "Completion call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", err)
			return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

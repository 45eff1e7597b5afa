package flowerr

import (
	"context"
	"time"
)

// RetryConfig holds backoff settings for retryable operations.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible defaults for collaborator calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (1-based),
// growing geometrically from BackoffBase and capped at MaxBackoff.
func (cfg RetryConfig) Backoff(attempt int) time.Duration {
	wait := cfg.BackoffBase

	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && wait >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}

	return wait
}

// Do runs fn up to cfg.MaxAttempts times, backing off between attempts.
// Non-retryable failures stop immediately. Retry is always bounded
// iteration here, never recursion, so a remediation chain that keeps
// failing converges to a hard failure.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !Retryable(err) || attempt == cfg.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return NewStage(KindNetwork, "retry wait", "", ctx.Err())
		case <-time.After(cfg.Backoff(attempt)):
		}
	}

	return err
}

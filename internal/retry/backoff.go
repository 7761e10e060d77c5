package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"whatsflow/internal/models"
)

type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	Jitter       bool
}

// DefaultBackoffConfig is used for any field FromRetryConfig leaves unset.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// FromRetryConfig converts the millisecond settings in config.json.
func FromRetryConfig(rc models.RetryConfig, maxAttempts int) BackoffConfig {
	cfg := DefaultBackoffConfig()
	if rc.InitialBackoffMs > 0 {
		cfg.InitialDelay = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		cfg.MaxDelay = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	} else if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	return cfg
}

// Backoff retries an operation with exponentially growing waits.
type Backoff struct {
	config  BackoffConfig
	onRetry func(attempt int, delay time.Duration, err error)
	wait    func(ctx context.Context, d time.Duration) error
}

func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Backoff{config: config, wait: sleepContext}
}

// OnRetry registers a hook called before each wait, typically for logging.
func (b *Backoff) OnRetry(fn func(attempt int, delay time.Duration, err error)) *Backoff {
	b.onRetry = fn
	return b
}

// Retry runs operation until it succeeds or attempts are exhausted.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate stops early on errors that isRetryable rejects.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil || !isRetryable(err) || attempt >= b.config.MaxAttempts {
			return err
		}

		delay := b.calculateDelay(attempt)
		if b.onRetry != nil {
			b.onRetry(attempt, delay, err)
		}
		if waitErr := b.wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

// calculateDelay is InitialDelay*Multiplier^(attempt-1), capped at MaxDelay,
// then spread by up to 25% either way when Jitter is set.
func (b *Backoff) calculateDelay(attempt int) time.Duration {
	ceiling := float64(b.config.MaxDelay)
	delay := math.Min(float64(b.config.InitialDelay)*math.Pow(b.config.Multiplier, float64(attempt-1)), ceiling)
	if b.config.Jitter {
		delay = math.Min(delay*(0.75+rand.Float64()*0.5), ceiling)
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ighashtag/pkg/config"
	errs "ighashtag/pkg/errors"
	"ighashtag/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Policy holds retry configuration
type Policy struct {
	// MaxAttempts is the total number of attempts; 1 means no retries
	MaxAttempts int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// NoRetry returns a policy that runs an operation exactly once
func NoRetry() *Policy {
	return &Policy{
		MaxAttempts: 1,
		Backoff:     &ConstantBackoff{},
		RetryIf:     DefaultRetryIf,
	}
}

// FromConfig builds a policy from the retry section of the configuration
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Policy {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Policy{
		MaxAttempts: attempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    cfg.InitialBackoff,
			MaxDelay:     cfg.MaxBackoff,
			Multiplier:   cfg.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries typed network, rate limit and server errors only
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return false
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, p *Policy) error {
	if p == nil {
		p = NoRetry()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 && p.Logger != nil {
				p.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if attempt == maxAttempts || !retryIf(err) {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.NextDelay(attempt)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if p.Logger != nil {
			p.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": maxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	if maxAttempts > 1 && retryIf(lastErr) {
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, lastErr)
	}
	return lastErr
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), p *Policy) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, p)

	return result, err
}

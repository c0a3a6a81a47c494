package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/branchflow/branchflow/internal/errors"
)

// ResilienceConfig configures the retry and circuit breaker budget for
// adapter calls.
type ResilienceConfig struct {
	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	CircuitBreakerEnabled     bool
	CircuitBreakerThreshold   int
	CircuitBreakerTimeout     time.Duration
	CircuitBreakerMaxRequests int
}

// DefaultResilienceConfig returns the default adapter call budget.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RetryAttempts:             3,
		RetryInitialWait:          500 * time.Millisecond,
		RetryMaxWait:              10 * time.Second,
		CircuitBreakerEnabled:     true,
		CircuitBreakerThreshold:   5,
		CircuitBreakerTimeout:     30 * time.Second,
		CircuitBreakerMaxRequests: 3,
	}
}

// Resilience wraps Fortify retry and circuit breaker around adapter
// calls. Only recoverable failures (adapter timeouts) are retried;
// rejections and domain errors surface immediately.
type Resilience struct {
	retrier        retry.Retry[struct{}]
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
}

// NewResilience creates a resilience wrapper from the given budget.
func NewResilience(cfg ResilienceConfig) *Resilience {
	r := &Resilience{}

	if cfg.RetryAttempts > 0 {
		r.retrier = retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      cfg.RetryMaxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.CircuitBreakerEnabled {
		threshold := cfg.CircuitBreakerThreshold
		r.circuitBreaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: uint32(cfg.CircuitBreakerMaxRequests), // #nosec G115 -- bounded config value
			Interval:    cfg.CircuitBreakerTimeout,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounded config value
			},
		})
	}

	return r
}

// Execute runs an adapter operation under the configured budget.
func (r *Resilience) Execute(ctx context.Context, operation func(context.Context) error) error {
	wrapped := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}

	if r == nil {
		_, err := wrapped(ctx)
		return err
	}

	if r.circuitBreaker != nil {
		_, err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.executeWithRetry(ctx, operation)
		})
		return err
	}

	return r.executeWithRetry(ctx, operation)
}

func (r *Resilience) executeWithRetry(ctx context.Context, operation func(context.Context) error) error {
	if r.retrier == nil {
		return operation(ctx)
	}
	_, err := r.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// isRetryable retries recoverable adapter timeouts only. Context
// cancellation, rejections, and domain errors are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.IsRecoverable(err)
}

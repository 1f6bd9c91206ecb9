package retry

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/domain/errors/domain"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"    mapstructure:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"  mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter        bool          `json:"jitter"         mapstructure:"jitter"`
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// RetryableOperation represents an operation that can be retried.
type RetryableOperation func(ctx context.Context) error

// RetryableChecker classifies errors as transient or permanent.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// RetryExecutor handles retry logic with exponential backoff.
type RetryExecutor struct {
	config           *RetryConfig
	retryableChecker RetryableChecker
}

// NewRetryExecutor creates a new retry executor with default retry behavior.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	return NewRetryExecutorWithChecker(config, nil)
}

// NewRetryExecutorWithChecker creates a new retry executor with custom retry behavior.
func NewRetryExecutorWithChecker(config *RetryConfig, checker RetryableChecker) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if checker == nil {
		checker = &DefaultRetryableChecker{}
	}
	return &RetryExecutor{
		config:           config,
		retryableChecker: checker,
	}
}

// Execute executes an operation with retry logic.
func (r *RetryExecutor) Execute(ctx context.Context, operation RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Field("attempt", attempt+1))
			}
			return nil
		}

		lastErr = err

		if !r.retryableChecker.IsRetryable(err) {
			slogger.Debug(ctx, "Error is not retryable", slogger.Fields2(
				"error", err.Error(),
				"attempt", attempt+1,
			))
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
		))
	}

	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay calculates the delay for a given attempt using exponential backoff.
func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Up to +/-25% of the delay.
	if r.config.Jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
	}

	return time.Duration(delay)
}

// DefaultRetryableChecker treats store unavailability and common transient
// database, network and object storage failures as retryable.
type DefaultRetryableChecker struct{}

var transientPatterns = []string{
	// database
	"connection refused",
	"connection reset",
	"timeout",
	"deadlock",
	"connection lost",
	"too many connections",
	// temporary
	"temporary",
	"try again",
	"resource temporarily unavailable",
	// network
	"network is unreachable",
	"no route to host",
	"connection timed out",
	// object storage
	"slow down",
	"service unavailable",
	"internal error",
	"request timeout",
}

// IsRetryable checks if an error should be retried.
func (d *DefaultRetryableChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// WithRetryConfig executes a function with custom retry configuration.
func WithRetryConfig(ctx context.Context, config *RetryConfig, operation RetryableOperation) error {
	return NewRetryExecutor(config).Execute(ctx, operation)
}

// Package resilience decorates a table service with retries and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for table operations
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts
	InitialDelay  time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Upper bound between retries
	BackoffFactor float64       // Multiplier per attempt
	JitterFactor  float64       // Random variation, 0.0 to 1.0
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// BreakerConfig configures the circuit breaker
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // Consecutive failures before opening
	Timeout          time.Duration // Open duration before a half-open probe
	MaxRequests      uint32        // Probes allowed while half-open
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// executor runs calls through the breaker and retries transient failures
type executor struct {
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

func newExecutor(retry RetryConfig, breaker BreakerConfig, logger *zap.Logger) *executor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breaker.Name,
		MaxRequests: breaker.MaxRequests,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err)
		},
	})

	return &executor{
		retry:   retry,
		breaker: cb,
		logger:  logger,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State reports the breaker state
func (e *executor) State() gobreaker.State {
	return e.breaker.State()
}

// run executes fn. Non-idempotent calls are retried at most once.
func (e *executor) run(ctx context.Context, operation string, idempotent bool, fn func() error) error {
	maxRetries := e.retry.MaxRetries
	if !idempotent {
		maxRetries = min(maxRetries, 1)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		_, err := e.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err == nil {
			if attempt > 0 {
				e.logger.Info("Operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		lastErr = err
		if attempt >= maxRetries || !shouldRetry(err) {
			break
		}

		delay := e.delay(attempt)
		e.logger.Warn("Retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
		}
	}

	return lastErr
}

func (e *executor) delay(attempt int) time.Duration {
	base := float64(e.retry.InitialDelay) * math.Pow(e.retry.BackoffFactor, float64(attempt))

	e.mu.Lock()
	jitter := base * e.retry.JitterFactor * (e.rand.Float64()*2 - 1)
	e.mu.Unlock()

	d := time.Duration(base + jitter)
	if e.retry.MaxDelay > 0 && d > e.retry.MaxDelay {
		d = e.retry.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

func shouldRetry(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return !isCallerError(err)
}

// isCallerError marks failures a retry cannot fix
func isCallerError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

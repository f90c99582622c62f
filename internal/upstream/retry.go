package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RetryPolicy configures the exponential-backoff retry loop.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries with exponential backoff on transient
// status codes (429, 5xx) and connection errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

func (p RetryPolicy) backoffFor(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0 // bounded by MaxAttempts, not wall-clock
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// isRetryableStatus reports whether an HTTP status code is transient
// (429 or any 5xx).
func isRetryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// RetryManager executes an operation under the retry policy, logging
// each attempt, and reports results through the associated circuit
// breaker.
type RetryManager struct {
	policy  RetryPolicy
	logger  *zap.Logger
	breaker *CircuitBreaker
}

// NewRetryManager builds a manager with the given policy and circuit
// breaker (pass nil to disable breaking).
func NewRetryManager(policy RetryPolicy, breaker *CircuitBreaker, logger *zap.Logger) *RetryManager {
	return &RetryManager{policy: policy, logger: logger, breaker: breaker}
}

// Execute retries fn according to the policy, respecting ctx
// cancellation between attempts.
func (m *RetryManager) Execute(ctx context.Context, operation string, fn func() error) error {
	if m.breaker != nil && !m.breaker.CanExecute() {
		return errors.Wrapf(ErrCircuitOpen, "operation %s", operation)
	}

	attempt := 0
	operationFn := func() error {
		attempt++
		err := fn()
		if err != nil && m.logger != nil {
			m.logger.Warn("upstream call failed, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	}

	err := backoff.Retry(operationFn, m.policy.backoffFor(ctx))
	if m.breaker != nil {
		m.breaker.RecordResult(err)
	}
	return err
}

// ErrCircuitOpen is returned when the circuit breaker refuses a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState enumerates the breaker's three states.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker protects the upstream endpoint from sustained failure.
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	halfOpenTimeout time.Duration

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
	successCount    int
}

// NewCircuitBreaker builds a breaker that opens after maxFailures
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		maxFailures:     maxFailures,
		resetTimeout:    resetTimeout,
		halfOpenTimeout: resetTimeout / 2,
	}
}

// CanExecute reports whether a call may proceed, transitioning open ->
// half-open once the reset timeout has elapsed.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailureTime) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.successCount = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return true
	}
}

// RecordResult updates breaker state after a call completes.
func (b *CircuitBreaker) RecordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateHalfOpen:
			b.successCount++
			if b.successCount >= 3 {
				b.state = StateClosed
				b.failures = 0
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.lastFailureTime = time.Now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = StateOpen
		}
	}
}

// State reports the breaker's current state, for diagnostics.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

package usecase

import (
	"sync"
	"time"
)

// CircuitBreaker suppresses executor invocations after repeated
// consecutive failures. Two states only: CLOSED (normal) and OPEN
// (suppressing). Reopening is checked lazily at the next scheduled
// attempt; the breaker never owns a timer and never stops the scheduler
// loop itself.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetWindow      time.Duration

	failures    int
	lastFailure time.Time
	open        bool
}

// NewCircuitBreaker creates a breaker with the given consecutive-failure
// threshold and cooldown window
func NewCircuitBreaker(failureThreshold int, resetWindow time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetWindow <= 0 {
		resetWindow = 60 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetWindow:      resetWindow,
	}
}

// CanAttempt reports whether an executor invocation may proceed. While
// OPEN it closes the breaker once the cooldown has elapsed since the last
// recorded failure.
func (cb *CircuitBreaker) CanAttempt(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if now.Sub(cb.lastFailure) >= cb.resetWindow {
		cb.open = false
		cb.failures = 0
		return true
	}
	return false
}

// RecordFailure increments the consecutive-failure counter and opens the
// breaker when the threshold is reached
func (cb *CircuitBreaker) RecordFailure(now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.failureThreshold {
		cb.open = true
	}
}

// RecordSuccess credits one success: the failure counter decrements toward
// zero rather than resetting, so partial recovery is remembered
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures > 0 {
		cb.failures--
	}
}

// IsOpen reports the current state without side effects
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// FailureCount returns the current consecutive-failure counter
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

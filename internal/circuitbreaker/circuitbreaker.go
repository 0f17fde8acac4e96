// Package circuitbreaker implements the circuit breaker pattern: after a
// threshold of consecutive failures further calls are blocked until a
// recovery timeout elapses.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker.
type State int

const (
	StateClosed   State = iota // normal operation, requests allowed
	StateOpen                  // circuit is tripped, requests blocked
	StateHalfOpen              // testing if the downstream has recovered
)

// CircuitBreaker guards calls to an unreliable downstream.
type CircuitBreaker struct {
	state     State
	failures  int
	threshold int
	timeout   time.Duration
	lastError error
	mu        sync.Mutex
	openTime  time.Time
	logger    *logrus.Entry
}

// New creates a circuit breaker in the closed state. threshold is the
// number of consecutive failures that opens the circuit; timeout is how
// long it stays open before a trial request is let through.
func New(threshold int, timeout time.Duration, log *logrus.Logger) *CircuitBreaker {
	if log == nil {
		log = logrus.New()
	}
	return &CircuitBreaker{
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		logger:    log.WithField("component", "circuitbreaker"),
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return fmt.Errorf("circuit breaker is open: %v", cb.LastError())
	}

	err := fn()
	cb.RecordResult(err)
	return err
}

// AllowRequest reports whether a request may proceed. An open circuit whose
// timeout has elapsed transitions to half-open and lets one request through.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openTime) > cb.timeout {
			cb.state = StateHalfOpen
			cb.logger.Warn("Circuit breaker transitioned to half-open")
			return true
		}
		return false
	}
	return true
}

// RecordResult updates the breaker with the outcome of a request. Failures
// accumulate toward the threshold; a success resets the breaker.
func (cb *CircuitBreaker) RecordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastError = err
		if cb.failures >= cb.threshold {
			cb.state = StateOpen
			cb.openTime = time.Now()
			cb.logger.Warn("Circuit breaker opened")
		}
	} else {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.logger.Debug("Circuit breaker closed")
		}
		cb.state = StateClosed
	}
}

// LastError returns the most recent recorded failure.
func (cb *CircuitBreaker) LastError() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastError
}

// CurrentState returns the breaker's current state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

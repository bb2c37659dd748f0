package bar

import (
	"sync"
	"time"
)

// CircuitState is the restart state of a failing block.
type CircuitState int

const (
	// CircuitClosed restarts the block after its error interval.
	CircuitClosed CircuitState = iota
	// CircuitOpen holds the block back until the timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets one trial restart through.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig contains configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// Timeout is how long the circuit stays open before transitioning to half-open.
	// Default: 60 seconds
	Timeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the configuration used for blocks.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
	}
}

// CircuitBreaker decides when a failed block may run again. A block that
// keeps failing right after its restarts opens the circuit and is left
// alone for Timeout; the first restart after that is a trial, and one
// more failure opens the circuit again.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	totalFailures int64
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Allow reports whether the block may be restarted now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	var change func()
	allowed := false
	switch cb.state {
	case CircuitClosed:
		allowed = true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.config.Timeout {
			change = cb.transitionTo(CircuitHalfOpen)
			allowed = true
		}
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
	return allowed
}

// RecordSuccess notes that the block produced output after a restart.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	change := cb.transitionTo(CircuitClosed)
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

// RecordFailure notes a block failure.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.totalFailures++
	cb.failures++
	cb.lastFailure = cb.now()

	var change func()
	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			change = cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		change = cb.transitionTo(CircuitOpen)
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

// RetryAfter returns how long an open circuit still refuses restarts.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return 0
	}
	return max(cb.config.Timeout-cb.now().Sub(cb.lastFailure), 0)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TotalFailures returns the number of failures recorded so far.
func (cb *CircuitBreaker) TotalFailures() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalFailures
}

// transitionTo changes the circuit state and returns the state change
// callback to run once the lock is released, or nil.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) func() {
	if cb.state == newState {
		return nil
	}
	oldState := cb.state
	cb.state = newState
	if cb.config.OnStateChange == nil {
		return nil
	}
	return func() { cb.config.OnStateChange(oldState, newState) }
}

package spaceport

import (
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
// The circuit breaker prevents hammering an unhealthy API by monitoring
// consecutive failures and temporarily blocking requests.
//
// State transitions:
//   - Closed -> Open: When the failure threshold is reached
//   - Open -> Half-Open: After the timeout period expires
//   - Half-Open -> Closed: When the success threshold is reached
//   - Half-Open -> Open: On any failure
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	// All requests pass through and errors are counted.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests immediately.
	// This state prevents overwhelming a failing service.
	CircuitOpen
	// CircuitHalfOpen allows limited requests to test if the service has recovered.
	// If these test requests succeed, the circuit closes.
	// If they fail, the circuit opens again.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
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

// CircuitBreaker protects the REST transport from cascading failures.
// When configured (see Config.WithCircuitBreaker), every API call runs
// through it; while the circuit is open, calls fail fast with ErrCircuitOpen
// instead of reaching the network. The breaker never retries anything on the
// caller's behalf.
//
// Example:
//
//	config := spaceport.DefaultConfig().WithCircuitBreaker(spaceport.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 2,
//	    Timeout:          30 * time.Second,
//	})
//
//	client, _ := spaceport.NewClient(config)
//	_, err := client.Databases().GetDocument(ctx, "main", "posts", "42", nil)
//	if errors.Is(err, spaceport.ErrCircuitOpen) {
//	    // Circuit is open, service is unavailable
//	}
type CircuitBreaker interface {
	// Execute runs the given function if the circuit allows it.
	// Returns ErrCircuitOpen if the circuit is open.
	// The function's error (if any) is used to update circuit state.
	Execute(fn func() error) error

	// State returns the current state of the circuit breaker.
	State() CircuitState

	// Reset manually resets the circuit to closed state.
	// Use sparingly, typically only when you know the underlying
	// issue has been resolved.
	Reset()
}

// CircuitBreakerConfig holds configuration for circuit breaker behavior.
// All fields have sensible defaults if not specified.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens. Lower values make the circuit more sensitive.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes required
	// in half-open state before the circuit closes.
	// Default: 2
	SuccessThreshold int

	// Timeout is how long the circuit stays open before transitioning
	// to half-open state to test recovery.
	// Default: 30s
	Timeout time.Duration

	// HalfOpenRequests is the maximum number of requests allowed
	// in half-open state.
	// Default: 3
	HalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns a circuit breaker configuration
// with sensible defaults suitable for most use cases.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithCircuitBreaker(spaceport.DefaultCircuitBreakerConfig())
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 3,
	}
}

// circuitBreaker is the default implementation
type circuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            CircuitState
	failures         int
	successes        int
	halfOpenRequests int
	lastFailureTime  time.Time
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
// The circuit breaker starts in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) CircuitBreaker {
	return &circuitBreaker{
		config:          config,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs the given function if the circuit allows it
func (cb *circuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	cb.checkStateTransition()

	state := cb.state

	if state == CircuitOpen {
		cb.mu.Unlock()
		return NewError(ErrorTypeCircuitOpen, "circuit breaker is open", ErrCircuitOpen)
	}

	if state == CircuitHalfOpen {
		if cb.halfOpenRequests >= cb.config.HalfOpenRequests {
			cb.mu.Unlock()
			return NewError(ErrorTypeCircuitOpen, "circuit breaker half-open limit reached", ErrCircuitOpen)
		}
		cb.halfOpenRequests++
	}

	cb.mu.Unlock()

	err := fn()

	cb.recordResult(err)

	return err
}

// State returns the current state of the circuit
func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkStateTransition()
	return cb.state
}

// Reset manually resets the circuit to closed state
func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}

// checkStateTransition checks if the circuit should transition states
func (cb *circuitBreaker) checkStateTransition() {
	if cb.state == CircuitOpen && time.Since(cb.lastFailureTime) >= cb.config.Timeout {
		cb.transitionTo(CircuitHalfOpen)
	}
}

// recordResult records the result of a function execution
func (cb *circuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

// onSuccess handles successful executions
func (cb *circuitBreaker) onSuccess() {
	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	}
}

// onFailure handles failed executions
func (cb *circuitBreaker) onFailure() {
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}

	case CircuitHalfOpen:
		// Any failure in half-open goes back to open
		cb.transitionTo(CircuitOpen)
	}
}

// transitionTo transitions the circuit to a new state
func (cb *circuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}

	cb.state = newState
	cb.lastStateChange = time.Now()

	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
}

// noopCircuitBreaker is used when circuit breaking is not configured
type noopCircuitBreaker struct{}

// Execute always executes the function
func (ncb *noopCircuitBreaker) Execute(fn func() error) error {
	return fn()
}

// State always returns closed
func (ncb *noopCircuitBreaker) State() CircuitState {
	return CircuitClosed
}

// Reset does nothing
func (ncb *noopCircuitBreaker) Reset() {}

// NewNoopCircuitBreaker creates a circuit breaker that does nothing.
// This is the behavior when no CircuitBreakerConfig is set: every call is a
// single attempt against the API.
func NewNoopCircuitBreaker() CircuitBreaker {
	return &noopCircuitBreaker{}
}

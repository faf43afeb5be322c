package spaceport

import (
	"context"
	"sync"
	"time"
)

// Observer provides hooks for monitoring SDK operations.
// Implement this interface to track performance metrics, debug issues,
// or integrate with your observability stack.
//
// The SDK calls observer methods at key points during operation execution.
// Observer methods should be fast and non-blocking to avoid impacting
// REST latency or realtime frame dispatch.
//
// Example implementation:
//
//	type LogObserver struct {
//	    logger *log.Logger
//	}
//
//	func (o *LogObserver) OnRequestStart(ctx context.Context, method, path string) {
//	    o.logger.Printf("[START] %s %s", method, path)
//	}
//
//	func (o *LogObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
//	    if err != nil {
//	        o.logger.Printf("[ERROR] %s %s - %v (took %v)", method, path, err, duration)
//	    } else {
//	        o.logger.Printf("[SUCCESS] %s %s (took %v)", method, path, duration)
//	    }
//	}
type Observer interface {
	// OnRequestStart is called when an HTTP request starts.
	// The context derives from the one passed to the SDK operation but is
	// unique to this request, so it can key start/end correlation even when
	// concurrent requests share a caller context.
	//
	// Parameters:
	//   - ctx: Request-scoped context
	//   - method: HTTP method (GET, POST, PATCH, DELETE)
	//   - path: Request path (e.g., "/v1/account/sessions")
	OnRequestStart(ctx context.Context, method, path string)

	// OnRequestEnd is called when an HTTP request completes.
	// Use this to track latencies, error rates, or log completions.
	//
	// Parameters:
	//   - ctx: Request-scoped context, identical to the one the matching
	//     OnRequestStart call received
	//   - method: HTTP method
	//   - path: Request path
	//   - duration: Time taken for the request
	//   - err: Error if request failed, nil on success
	OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error)

	// OnCircuitBreakerStateChange is called when the REST circuit breaker
	// changes state. Use this to monitor service health or alert on opens.
	OnCircuitBreakerStateChange(oldState, newState CircuitState)

	// OnConnectionStateChange is called on every realtime connection state
	// transition (Disconnected, Connecting, Connected, Error).
	OnConnectionStateChange(oldState, newState ConnectionState)

	// OnReconnectAttempt is called before each scheduled reconnect attempt.
	//
	// Parameters:
	//   - attempt: Attempt number since the last established connection,
	//     starting at 1
	//   - delay: Backoff delay applied before this attempt
	OnReconnectAttempt(attempt int, delay time.Duration)

	// OnFrameSent is called after a protocol frame is written to the
	// realtime transport (signin, subscribe, unsubscribe, ping).
	OnFrameSent(event string)

	// OnFrameReceived is called for every inbound protocol frame before
	// it is dispatched.
	OnFrameReceived(event string)
}

// NoopObserver is a no-op implementation of Observer that does nothing.
// This is the default observer used when none is configured.
// It has zero overhead and is safe for production use.
//
// NoopObserver can also be embedded to implement only the hooks you need:
//
//	type FrameCounter struct {
//	    spaceport.NoopObserver
//	    frames atomic.Int64
//	}
//
//	func (f *FrameCounter) OnFrameReceived(event string) { f.frames.Add(1) }
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(ctx context.Context, method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
}

// OnCircuitBreakerStateChange does nothing
func (n *NoopObserver) OnCircuitBreakerStateChange(oldState, newState CircuitState) {}

// OnConnectionStateChange does nothing
func (n *NoopObserver) OnConnectionStateChange(oldState, newState ConnectionState) {}

// OnReconnectAttempt does nothing
func (n *NoopObserver) OnReconnectAttempt(attempt int, delay time.Duration) {}

// OnFrameSent does nothing
func (n *NoopObserver) OnFrameSent(event string) {}

// OnFrameReceived does nothing
func (n *NoopObserver) OnFrameReceived(event string) {}

// MetricsCollector is a simple in-memory metrics implementation.
// It collects basic metrics about SDK operations including request counts,
// latencies, error rates, frame traffic and reconnect attempts.
//
// Note: This implementation stores all data in memory and is primarily
// intended for debugging and testing. For production use, see
// PrometheusObserver and OTelObserver, or implement Observer to export
// metrics to your monitoring system.
//
// Example:
//
//	metrics := spaceport.NewMetricsCollector()
//	config := spaceport.DefaultConfig().
//	    WithObserver(metrics)
//
//	client, _ := spaceport.NewClient(config)
//	// Use client...
//
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Total reconnects: %v\n", snapshot["reconnect_attempts"])
type MetricsCollector struct {
	mu                     sync.RWMutex
	requestCount           map[string]int64
	latencies              map[string][]time.Duration
	errorCount             map[string]int64
	framesSent             map[string]int64
	framesReceived         map[string]int64
	reconnectAttempts      int64
	circuitStateChanges    int64
	connectionStateChanges int64
}

// NewMetricsCollector creates a new metrics collector for tracking SDK operations.
// The collector is thread-safe and can be used concurrently.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount:   make(map[string]int64),
		latencies:      make(map[string][]time.Duration),
		errorCount:     make(map[string]int64),
		framesSent:     make(map[string]int64),
		framesReceived: make(map[string]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(ctx context.Context, method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.requestCount[key]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
	}
}

// OnCircuitBreakerStateChange tracks state changes
func (m *MetricsCollector) OnCircuitBreakerStateChange(oldState, newState CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitStateChanges++
}

// OnConnectionStateChange tracks realtime state transitions
func (m *MetricsCollector) OnConnectionStateChange(oldState, newState ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectionStateChanges++
}

// OnReconnectAttempt increments the reconnect counter
func (m *MetricsCollector) OnReconnectAttempt(attempt int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectAttempts++
}

// OnFrameSent counts outbound frames by event
func (m *MetricsCollector) OnFrameSent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesSent[event]++
}

// OnFrameReceived counts inbound frames by event
func (m *MetricsCollector) OnFrameReceived(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framesReceived[event]++
}

// GetMetrics returns a snapshot of current metrics.
// The returned map is a copy and safe to read without locks.
//
// The metrics include:
//   - "requests": Map of endpoint to request count
//   - "latencies": Map of endpoint to latency measurements
//   - "errors": Map of endpoint to error count
//   - "frames_sent": Map of frame event to count
//   - "frames_received": Map of frame event to count
//   - "reconnect_attempts": Total reconnect attempts
//   - "circuit_breaker_state_changes": Total breaker transitions
//   - "connection_state_changes": Total realtime state transitions
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Create copies to avoid data races
	requestsCopy := make(map[string]int64)
	for k, v := range m.requestCount {
		requestsCopy[k] = v
	}

	latenciesCopy := make(map[string][]time.Duration)
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	errorsCopy := make(map[string]int64)
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	sentCopy := make(map[string]int64)
	for k, v := range m.framesSent {
		sentCopy[k] = v
	}

	receivedCopy := make(map[string]int64)
	for k, v := range m.framesReceived {
		receivedCopy[k] = v
	}

	return map[string]interface{}{
		"requests":                      requestsCopy,
		"latencies":                     latenciesCopy,
		"errors":                        errorsCopy,
		"frames_sent":                   sentCopy,
		"frames_received":               receivedCopy,
		"reconnect_attempts":            m.reconnectAttempts,
		"circuit_breaker_state_changes": m.circuitStateChanges,
		"connection_state_changes":      m.connectionStateChanges,
	}
}

// observedCircuitBreaker wraps a circuit breaker to notify observers of state changes.
// This allows monitoring systems to track circuit breaker behavior without
// modifying the circuit breaker implementation.
type observedCircuitBreaker struct {
	cb        CircuitBreaker
	observer  Observer
	lastState CircuitState
}

// newObservedCircuitBreaker creates a circuit breaker that notifies an observer
// of state changes. This is used internally by the REST transport.
func newObservedCircuitBreaker(cb CircuitBreaker, observer Observer) CircuitBreaker {
	return &observedCircuitBreaker{
		cb:        cb,
		observer:  observer,
		lastState: cb.State(),
	}
}

// Execute runs the function and notifies state changes
func (o *observedCircuitBreaker) Execute(fn func() error) error {
	err := o.cb.Execute(fn)

	currentState := o.cb.State()
	if currentState != o.lastState {
		o.observer.OnCircuitBreakerStateChange(o.lastState, currentState)
		o.lastState = currentState
	}

	return err
}

// State returns the current state
func (o *observedCircuitBreaker) State() CircuitState {
	return o.cb.State()
}

// Reset resets the circuit and notifies of state change
func (o *observedCircuitBreaker) Reset() {
	oldState := o.cb.State()
	o.cb.Reset()
	newState := o.cb.State()

	if oldState != newState {
		o.observer.OnCircuitBreakerStateChange(oldState, newState)
		o.lastState = newState
	}
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order.
// If an observer panics during a request hook, the panic is caught to
// prevent affecting other observers.
//
// Example:
//
//	logger := &LogObserver{log: log.Default()}
//	metrics := spaceport.NewMetricsCollector()
//
//	composite := spaceport.NewCompositeObserver(logger, metrics)
//
//	config := spaceport.DefaultConfig().
//	    WithObserver(composite)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
// This allows you to use multiple monitoring strategies simultaneously.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

// OnRequestStart notifies all observers of request start.
// If an observer panics, the panic is caught and ignored to prevent
// one faulty observer from affecting others.
func (c *CompositeObserver) OnRequestStart(ctx context.Context, method, path string) {
	for _, obs := range c.observers {
		// Recover from panics to prevent one observer from breaking others
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Observer panicked, ignore
				}
			}()
			obs.OnRequestStart(ctx, method, path)
		}()
	}
}

// OnRequestEnd notifies all observers of request completion.
// Each observer is called in order with panic protection.
func (c *CompositeObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	for _, obs := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Observer panicked, ignore
				}
			}()
			obs.OnRequestEnd(ctx, method, path, duration, err)
		}()
	}
}

// OnCircuitBreakerStateChange notifies all observers
func (c *CompositeObserver) OnCircuitBreakerStateChange(oldState, newState CircuitState) {
	for _, obs := range c.observers {
		obs.OnCircuitBreakerStateChange(oldState, newState)
	}
}

// OnConnectionStateChange notifies all observers
func (c *CompositeObserver) OnConnectionStateChange(oldState, newState ConnectionState) {
	for _, obs := range c.observers {
		obs.OnConnectionStateChange(oldState, newState)
	}
}

// OnReconnectAttempt notifies all observers
func (c *CompositeObserver) OnReconnectAttempt(attempt int, delay time.Duration) {
	for _, obs := range c.observers {
		obs.OnReconnectAttempt(attempt, delay)
	}
}

// OnFrameSent notifies all observers
func (c *CompositeObserver) OnFrameSent(event string) {
	for _, obs := range c.observers {
		obs.OnFrameSent(event)
	}
}

// OnFrameReceived notifies all observers
func (c *CompositeObserver) OnFrameReceived(event string) {
	for _, obs := range c.observers {
		obs.OnFrameReceived(event)
	}
}

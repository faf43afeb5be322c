package spaceport

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "spaceport"

// PrometheusObserver is an Observer that exports SDK metrics to Prometheus.
// It tracks HTTP request counts, latencies and errors, plus realtime frame
// traffic, reconnect attempts and connection state.
//
// Metrics are registered on the provided registerer under the "spaceport"
// namespace. Pass nil to use prometheus.DefaultRegisterer.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	observer := spaceport.NewPrometheusObserver(registry)
//
//	config := spaceport.DefaultConfig().
//	    WithObserver(observer)
//
//	client, _ := spaceport.NewClient(config)
type PrometheusObserver struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
	reconnectsTotal  prometheus.Counter
	connectionState  prometheus.Gauge
	circuitState     prometheus.Gauge
	stateTransitions *prometheus.CounterVec
}

// NewPrometheusObserver creates an observer that registers SDK metrics on the
// given registerer. Registering two observers on the same registerer panics
// with a duplicate registration error, so create at most one per registry.
func NewPrometheusObserver(registerer prometheus.Registerer) *PrometheusObserver {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests made by the SDK",
		}, []string{"method", "path"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "Total number of failed HTTP requests",
		}, []string{"method", "path"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "frames_sent_total",
			Help:      "Total number of protocol frames sent over the realtime transport",
		}, []string{"event"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "frames_received_total",
			Help:      "Total number of protocol frames received over the realtime transport",
		}, []string{"event"}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of realtime reconnect attempts",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connection_state",
			Help:      "Current realtime connection state (0=disconnected, 1=connecting, 2=connected, 3=error)",
		}),
		circuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connection_state_transitions_total",
			Help:      "Total number of realtime connection state transitions",
		}, []string{"from", "to"}),
	}

	registerer.MustRegister(
		o.requestsTotal,
		o.requestDuration,
		o.requestErrors,
		o.framesSent,
		o.framesReceived,
		o.reconnectsTotal,
		o.connectionState,
		o.circuitState,
		o.stateTransitions,
	)

	return o
}

// OnRequestStart increments the request counter
func (o *PrometheusObserver) OnRequestStart(ctx context.Context, method, path string) {
	o.requestsTotal.WithLabelValues(method, path).Inc()
}

// OnRequestEnd records latency and errors
func (o *PrometheusObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	o.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if err != nil {
		o.requestErrors.WithLabelValues(method, path).Inc()
	}
}

// OnCircuitBreakerStateChange updates the breaker state gauge
func (o *PrometheusObserver) OnCircuitBreakerStateChange(oldState, newState CircuitState) {
	o.circuitState.Set(float64(newState))
}

// OnConnectionStateChange updates the connection state gauge and transition counter
func (o *PrometheusObserver) OnConnectionStateChange(oldState, newState ConnectionState) {
	o.connectionState.Set(float64(newState))
	o.stateTransitions.WithLabelValues(oldState.String(), newState.String()).Inc()
}

// OnReconnectAttempt increments the reconnect counter
func (o *PrometheusObserver) OnReconnectAttempt(attempt int, delay time.Duration) {
	o.reconnectsTotal.Inc()
}

// OnFrameSent counts outbound frames by event
func (o *PrometheusObserver) OnFrameSent(event string) {
	o.framesSent.WithLabelValues(event).Inc()
}

// OnFrameReceived counts inbound frames by event
func (o *PrometheusObserver) OnFrameReceived(event string) {
	o.framesReceived.WithLabelValues(event).Inc()
}

package spaceport

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this library in OpenTelemetry scopes.
const instrumentationName = "github.com/spaceporthq/spaceport-go"

// OTelObserver is an Observer that records SDK activity through the
// OpenTelemetry API. HTTP requests become spans on the globally configured
// tracer provider, and realtime activity is recorded as metrics on the
// globally configured meter provider.
//
// The observer uses only the OpenTelemetry API. It never installs providers
// or exporters; configure those in your application before creating the
// client. With no provider configured all calls are no-ops.
//
// Example:
//
//	// Provider setup happens in your application, not in the SDK.
//	otel.SetTracerProvider(tp)
//
//	observer, err := spaceport.NewOTelObserver()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	config := spaceport.DefaultConfig().
//	    WithObserver(observer)
type OTelObserver struct {
	tracer trace.Tracer

	framesSent     metric.Int64Counter
	framesReceived metric.Int64Counter
	reconnects     metric.Int64Counter
	stateChanges   metric.Int64Counter
	circuitChanges metric.Int64Counter

	mu    sync.Mutex
	spans map[context.Context]trace.Span
}

// NewOTelObserver creates an observer bound to the global OpenTelemetry
// tracer and meter providers. It returns an error if a metric instrument
// cannot be created.
func NewOTelObserver() (*OTelObserver, error) {
	meter := otel.Meter(instrumentationName)

	framesSent, err := meter.Int64Counter("spaceport.realtime.frames_sent",
		metric.WithDescription("Protocol frames sent over the realtime transport"))
	if err != nil {
		return nil, err
	}

	framesReceived, err := meter.Int64Counter("spaceport.realtime.frames_received",
		metric.WithDescription("Protocol frames received over the realtime transport"))
	if err != nil {
		return nil, err
	}

	reconnects, err := meter.Int64Counter("spaceport.realtime.reconnect_attempts",
		metric.WithDescription("Realtime reconnect attempts"))
	if err != nil {
		return nil, err
	}

	stateChanges, err := meter.Int64Counter("spaceport.realtime.connection_state_changes",
		metric.WithDescription("Realtime connection state transitions"))
	if err != nil {
		return nil, err
	}

	circuitChanges, err := meter.Int64Counter("spaceport.http.circuit_breaker_state_changes",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}

	return &OTelObserver{
		tracer:         otel.Tracer(instrumentationName),
		framesSent:     framesSent,
		framesReceived: framesReceived,
		reconnects:     reconnects,
		stateChanges:   stateChanges,
		circuitChanges: circuitChanges,
		spans:          make(map[context.Context]trace.Span),
	}, nil
}

// OnRequestStart opens a client span for the request. The span is tracked
// by context identity so the matching OnRequestEnd call can close it; the
// transport hands each request its own context.
func (o *OTelObserver) OnRequestStart(ctx context.Context, method, path string) {
	_, span := o.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)

	o.mu.Lock()
	o.spans[ctx] = span
	o.mu.Unlock()
}

// OnRequestEnd closes the span opened by OnRequestStart, recording the
// error if the request failed.
func (o *OTelObserver) OnRequestEnd(ctx context.Context, method, path string, duration time.Duration, err error) {
	o.mu.Lock()
	span, ok := o.spans[ctx]
	if ok {
		delete(o.spans, ctx)
	}
	o.mu.Unlock()

	if !ok {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// OnCircuitBreakerStateChange counts breaker transitions
func (o *OTelObserver) OnCircuitBreakerStateChange(oldState, newState CircuitState) {
	o.circuitChanges.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("from", oldState.String()),
			attribute.String("to", newState.String()),
		),
	)
}

// OnConnectionStateChange counts realtime state transitions
func (o *OTelObserver) OnConnectionStateChange(oldState, newState ConnectionState) {
	o.stateChanges.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("from", oldState.String()),
			attribute.String("to", newState.String()),
		),
	)
}

// OnReconnectAttempt counts reconnect attempts
func (o *OTelObserver) OnReconnectAttempt(attempt int, delay time.Duration) {
	o.reconnects.Add(context.Background(), 1)
}

// OnFrameSent counts outbound frames by event
func (o *OTelObserver) OnFrameSent(event string) {
	o.framesSent.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", event)))
}

// OnFrameReceived counts inbound frames by event
func (o *OTelObserver) OnFrameReceived(event string) {
	o.framesReceived.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", event)))
}

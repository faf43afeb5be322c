package spaceport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// writeWait bounds a single frame write on the wire
const writeWait = 10 * time.Second

// ConnectionState is the lifecycle state of the realtime connection.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being
	// attempted. Initial and terminal state.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a connect or reconnect attempt is in flight
	// or scheduled.
	StateConnecting
	// StateConnected means the connection is established and a socket id
	// has been assigned.
	StateConnected
	// StateError means the last connect attempt failed and no retry is
	// scheduled.
	StateError
)

// String returns a human-readable state name
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// connectAttempt is the shared outcome of one dial attempt. Every caller
// waiting on the same attempt observes the same resolution, exactly once.
type connectAttempt struct {
	done chan struct{}
	err  error
}

func (a *connectAttempt) resolve(err error) {
	a.err = err
	close(a.done)
}

// RealtimeClient maintains the WebSocket connection to the realtime service
// and multiplexes channel subscriptions over it.
//
// The client connects on demand, keeps the connection alive with periodic
// pings, and transparently reconnects with exponential backoff when the
// connection drops abnormally. Channel subscriptions survive reconnects;
// they are replayed automatically once the connection is re-established.
//
// Obtain one through Client.Realtime. All methods are safe for
// concurrent use.
//
// Example:
//
//	rt := client.Realtime()
//
//	rt.OnMessageReceived(func(msg spaceport.Message) {
//	    fmt.Printf("[%s] %s\n", msg.ChannelID, msg.Content)
//	})
//	rt.OnError(func(err error) {
//	    log.Printf("realtime: %v", err)
//	})
//
//	if err := rt.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Disconnect()
//
//	if err := rt.SubscribeToChannel(ctx, "42"); err != nil {
//	    log.Fatal(err)
//	}
type RealtimeClient struct {
	config   *Config
	logger   *logrus.Entry
	observer Observer

	auth         *channelAuthProvider
	registry     *subscriptionRegistry
	interceptors *interceptorList
	callbacks    *callbacks
	backoff      BackoffStrategy

	// mu guards the connection state below
	mu             sync.Mutex
	state          ConnectionState
	conn           *websocket.Conn
	socketID       string
	attempts       int
	attempt        *connectAttempt
	reconnectTimer *time.Timer
	keepaliveStop  chan struct{}

	// writeMu serializes frame writes; the transport permits a single
	// concurrent writer
	writeMu sync.Mutex
}

// newRealtimeClient creates a realtime client from a validated config
func newRealtimeClient(config *Config) *RealtimeClient {
	return &RealtimeClient{
		config:       config,
		logger:       config.Logger.WithField("component", "realtime"),
		observer:     config.Observer,
		auth:         newChannelAuthProvider(config.TokenSource),
		registry:     newSubscriptionRegistry(),
		interceptors: newInterceptorList(),
		callbacks:    &callbacks{},
		backoff:      reconnectBackoff(config.Realtime),
		state:        StateDisconnected,
	}
}

// Connect establishes the realtime connection and blocks until the server
// acknowledges it with a connection_established frame, ctx is canceled, or
// the attempt fails.
//
// Connect is idempotent: it returns immediately when already connected, and
// concurrent callers share a single in-flight attempt rather than opening a
// second connection. Canceling ctx abandons the wait but does not abort the
// shared attempt.
//
// On success the client is in StateConnected with a socket id assigned, the
// keepalive ticker is running and previously registered channels have begun
// resubscribing.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()

	if r.state == StateConnected {
		r.mu.Unlock()
		return nil
	}

	if r.attempt != nil {
		attempt := r.attempt
		r.mu.Unlock()
		return awaitAttempt(ctx, attempt)
	}

	if r.config.Project == "" {
		r.mu.Unlock()
		return fmt.Errorf("project must be configured for realtime")
	}

	attempt := &connectAttempt{done: make(chan struct{})}
	r.attempt = attempt
	notify := r.transitionLocked(StateConnecting)
	r.mu.Unlock()
	notify()

	go r.runConnect(attempt, false)

	return awaitAttempt(ctx, attempt)
}

func awaitAttempt(ctx context.Context, attempt *connectAttempt) error {
	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the realtime connection and stops all reconnect and
// keepalive activity. The socket id and every channel registration are
// cleared, and the client ends in StateDisconnected regardless of its prior
// state. Callers blocked in SubscribeToChannel fail immediately with
// ErrNotConnected instead of waiting out their timeout. Safe to call at any
// time, including while a connect attempt is in flight or when already
// disconnected.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()

	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
		r.reconnectTimer = nil
	}
	r.stopKeepaliveLocked()

	attempt := r.attempt
	r.attempt = nil
	conn := r.conn
	r.conn = nil
	r.socketID = ""

	notify := r.transitionLocked(StateDisconnected)
	r.mu.Unlock()

	r.registry.clear()
	r.interceptors.drain()

	if attempt != nil {
		attempt.resolve(NewError(ErrorTypeClient, "disconnected before establishment", ErrConnectionFailed))
	}

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	notify()
	return nil
}

// ConnectionState returns the current connection state.
func (r *RealtimeClient) ConnectionState() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SocketID returns the socket id assigned by the server, or an empty string
// before the connection is established.
func (r *RealtimeClient) SocketID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.socketID
}

// IsAuthenticated reports whether a session credential is currently
// available for channel authentication.
func (r *RealtimeClient) IsAuthenticated() bool {
	return r.auth.isAuthenticated()
}

// GenerateChannelAuth builds the subscription credential for a channel from
// the current session credential. SubscribeToChannel calls this internally;
// use it directly when you need to inspect or forward the auth.
//
// Fails with ErrAuthUnavailable when no credential is available and with a
// protocol error when the credential cannot be decoded. A credential without
// an identity claim degrades to the placeholder identity instead of failing.
func (r *RealtimeClient) GenerateChannelAuth(channelID string) (*ChannelAuth, error) {
	return r.auth.generateChannelAuth(channelID)
}

// UserData returns the identity carried by the current session credential.
// Extraction never fails: a missing or malformed credential yields the
// placeholder identity with id "unknown".
func (r *RealtimeClient) UserData() Identity {
	return r.auth.userData()
}

// OnMessageReceived registers the handler for new and updated chat
// messages. Later registrations overwrite earlier ones.
func (r *RealtimeClient) OnMessageReceived(fn func(Message)) {
	r.callbacks.setMessageReceived(fn)
}

// OnMessageDeleted registers the handler for removed chat messages.
func (r *RealtimeClient) OnMessageDeleted(fn func(Message)) {
	r.callbacks.setMessageDeleted(fn)
}

// OnSupportCountUpdated registers the handler for support count changes.
func (r *RealtimeClient) OnSupportCountUpdated(fn func(SupportCount)) {
	r.callbacks.setSupportCount(fn)
}

// OnSupportChannelUpdated registers the handler for support channel changes.
func (r *RealtimeClient) OnSupportChannelUpdated(fn func(SupportChannel)) {
	r.callbacks.setSupportChannel(fn)
}

// OnConnectionStateChanged registers the handler for connection state
// transitions. The handler receives the new state.
func (r *RealtimeClient) OnConnectionStateChanged(fn func(ConnectionState)) {
	r.callbacks.setStateChanged(fn)
}

// OnError registers the handler for asynchronous realtime errors: server
// error frames, malformed payloads, lost connections and failed
// resubscriptions. Without a handler these are logged instead.
func (r *RealtimeClient) OnError(fn func(error)) {
	r.callbacks.setErrorHandler(fn)
}

// runConnect dials the realtime endpoint and hands the connection to the
// read loop. Establishment resolves later, when the read loop sees the
// connection_established frame.
func (r *RealtimeClient) runConnect(attempt *connectAttempt, retry bool) {
	wsURL := strings.TrimSuffix(r.config.RealtimeEndpoint, "/") + "/app/" + r.config.Project

	r.logger.WithField("url", wsURL).Debug("dialing realtime endpoint")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		connErr := NewError(ErrorTypeTransport, "failed to dial realtime endpoint", err)
		r.settleAttemptFailure(attempt, connErr, retry)
		return
	}

	r.mu.Lock()
	if r.attempt != attempt {
		// Disconnect raced the dial; drop the fresh connection.
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.conn = conn
	r.mu.Unlock()

	go r.readLoop(conn, attempt, retry)
}

// settleAttemptFailure resolves a failed attempt. Initial attempts settle
// in StateError; retry attempts re-enter the reconnect schedule.
func (r *RealtimeClient) settleAttemptFailure(attempt *connectAttempt, err error, retry bool) {
	r.mu.Lock()
	if r.attempt != attempt {
		// Disconnect already settled this attempt.
		r.mu.Unlock()
		return
	}
	r.attempt = nil

	var notify func()
	if retry {
		r.logger.WithError(err).Warn("reconnect attempt failed")
		notify = r.scheduleReconnectLocked()
	} else {
		notify = r.transitionLocked(StateError)
	}
	r.mu.Unlock()

	notify()
	attempt.resolve(err)
	r.emitError(err)
}

// readLoop consumes frames until the connection fails or is torn down.
// Each frame is offered to pending interceptors and then dispatched,
// synchronously and in arrival order.
func (r *RealtimeClient) readLoop(conn *websocket.Conn, attempt *connectAttempt, retry bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.handleReadFailure(conn, attempt, retry, err)
			return
		}

		if !r.isCurrent(conn) {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			r.emitError(NewError(ErrorTypeProtocol, "malformed frame", err))
			continue
		}

		if r.observer != nil {
			r.observer.OnFrameReceived(frame.Event)
		}

		r.interceptors.offer(&frame)
		r.dispatch(conn, &frame)
	}
}

func (r *RealtimeClient) isCurrent(conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn == conn
}

// handleReadFailure classifies a failed read and drives the state machine:
// pre-establishment failures settle the pending attempt, a normal closure
// ends in StateDisconnected with no reconnect, and any other closure of an
// established connection enters the reconnect schedule.
func (r *RealtimeClient) handleReadFailure(conn *websocket.Conn, attempt *connectAttempt, retry bool, err error) {
	r.mu.Lock()
	if r.conn != conn {
		// Deliberate teardown; Disconnect already settled the state.
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.socketID = ""
	r.stopKeepaliveLocked()
	conn.Close()

	if attempt != nil && r.attempt == attempt {
		r.mu.Unlock()
		connErr := NewError(ErrorTypeTransport, "connection closed before establishment", err)
		r.settleAttemptFailure(attempt, connErr, retry)
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		notify := r.transitionLocked(StateDisconnected)
		r.mu.Unlock()
		r.logger.Debug("connection closed by server")
		notify()
		return
	}

	notify := r.scheduleReconnectLocked()
	r.mu.Unlock()

	r.logger.WithError(err).Warn("connection lost")
	notify()
	r.emitError(NewError(ErrorTypeTransport, "connection lost", err))
}

// scheduleReconnectLocked arms the reconnect timer per the backoff policy,
// or settles in StateDisconnected when reconnecting is disabled or the
// attempt budget is spent. Caller holds mu; the returned notifier must run
// after unlock.
func (r *RealtimeClient) scheduleReconnectLocked() func() {
	cfg := r.config.Realtime

	if !cfg.AutoReconnect || (cfg.MaxReconnectAttempts >= 0 && r.attempts >= cfg.MaxReconnectAttempts) {
		return r.transitionLocked(StateDisconnected)
	}

	delay := r.backoff.NextDelay(r.attempts)
	r.attempts++
	attemptNo := r.attempts

	attempt := &connectAttempt{done: make(chan struct{})}
	r.attempt = attempt
	notify := r.transitionLocked(StateConnecting)

	r.reconnectTimer = time.AfterFunc(delay, func() {
		r.runConnect(attempt, true)
	})

	return func() {
		r.logger.WithFields(logrus.Fields{
			"attempt": attemptNo,
			"delay":   delay,
		}).Warn("reconnect scheduled")
		notify()
		if r.observer != nil {
			r.observer.OnReconnectAttempt(attemptNo, delay)
		}
	}
}

// handleEstablished finalizes a connection attempt from the
// connection_established frame: capture the socket id, reset the attempt
// counter, start keepalive, resolve waiters and replay subscriptions.
// Frames delivered by a connection that is no longer current are ignored.
func (r *RealtimeClient) handleEstablished(conn *websocket.Conn, frame *Frame) {
	var payload struct {
		SocketID string `json:"socket_id"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		r.emitError(NewError(ErrorTypeProtocol, "malformed connection_established payload", err))
		return
	}
	if payload.SocketID == "" {
		r.emitError(NewError(ErrorTypeProtocol, "connection_established frame missing socket_id", ErrInvalidResponse))
		return
	}

	r.mu.Lock()
	if r.conn != conn {
		// Disconnect raced the dispatch; the establishment is stale.
		r.mu.Unlock()
		return
	}
	r.socketID = payload.SocketID
	r.attempts = 0
	attempt := r.attempt
	r.attempt = nil
	r.startKeepaliveLocked()
	notify := r.transitionLocked(StateConnected)
	r.mu.Unlock()

	r.logger.WithField("socket_id", payload.SocketID).Debug("connection established")

	notify()
	if attempt != nil {
		attempt.resolve(nil)
	}
	r.replaySubscriptions()
}

// startKeepaliveLocked launches the ping ticker for the current connection.
// Caller holds mu.
func (r *RealtimeClient) startKeepaliveLocked() {
	r.stopKeepaliveLocked()

	stop := make(chan struct{})
	r.keepaliveStop = stop
	interval := r.config.Realtime.PingInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.writeFrame(&Frame{Event: eventPing}); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopKeepaliveLocked stops the ping ticker. Caller holds mu.
func (r *RealtimeClient) stopKeepaliveLocked() {
	if r.keepaliveStop != nil {
		close(r.keepaliveStop)
		r.keepaliveStop = nil
	}
}

// transitionLocked updates the connection state and returns the notifier
// for the change. Caller holds mu; the notifier must run after unlock.
func (r *RealtimeClient) transitionLocked(next ConnectionState) func() {
	if r.state == next {
		return func() {}
	}
	prev := r.state
	r.state = next

	return func() {
		r.logger.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   next.String(),
		}).Debug("connection state changed")
		if r.observer != nil {
			r.observer.OnConnectionStateChange(prev, next)
		}
		if cb := r.callbacks.getStateChanged(); cb != nil {
			cb(next)
		}
	}
}

// writeFrame marshals and writes one frame to the current connection
func (r *RealtimeClient) writeFrame(frame *Frame) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return NewError(ErrorTypeSerialization, "failed to encode frame", err)
	}

	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, data)
	r.writeMu.Unlock()

	if err != nil {
		return NewError(ErrorTypeTransport, "failed to send "+frame.Event+" frame", err)
	}

	if r.observer != nil {
		r.observer.OnFrameSent(frame.Event)
	}

	return nil
}

// emitError delivers an error to the registered handler, or logs it when
// no handler is set.
func (r *RealtimeClient) emitError(err error) {
	if cb := r.callbacks.getErrorHandler(); cb != nil {
		cb(err)
		return
	}
	r.logger.WithError(err).Warn("realtime error")
}

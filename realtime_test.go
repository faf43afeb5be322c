package spaceport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// realtimeHarness is a scripted realtime server backed by a real WebSocket
// listener. Every accepted connection is handed to the test, which drives the
// protocol by hand: establish, acknowledge, reject, or drop.
type realtimeHarness struct {
	t         *testing.T
	server    *httptest.Server
	conns     chan *serverConn
	closeOnce sync.Once
}

// serverConn is the server side of one client connection.
type serverConn struct {
	t        *testing.T
	path     string
	conn     *websocket.Conn
	frames   chan Frame
	closed   chan struct{}
	closeErr error
}

func newRealtimeHarness(t *testing.T) *realtimeHarness {
	t.Helper()

	h := &realtimeHarness{t: t, conns: make(chan *serverConn, 4)}
	upgrader := websocket.Upgrader{}

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		sc := &serverConn{
			t:      t,
			path:   r.URL.Path,
			conn:   conn,
			frames: make(chan Frame, 32),
			closed: make(chan struct{}),
		}
		h.conns <- sc

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				sc.closeErr = err
				close(sc.closed)
				return
			}
			var frame Frame
			if json.Unmarshal(data, &frame) == nil {
				sc.frames <- frame
			}
		}
	}))

	t.Cleanup(h.close)
	return h
}

func (h *realtimeHarness) close() {
	h.closeOnce.Do(h.server.Close)
}

func (h *realtimeHarness) endpoint() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

// accept waits for the next client connection
func (h *realtimeHarness) accept() *serverConn {
	h.t.Helper()
	select {
	case sc := <-h.conns:
		return sc
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a client connection")
		return nil
	}
}

// assertNoConnection verifies no new connection arrives within the window
func (h *realtimeHarness) assertNoConnection(window time.Duration) {
	h.t.Helper()
	select {
	case <-h.conns:
		h.t.Fatal("unexpected client connection")
	case <-time.After(window):
	}
}

func (c *serverConn) send(frame Frame) {
	c.t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

// establish acknowledges the connection with the given socket id
func (c *serverConn) establish(socketID string) {
	c.t.Helper()
	c.send(Frame{
		Event: eventConnectionEstablished,
		Data:  json.RawMessage(fmt.Sprintf(`{"socket_id":%q}`, socketID)),
	})
}

// next returns the next frame sent by the client
func (c *serverConn) next() Frame {
	c.t.Helper()
	select {
	case frame := <-c.frames:
		return frame
	case <-time.After(2 * time.Second):
		c.t.Fatal("timed out waiting for a client frame")
		return Frame{}
	}
}

// assertNoFrame verifies the client stays quiet for the window
func (c *serverConn) assertNoFrame(window time.Duration) {
	c.t.Helper()
	select {
	case frame := <-c.frames:
		c.t.Fatalf("unexpected %s frame", frame.Event)
	case <-time.After(window):
	}
}

// closeAbnormal drops the connection without a close handshake
func (c *serverConn) closeAbnormal() {
	c.conn.Close()
}

// closeNormal starts a clean close handshake with code 1000
func (c *serverConn) closeNormal() {
	c.t.Helper()
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// waitClosed blocks until the client side goes away and returns the read
// error the server observed.
func (c *serverConn) waitClosed() error {
	c.t.Helper()
	select {
	case <-c.closed:
		return c.closeErr
	case <-time.After(2 * time.Second):
		c.t.Fatal("timed out waiting for the connection to close")
		return nil
	}
}

func newRealtimeTestClient(t *testing.T, h *realtimeHarness, opts ...func(*Config)) *RealtimeClient {
	t.Helper()

	config := DefaultConfig().
		WithProject("test-app").
		WithRealtimeEndpoint(h.endpoint()).
		WithTokenSource(StaticTokenSource(signTestToken(t, jwt.MapClaims{"id": "u-1"}))).
		WithPingInterval(time.Minute)

	for _, opt := range opts {
		opt(config)
	}

	client, err := NewClient(config)
	require.NoError(t, err, "Failed to create client")
	t.Cleanup(func() { client.Close() })

	return client.Realtime()
}

// connectEstablished drives Connect through establishment with the given
// socket id and returns the server side of the connection.
func connectEstablished(t *testing.T, h *realtimeHarness, rt *RealtimeClient, socketID string) *serverConn {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errCh <- rt.Connect(ctx)
	}()

	sc := h.accept()
	sc.establish(socketID)

	select {
	case err := <-errCh:
		require.NoError(t, err, "Connect should succeed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Connect")
	}

	return sc
}

// subscribeAck runs SubscribeToChannel, acknowledges it server-side and
// returns the signin and subscribe frames the server received.
func subscribeAck(t *testing.T, rt *RealtimeClient, sc *serverConn, channelID string) (Frame, Frame) {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.SubscribeToChannel(context.Background(), channelID)
	}()

	signin := sc.next()
	subscribe := sc.next()
	sc.send(Frame{Event: eventSubscriptionSucceeded, Channel: chatChannelName(channelID)})

	select {
	case err := <-errCh:
		require.NoError(t, err, "SubscribeToChannel should succeed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SubscribeToChannel")
	}

	return signin, subscribe
}

func waitOn[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func TestRealtime_Connect(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h, func(c *Config) {
		c.WithPingInterval(30 * time.Millisecond)
	})

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errCh <- rt.Connect(ctx)
	}()

	sc := h.accept()
	assert.Equal(t, "/app/test-app", sc.path, "Dial path should carry the project id")
	assert.Equal(t, StateConnecting, rt.ConnectionState())

	sc.establish("abc")
	require.NoError(t, waitOn(t, errCh, "Connect"), "Connect should resolve on establishment")

	assert.Equal(t, StateConnected, rt.ConnectionState())
	assert.Equal(t, "abc", rt.SocketID())

	// Keepalive starts with the connection
	ping := sc.next()
	assert.Equal(t, eventPing, ping.Event)
}

func TestRealtime_ConnectIdempotent(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	const callers = 3
	start := make(chan struct{})
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			<-start
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			errs <- rt.Connect(ctx)
		}()
	}
	close(start)

	sc := h.accept()
	sc.establish("abc")

	for i := 0; i < callers; i++ {
		require.NoError(t, waitOn(t, errs, "Connect"), "Every caller should resolve")
	}

	// Concurrent callers share one attempt, and connecting again while
	// connected is a no-op.
	require.NoError(t, rt.Connect(context.Background()))
	h.assertNoConnection(100 * time.Millisecond)
}

func TestRealtime_ConnectWithoutProject(t *testing.T) {
	h := newRealtimeHarness(t)

	config := DefaultConfig().WithRealtimeEndpoint(h.endpoint())
	client, err := NewClient(config)
	require.NoError(t, err)
	defer client.Close()

	rt := client.Realtime()
	err = rt.Connect(context.Background())
	assert.ErrorContains(t, err, "project")
	assert.Equal(t, StateDisconnected, rt.ConnectionState())
}

func TestRealtime_ConnectDialFailure(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	config := DefaultConfig().
		WithProject("test-app").
		WithRealtimeEndpoint(endpoint)
	client, err := NewClient(config)
	require.NoError(t, err)
	defer client.Close()

	rt := client.Realtime()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = rt.Connect(ctx)
	require.Error(t, err, "Connect should fail against a dead endpoint")
	assert.Equal(t, StateError, rt.ConnectionState())
	assert.True(t, IsRetryable(err), "Dial failures should be retryable")
}

func TestRealtime_ConnectContextCanceled(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.Connect(ctx)
	}()

	sc := h.accept()
	cancel()

	err := waitOn(t, errCh, "Connect")
	assert.ErrorIs(t, err, context.Canceled, "Abandoning the wait should surface the context's own error")

	// The shared attempt keeps running: establishment still lands and the
	// client ends up connected.
	sc.establish("abc")
	assert.Eventually(t, func() bool {
		return rt.ConnectionState() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "abc", rt.SocketID())
}

func TestRealtime_Disconnect(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")
	subscribeAck(t, rt, sc, "42")

	require.NoError(t, rt.Disconnect())

	assert.Equal(t, StateDisconnected, rt.ConnectionState())
	assert.Empty(t, rt.SocketID())

	closeErr := sc.waitClosed()
	assert.True(t, websocket.IsCloseError(closeErr, websocket.CloseNormalClosure),
		"Server should see a normal closure, got %v", closeErr)

	// No reconnect after a deliberate disconnect
	h.assertNoConnection(150 * time.Millisecond)

	// The registry was cleared, so there is nothing left to unsubscribe
	require.NoError(t, rt.UnsubscribeFromChannel("42"))

	require.NoError(t, rt.Disconnect(), "Disconnect should be idempotent")
}

func TestRealtime_StaleEstablishmentAfterDisconnect(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	rt.mu.Lock()
	conn := rt.conn
	rt.mu.Unlock()
	require.NotNil(t, conn)

	require.NoError(t, rt.Disconnect())
	sc.waitClosed()

	// An establishment frame already in flight when Disconnect lands belongs
	// to the old connection and must not revive the client.
	rt.dispatch(conn, &Frame{
		Event: eventConnectionEstablished,
		Data:  json.RawMessage(`{"socket_id":"zzz"}`),
	})

	assert.Equal(t, StateDisconnected, rt.ConnectionState(), "Stale establishment should not change the state")
	assert.Empty(t, rt.SocketID())

	// The client stays usable: a fresh Connect dials a new connection
	connectEstablished(t, h, rt, "def")
	assert.Equal(t, "def", rt.SocketID())
}

func TestRealtime_Subscribe(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")
	signin, subscribe := subscribeAck(t, rt, sc, "42")

	require.Equal(t, eventSignin, signin.Event)
	var auth ChannelAuth
	require.NoError(t, json.Unmarshal(signin.Data, &auth))
	assert.NotEmpty(t, auth.Signature)
	assert.Equal(t, "42", auth.ChannelID)
	assert.JSONEq(t, `{"id":"u-1"}`, string(auth.UserData))

	require.Equal(t, eventSubscribe, subscribe.Event)
	assert.Equal(t, "chat-42", subscribe.Channel)
	assert.JSONEq(t, string(signin.Data), string(subscribe.Data), "Both frames should carry the same auth")

	// Subscribing to the same channel again sends nothing
	require.NoError(t, rt.SubscribeToChannel(context.Background(), "42"))
	sc.assertNoFrame(100 * time.Millisecond)
}

func TestRealtime_SubscribeRejected(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.SubscribeToChannel(context.Background(), "42")
	}()

	sc.next() // signin
	sc.next() // subscribe
	sc.send(Frame{
		Event:   eventSubscriptionError,
		Channel: "chat-42",
		Data:    json.RawMessage(`{"error":"denied"}`),
	})

	err := waitOn(t, errCh, "SubscribeToChannel")
	require.Error(t, err, "Rejected subscription should fail")
	assert.ErrorContains(t, err, "denied")
	assert.ErrorIs(t, err, ErrSubscriptionRejected)

	var enhancedErr *Error
	if assert.ErrorAs(t, err, &enhancedErr) {
		assert.Equal(t, ErrorTypeSubscription, enhancedErr.Type)
		require.NotNil(t, enhancedErr.Context)
		assert.Equal(t, "chat-42", enhancedErr.Context.Channel)
	}

	// The registration was rolled back: subscribing again sends a fresh
	// frame pair instead of short-circuiting.
	subscribeAck(t, rt, sc, "42")
}

func TestRealtime_SubscribeTimeout(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h, func(c *Config) {
		c.WithSubscribeTimeout(60 * time.Millisecond)
	})

	sc := connectEstablished(t, h, rt, "abc")

	err := rt.SubscribeToChannel(context.Background(), "42")
	assert.ErrorIs(t, err, ErrSubscriptionTimeout)

	// The frames went out but the registration was rolled back
	assert.Equal(t, eventSignin, sc.next().Event)
	assert.Equal(t, eventSubscribe, sc.next().Event)
	require.NoError(t, rt.UnsubscribeFromChannel("42"))
	sc.assertNoFrame(100 * time.Millisecond)
}

func TestRealtime_SubscribeContextCanceled(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.SubscribeToChannel(ctx, "42")
	}()

	// Cancel once the frame pair is out and the caller is waiting
	assert.Equal(t, eventSignin, sc.next().Event)
	assert.Equal(t, eventSubscribe, sc.next().Event)
	cancel()

	err := waitOn(t, errCh, "SubscribeToChannel")
	assert.ErrorIs(t, err, context.Canceled, "Cancellation should surface the context's own error")

	// The registration was rolled back
	require.NoError(t, rt.UnsubscribeFromChannel("42"))
	sc.assertNoFrame(100 * time.Millisecond)
}

func TestRealtime_DisconnectFailsPendingSubscribe(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.SubscribeToChannel(context.Background(), "42")
	}()

	// Disconnect once the frame pair is out and the caller is waiting on
	// the acknowledgement.
	assert.Equal(t, eventSignin, sc.next().Event)
	assert.Equal(t, eventSubscribe, sc.next().Event)
	require.NoError(t, rt.Disconnect())

	// The waiter fails immediately instead of riding out the subscribe
	// timeout.
	err := waitOn(t, errCh, "SubscribeToChannel")
	assert.ErrorIs(t, err, ErrNotConnected)

	var enhancedErr *Error
	if assert.ErrorAs(t, err, &enhancedErr) {
		assert.Equal(t, ErrorTypeClient, enhancedErr.Type)
		require.NotNil(t, enhancedErr.Context)
		assert.Equal(t, "chat-42", enhancedErr.Context.Channel)
	}

	assert.Equal(t, StateDisconnected, rt.ConnectionState())
}

func TestRealtime_SubscribeNotConnected(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	ctx := context.Background()

	err := rt.SubscribeToChannel(ctx, "42")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = rt.SubscribeToSupport(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = rt.SubscribeToChannel(ctx, "")
	assert.ErrorContains(t, err, "channel id cannot be empty")

	err = rt.UnsubscribeFromChannel("")
	assert.ErrorContains(t, err, "channel id cannot be empty")
}

func TestRealtime_Unsubscribe(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")
	subscribeAck(t, rt, sc, "42")

	require.NoError(t, rt.UnsubscribeFromChannel("42"))
	frame := sc.next()
	assert.Equal(t, eventUnsubscribe, frame.Event)
	assert.Equal(t, "chat-42", frame.Channel)

	// Unsubscribing from a channel that was never subscribed is silent
	require.NoError(t, rt.UnsubscribeFromChannel("99"))
	sc.assertNoFrame(100 * time.Millisecond)
}

func TestRealtime_SubscribeToSupport(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	// No acknowledgement is awaited for the support channel
	require.NoError(t, rt.SubscribeToSupport(context.Background()))

	signin := sc.next()
	require.Equal(t, eventSignin, signin.Event)
	var auth ChannelAuth
	require.NoError(t, json.Unmarshal(signin.Data, &auth))
	assert.Equal(t, "private-space", auth.ChannelID)

	subscribe := sc.next()
	assert.Equal(t, eventSubscribe, subscribe.Event)
	assert.Equal(t, "private-space", subscribe.Channel)

	require.NoError(t, rt.SubscribeToSupport(context.Background()))
	sc.assertNoFrame(100 * time.Millisecond)
}

func TestRealtime_SubscribeCustomAuth(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")

	custom := &ChannelAuth{
		Signature: "external-signature",
		UserData:  json.RawMessage(`{"id":"ext-1"}`),
		ChannelID: "42",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.SubscribeToChannel(context.Background(), "42", custom)
	}()

	signin := sc.next()
	var auth ChannelAuth
	require.NoError(t, json.Unmarshal(signin.Data, &auth))
	assert.Equal(t, "external-signature", auth.Signature, "Caller-provided auth should be used as-is")

	sc.next() // subscribe
	sc.send(Frame{Event: eventSubscriptionSucceeded, Channel: "chat-42"})
	require.NoError(t, waitOn(t, errCh, "SubscribeToChannel"))
}

func TestRealtime_ReconnectAndReplay(t *testing.T) {
	h := newRealtimeHarness(t)
	obs := &recordingObserver{}
	rt := newRealtimeTestClient(t, h, func(c *Config) {
		c.WithObserver(obs).WithReconnectDelay(20*time.Millisecond, 100*time.Millisecond)
	})

	sc1 := connectEstablished(t, h, rt, "abc")
	subscribeAck(t, rt, sc1, "42")

	sc1.closeAbnormal()

	// The client redials after the backoff delay and the registered channel
	// is replayed on the new connection.
	sc2 := h.accept()
	sc2.establish("def")

	signin := sc2.next()
	assert.Equal(t, eventSignin, signin.Event)
	subscribe := sc2.next()
	assert.Equal(t, eventSubscribe, subscribe.Event)
	assert.Equal(t, "chat-42", subscribe.Channel)
	sc2.send(Frame{Event: eventSubscriptionSucceeded, Channel: "chat-42"})

	assert.Equal(t, StateConnected, rt.ConnectionState())
	assert.Equal(t, "def", rt.SocketID())

	reconnects := obs.reconnectLog()
	require.Len(t, reconnects, 1)
	assert.Equal(t, 1, reconnects[0].attempt)
	assert.Equal(t, 20*time.Millisecond, reconnects[0].delay)

	assert.Contains(t, obs.connectionChangeLog(), "connected->connecting")
}

func TestRealtime_NormalCloseKeepsRegistry(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	sc := connectEstablished(t, h, rt, "abc")
	subscribeAck(t, rt, sc, "42")

	sc.closeNormal()

	assert.Eventually(t, func() bool {
		return rt.ConnectionState() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "Clean server close should settle in StateDisconnected")

	// A normal closure does not trigger reconnects
	h.assertNoConnection(150 * time.Millisecond)
	assert.Empty(t, rt.SocketID())

	// Unlike Disconnect, a server-initiated close keeps registrations: the
	// unsubscribe finds the channel but has no connection to send on.
	err := rt.UnsubscribeFromChannel("42")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRealtime_AutoReconnectDisabled(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h, func(c *Config) {
		c.WithAutoReconnect(false)
	})

	sc := connectEstablished(t, h, rt, "abc")
	sc.closeAbnormal()

	assert.Eventually(t, func() bool {
		return rt.ConnectionState() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	h.assertNoConnection(150 * time.Millisecond)
}

func TestRealtime_ReconnectBudgetSpent(t *testing.T) {
	h := newRealtimeHarness(t)
	obs := &recordingObserver{}
	rt := newRealtimeTestClient(t, h, func(c *Config) {
		c.WithObserver(obs).
			WithMaxReconnectAttempts(1).
			WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond)
	})

	sc := connectEstablished(t, h, rt, "abc")

	// Stop the listener first so the reconnect dial fails, then drop the
	// live connection.
	h.close()
	sc.closeAbnormal()

	assert.Eventually(t, func() bool {
		return rt.ConnectionState() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "Spent reconnect budget should settle in StateDisconnected")

	reconnects := obs.reconnectLog()
	require.Len(t, reconnects, 1, "Only the budgeted attempt should be made")
	assert.Equal(t, 1, reconnects[0].attempt)
}

func TestRealtime_EventDispatch(t *testing.T) {
	h := newRealtimeHarness(t)
	rt := newRealtimeTestClient(t, h)

	received := make(chan Message, 1)
	deleted := make(chan Message, 1)
	counts := make(chan SupportCount, 1)
	channels := make(chan SupportChannel, 1)
	rtErrs := make(chan error, 4)

	rt.OnMessageReceived(func(m Message) { received <- m })
	rt.OnMessageDeleted(func(m Message) { deleted <- m })
	rt.OnSupportCountUpdated(func(c SupportCount) { counts <- c })
	rt.OnSupportChannelUpdated(func(c SupportChannel) { channels <- c })
	rt.OnError(func(err error) { rtErrs <- err })

	sc := connectEstablished(t, h, rt, "abc")

	sc.send(Frame{
		Event:   eventUpsertMessage,
		Channel: "chat-42",
		Data:    json.RawMessage(`{"id":"m-1","channel_id":"42","author_id":"u-1","content":"hello"}`),
	})
	sc.send(Frame{
		Event:   eventRemoveMessage,
		Channel: "chat-42",
		Data:    json.RawMessage(`{"id":"m-1","channel_id":"42"}`),
	})
	sc.send(Frame{
		Event: eventUpdateSupportCount,
		Data:  json.RawMessage(`{"channel_id":"s-1","count":3}`),
	})
	sc.send(Frame{
		Event: eventUpdateSupportChannel,
		Data:  json.RawMessage(`{"id":"s-1","name":"Support","message_count":7}`),
	})
	sc.send(Frame{Event: "unknown_event"})
	sc.send(Frame{Event: eventUpsertMessage, Data: json.RawMessage(`"not an object"`)})
	sc.send(Frame{Event: eventError, Data: json.RawMessage(`{"message":"quota exceeded"}`)})

	msg := waitOn(t, received, "upsert_message")
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "42", msg.ChannelID)
	assert.Equal(t, "hello", msg.Content)

	gone := waitOn(t, deleted, "remove_message")
	assert.Equal(t, "m-1", gone.ID)

	count := waitOn(t, counts, "update_support_count")
	assert.Equal(t, 3, count.Count)

	channel := waitOn(t, channels, "update_support_channel")
	assert.Equal(t, "Support", channel.Name)
	assert.Equal(t, 7, channel.MessageCount)

	// Frames are handled in arrival order: first the malformed payload,
	// then the server error frame. Unknown events produce nothing.
	err := waitOn(t, rtErrs, "malformed payload error")
	assert.ErrorContains(t, err, "malformed upsert_message payload")

	err = waitOn(t, rtErrs, "server error")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.ErrorIs(t, err, ErrServerError)

	select {
	case err := <-rtErrs:
		t.Fatalf("unexpected realtime error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

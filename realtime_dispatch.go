package spaceport

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Protocol event names. Outbound frames carry signin, subscribe, unsubscribe
// and ping; everything else arrives from the server.
const (
	eventConnectionEstablished = "connection_established"
	eventError                 = "error"
	eventPing                  = "ping"
	eventPong                  = "pong"
	eventSignin                = "signin"
	eventSubscribe             = "subscribe"
	eventUnsubscribe           = "unsubscribe"
	eventSubscriptionSucceeded = "subscription_succeeded"
	eventSubscriptionError     = "subscription_error"
	eventUpsertMessage         = "upsert_message"
	eventRemoveMessage         = "remove_message"
	eventUpdateSupportCount    = "update_support_count"
	eventUpdateSupportChannel  = "update_support_channel"
)

// supportChannelName is the fixed channel carrying support events.
const supportChannelName = "private-space"

// chatChannelPrefix is prepended to chat channel ids on the wire.
const chatChannelPrefix = "chat-"

// chatChannelName returns the wire name for a chat channel id
func chatChannelName(channelID string) string {
	return chatChannelPrefix + channelID
}

// Frame is the unit of realtime communication in both directions.
// Event selects the handling, Channel scopes channel-bound frames and Data
// carries the event payload.
type Frame struct {
	// Event is the protocol event name
	Event string `json:"event"`
	// Channel is the channel name for channel-scoped frames
	Channel string `json:"channel,omitempty"`
	// Data is the JSON-encoded event payload
	Data json.RawMessage `json:"data,omitempty"`
}

// SupportCount is the payload of update_support_count events.
type SupportCount struct {
	// ChannelID is the support channel the count refers to
	ChannelID string `json:"channel_id"`
	// Count is the number of unresolved support messages
	Count int `json:"count"`
}

// SupportChannel is the payload of update_support_channel events.
type SupportChannel struct {
	// ID is the unique support channel identifier
	ID string `json:"id"`
	// Name is the display name
	Name string `json:"name"`
	// MessageCount is the number of messages in the channel
	MessageCount int `json:"message_count"`
	// UpdatedAt is when the channel last changed
	UpdatedAt time.Time `json:"updated_at"`
}

// callbacks holds the registered event handlers. One handler per category;
// registering again overwrites the previous handler.
type callbacks struct {
	mu              sync.RWMutex
	messageReceived func(Message)
	messageDeleted  func(Message)
	supportCount    func(SupportCount)
	supportChannel  func(SupportChannel)
	stateChanged    func(ConnectionState)
	errorHandler    func(error)
}

func (c *callbacks) setMessageReceived(fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageReceived = fn
}

func (c *callbacks) setMessageDeleted(fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageDeleted = fn
}

func (c *callbacks) setSupportCount(fn func(SupportCount)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supportCount = fn
}

func (c *callbacks) setSupportChannel(fn func(SupportChannel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supportChannel = fn
}

func (c *callbacks) setStateChanged(fn func(ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateChanged = fn
}

func (c *callbacks) setErrorHandler(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorHandler = fn
}

func (c *callbacks) getMessageReceived() func(Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messageReceived
}

func (c *callbacks) getMessageDeleted() func(Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messageDeleted
}

func (c *callbacks) getSupportCount() func(SupportCount) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportCount
}

func (c *callbacks) getSupportChannel() func(SupportChannel) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportChannel
}

func (c *callbacks) getStateChanged() func(ConnectionState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateChanged
}

func (c *callbacks) getErrorHandler() func(error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errorHandler
}

// dispatch routes one inbound frame to its handler. It is called from the
// read loop only, synchronously and in arrival order, after the frame has
// been offered to pending interceptors. conn is the connection the frame
// arrived on; handlers that mutate connection state use it to detect a
// teardown that raced the delivery.
//
// pong, subscription_succeeded and subscription_error have no default
// action here; subscription replies are consumed by interceptors and pongs
// need no handling. Unknown events are ignored.
func (r *RealtimeClient) dispatch(conn *websocket.Conn, frame *Frame) {
	switch frame.Event {
	case eventConnectionEstablished:
		r.handleEstablished(conn, frame)

	case eventError:
		r.emitError(NewError(ErrorTypeServer, decodeServerError(frame), ErrServerError))

	case eventUpsertMessage:
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			r.emitError(NewError(ErrorTypeProtocol, "malformed upsert_message payload", err))
			return
		}
		if cb := r.callbacks.getMessageReceived(); cb != nil {
			cb(msg)
		}

	case eventRemoveMessage:
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			r.emitError(NewError(ErrorTypeProtocol, "malformed remove_message payload", err))
			return
		}
		if cb := r.callbacks.getMessageDeleted(); cb != nil {
			cb(msg)
		}

	case eventUpdateSupportCount:
		var count SupportCount
		if err := json.Unmarshal(frame.Data, &count); err != nil {
			r.emitError(NewError(ErrorTypeProtocol, "malformed update_support_count payload", err))
			return
		}
		if cb := r.callbacks.getSupportCount(); cb != nil {
			cb(count)
		}

	case eventUpdateSupportChannel:
		var channel SupportChannel
		if err := json.Unmarshal(frame.Data, &channel); err != nil {
			r.emitError(NewError(ErrorTypeProtocol, "malformed update_support_channel payload", err))
			return
		}
		if cb := r.callbacks.getSupportChannel(); cb != nil {
			cb(channel)
		}

	case eventPong, eventSubscriptionSucceeded, eventSubscriptionError:
		// No default action.

	default:
		// Unknown events are ignored.
	}
}

// decodeServerError extracts the message from an error frame payload
func decodeServerError(frame *Frame) string {
	if len(frame.Data) > 0 {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil && payload.Message != "" {
			return payload.Message
		}
	}
	return "server error"
}

// decodeSubscriptionError extracts the rejection reason from a
// subscription_error frame payload
func decodeSubscriptionError(frame *Frame) string {
	if len(frame.Data) > 0 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return "subscription failed"
}

package spaceport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// subscriptionRegistry tracks the channel names this client is subscribed
// to. Registrations are provisional from the moment the subscribe frames go
// out and are rolled back on rejection or timeout. The registry survives
// reconnects; only Disconnect clears it.
type subscriptionRegistry struct {
	mu       sync.Mutex
	channels map[string]struct{}
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{channels: make(map[string]struct{})}
}

func (s *subscriptionRegistry) register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[name] = struct{}{}
}

// deregister removes a name, reporting whether it was registered
func (s *subscriptionRegistry) deregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[name]
	delete(s.channels, name)
	return ok
}

func (s *subscriptionRegistry) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[name]
	return ok
}

// names returns a snapshot of the registered channel names
func (s *subscriptionRegistry) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	return names
}

func (s *subscriptionRegistry) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]struct{})
}

// frameInterceptor is a one-shot watcher for a specific inbound frame.
// When a frame matches, the interceptor is removed from the list and the
// frame is delivered on matched. Interceptors observe frames without
// consuming them: every frame still reaches the dispatcher afterwards.
// A teardown that drains the list closes aborted instead; exactly one of
// the two channels ever fires.
type frameInterceptor struct {
	match   func(*Frame) bool
	matched chan *Frame
	aborted chan struct{}
}

// newSubscriptionInterceptor watches for the subscription reply of one
// channel, either subscription_succeeded or subscription_error.
func newSubscriptionInterceptor(channel string) *frameInterceptor {
	return &frameInterceptor{
		match: func(f *Frame) bool {
			if f.Channel != channel {
				return false
			}
			return f.Event == eventSubscriptionSucceeded || f.Event == eventSubscriptionError
		},
		matched: make(chan *Frame, 1),
		aborted: make(chan struct{}),
	}
}

// interceptorList holds pending frame interceptors in registration order.
type interceptorList struct {
	mu    sync.Mutex
	items []*frameInterceptor
}

func newInterceptorList() *interceptorList {
	return &interceptorList{}
}

func (l *interceptorList) add(interceptor *frameInterceptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, interceptor)
}

// remove reports whether the interceptor was still pending. A false return
// means the interceptor was already claimed, either by a matching frame on
// its way to matched or by a drain closing aborted.
func (l *interceptorList) remove(target *frameInterceptor) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, interceptor := range l.items {
		if interceptor == target {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// offer presents a frame to pending interceptors in order. The first match
// is removed from the list and receives the frame on its channel.
func (l *interceptorList) offer(frame *Frame) {
	l.mu.Lock()
	for i, interceptor := range l.items {
		if interceptor.match(frame) {
			l.items = append(l.items[:i], l.items[i+1:]...)
			l.mu.Unlock()
			interceptor.matched <- frame
			return
		}
	}
	l.mu.Unlock()
}

// drain removes every pending interceptor and closes its aborted channel,
// waking the waiters immediately. An interceptor leaves the list exactly
// once, through offer, remove or drain, so the close cannot double-fire.
func (l *interceptorList) drain() {
	l.mu.Lock()
	items := l.items
	l.items = nil
	l.mu.Unlock()

	for _, interceptor := range items {
		close(interceptor.aborted)
	}
}

// SubscribeToChannel subscribes to the chat channel with the given id and
// waits for the server acknowledgement.
//
// The connection must be established first; subscribing before
// connection_established fails with ErrNotConnected. Subscribing to an
// already-subscribed channel returns nil without sending anything.
//
// Auth is derived from the session credential unless an explicit ChannelAuth
// is passed. The call sends a signin frame followed by a subscribe frame,
// then waits up to SubscribeTimeout for the reply: a subscription_error
// rejects with ErrSubscriptionRejected carrying the server's reason, no
// reply rejects with ErrSubscriptionTimeout, and both roll the registration
// back. Context cancellation rolls back as well. A Disconnect while the
// wait is pending fails it immediately with ErrNotConnected.
//
// Subscriptions survive reconnects: after a dropped connection is
// re-established, every registered channel is resubscribed automatically.
//
// Example:
//
//	if err := client.Realtime().SubscribeToChannel(ctx, "42"); err != nil {
//	    if errors.Is(err, spaceport.ErrSubscriptionRejected) {
//	        log.Printf("not allowed in channel: %v", err)
//	    }
//	    return err
//	}
func (r *RealtimeClient) SubscribeToChannel(ctx context.Context, channelID string, auth ...*ChannelAuth) error {
	if channelID == "" {
		return fmt.Errorf("channel id cannot be empty")
	}
	if r.SocketID() == "" {
		return ErrNotConnected
	}

	name := chatChannelName(channelID)
	if r.registry.has(name) {
		return nil
	}

	channelAuth, err := r.resolveChannelAuth(channelID, auth)
	if err != nil {
		return err
	}

	return r.subscribeAndAwait(ctx, name, channelAuth)
}

// UnsubscribeFromChannel leaves a chat channel. Unsubscribing from a channel
// that was never subscribed is a silent no-op. The unsubscribe frame is
// fire-and-forget; no server acknowledgement is awaited and the registration
// is removed immediately.
func (r *RealtimeClient) UnsubscribeFromChannel(channelID string) error {
	if channelID == "" {
		return fmt.Errorf("channel id cannot be empty")
	}

	name := chatChannelName(channelID)
	if !r.registry.deregister(name) {
		return nil
	}

	return r.writeFrame(&Frame{Event: eventUnsubscribe, Channel: name})
}

// SubscribeToSupport subscribes to the fixed support channel. Unlike chat
// subscriptions no acknowledgement is awaited: the call returns as soon as
// the signin and subscribe frames are sent, and support events simply start
// flowing when the server accepts.
func (r *RealtimeClient) SubscribeToSupport(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.SocketID() == "" {
		return ErrNotConnected
	}
	if r.registry.has(supportChannelName) {
		return nil
	}

	auth, err := r.auth.generateChannelAuth(supportChannelName)
	if err != nil {
		return err
	}

	return r.sendSupportSubscription(auth)
}

// resolveChannelAuth picks the caller-provided auth or derives one
func (r *RealtimeClient) resolveChannelAuth(channelID string, auth []*ChannelAuth) (*ChannelAuth, error) {
	if len(auth) > 0 && auth[0] != nil {
		return auth[0], nil
	}
	return r.auth.generateChannelAuth(channelID)
}

// subscribeAndAwait sends the subscription frames for a channel and blocks
// until the server acknowledges, the timeout elapses, ctx is canceled or a
// disconnect drains the interceptor. The registration is provisional:
// rejection, timeout and disconnect roll it back.
func (r *RealtimeClient) subscribeAndAwait(ctx context.Context, name string, auth *ChannelAuth) error {
	interceptor := newSubscriptionInterceptor(name)
	r.interceptors.add(interceptor)
	r.registry.register(name)

	if err := r.sendSubscriptionFrames(name, auth); err != nil {
		r.interceptors.remove(interceptor)
		r.registry.deregister(name)
		return err
	}

	timer := time.NewTimer(r.config.Realtime.SubscribeTimeout)
	defer timer.Stop()

	select {
	case frame := <-interceptor.matched:
		return r.finishSubscription(name, frame)

	case <-interceptor.aborted:
		return r.abortSubscription(name)

	case <-timer.C:
		if !r.interceptors.remove(interceptor) {
			// The interceptor was already claimed: either the reply raced
			// the timeout and is on its way, or a disconnect drained it.
			select {
			case frame := <-interceptor.matched:
				return r.finishSubscription(name, frame)
			case <-interceptor.aborted:
				return r.abortSubscription(name)
			}
		}
		r.registry.deregister(name)
		err := NewError(ErrorTypeTimeout, "subscription timed out waiting for acknowledgement", ErrSubscriptionTimeout)
		return err.WithContext(&ErrorContext{Channel: name})

	case <-ctx.Done():
		if !r.interceptors.remove(interceptor) {
			select {
			case frame := <-interceptor.matched:
				return r.finishSubscription(name, frame)
			case <-interceptor.aborted:
				return r.abortSubscription(name)
			}
		}
		r.registry.deregister(name)
		return WrapError(ctx.Err(), ErrorTypeClient, "subscription canceled")
	}
}

// finishSubscription settles a subscription from its acknowledgement frame
func (r *RealtimeClient) finishSubscription(name string, frame *Frame) error {
	if frame.Event == eventSubscriptionSucceeded {
		return nil
	}

	r.registry.deregister(name)
	err := NewError(ErrorTypeSubscription, decodeSubscriptionError(frame), ErrSubscriptionRejected)
	return err.WithContext(&ErrorContext{Channel: name})
}

// abortSubscription settles a waiter whose interceptor was drained by a
// deliberate disconnect. No rollback here: Disconnect already cleared the
// registry, and any registration present now belongs to a newer subscribe.
func (r *RealtimeClient) abortSubscription(name string) error {
	err := NewError(ErrorTypeClient, "disconnected while awaiting subscription acknowledgement", ErrNotConnected)
	return err.WithContext(&ErrorContext{Channel: name})
}

// sendSubscriptionFrames writes the signin frame followed by the subscribe
// frame, both carrying the channel credential.
func (r *RealtimeClient) sendSubscriptionFrames(name string, auth *ChannelAuth) error {
	authData, err := json.Marshal(auth)
	if err != nil {
		return NewError(ErrorTypeSerialization, "failed to encode channel auth", err)
	}

	if err := r.writeFrame(&Frame{Event: eventSignin, Data: authData}); err != nil {
		return err
	}
	return r.writeFrame(&Frame{Event: eventSubscribe, Channel: name, Data: authData})
}

// sendSupportSubscription registers and sends the support channel frames
// without awaiting an acknowledgement.
func (r *RealtimeClient) sendSupportSubscription(auth *ChannelAuth) error {
	r.registry.register(supportChannelName)

	if err := r.sendSubscriptionFrames(supportChannelName, auth); err != nil {
		r.registry.deregister(supportChannelName)
		return err
	}

	return nil
}

// replaySubscriptions re-establishes every registered channel after a
// connection is (re)established. Each channel is replayed on its own
// goroutine with fresh auth; one failing channel never blocks the others.
// Failures are reported individually through the error callback.
func (r *RealtimeClient) replaySubscriptions() {
	for _, name := range r.registry.names() {
		go r.replaySubscription(name)
	}
}

func (r *RealtimeClient) replaySubscription(name string) {
	var err error

	switch {
	case name == supportChannelName:
		var auth *ChannelAuth
		if auth, err = r.auth.generateChannelAuth(supportChannelName); err == nil {
			err = r.sendSupportSubscription(auth)
		}

	case strings.HasPrefix(name, chatChannelPrefix):
		channelID := strings.TrimPrefix(name, chatChannelPrefix)
		var auth *ChannelAuth
		if auth, err = r.auth.generateChannelAuth(channelID); err == nil {
			err = r.subscribeAndAwait(context.Background(), name, auth)
		}

	default:
		return
	}

	if err != nil {
		r.logger.WithError(err).WithField("channel", name).Warn("failed to resubscribe channel")
		r.emitError(err)
	}
}

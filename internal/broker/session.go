package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
)

// DefaultInboxSize is the inbox capacity used when Options.InboxSize is unset.
const DefaultInboxSize = 16

// Options configures a Session.
type Options struct {
	// QoS is used for subscriptions, state publishes and availability.
	QoS byte

	// AvailabilityTopic receives a retained "online" once subscriptions are
	// in place and "offline" on Close. Empty disables availability.
	AvailabilityTopic string

	// InboxSize bounds queued inbound messages.
	InboxSize int
}

// Session is the broker session state machine: Disconnected or Connected,
// plus the subscriptions held in the current epoch.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Connect, EnsureSubscriptions, Publish and Drain are expected to be
//     called from one owner goroutine; transport callbacks only enqueue.
type Session struct {
	link      LinkState
	transport Transport
	opts      Options
	logger    Logger
	inbox     *inbox

	mu         sync.Mutex
	status     Status
	topics     map[string]struct{}
	epoch      uint64
	subscribed bool
}

// NewSession creates a disconnected session.
func NewSession(l LinkState, transport Transport, opts Options) *Session {
	return &Session{
		link:      l,
		transport: transport,
		opts:      opts,
		logger:    logging.Discard(),
		inbox:     newInbox(opts.InboxSize),
		status:    StatusDisconnected,
		topics:    make(map[string]struct{}),
	}
}

// SetLogger sets a logger for session events.
func (s *Session) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Connect establishes a fresh broker session as clientID.
//
// Any stale transport connection is dropped first. On success the session
// enters a new epoch with an empty subscription set.
//
// Returns:
//   - ErrNetworkUnavailable if the link is down (no I/O attempted)
//   - ErrHandshakeFailed wrapping the transport error if the broker rejects
//     or does not answer
func (s *Session) Connect(ctx context.Context, clientID string) error {
	if !s.link.IsConnected() {
		return ErrNetworkUnavailable
	}

	s.transport.Disconnect()
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.inbox.purge()

	if err := s.transport.Connect(ctx, clientID); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	s.mu.Lock()
	s.status = StatusConnected
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("broker session connected", "client_id", clientID, "epoch", epoch)
	return nil
}

// EnsureSubscriptions (re)subscribes to every required topic.
//
// The subscription set is cleared and rebuilt from topics, so the call is
// idempotent and safe to repeat after every Connect. When all subscriptions
// succeed, a retained "online" is published on the availability topic.
//
// Returns:
//   - ErrNotConnected if the session is not connected
//   - ErrSubscribeFailed wrapping the first transport failure
func (s *Session) EnsureSubscriptions(ctx context.Context, topics []string) error {
	s.mu.Lock()
	if s.status != StatusConnected || !s.transport.IsConnected() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.topics = make(map[string]struct{}, len(topics))
	s.subscribed = false
	epoch := s.epoch
	s.mu.Unlock()

	for _, topic := range topics {
		if err := s.transport.Subscribe(ctx, topic, s.opts.QoS, s.enqueueFor(epoch)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
		}

		s.mu.Lock()
		if s.epoch != epoch || s.status != StatusConnected {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s: session changed during subscribe", ErrSubscribeFailed, topic)
		}
		s.topics[topic] = struct{}{}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()

	s.logger.Info("subscriptions asserted", "topics", topics, "epoch", epoch)

	if s.opts.AvailabilityTopic != "" {
		if err := s.transport.Publish(ctx, s.opts.AvailabilityTopic, s.opts.QoS, true, []byte(availabilityOnline)); err != nil {
			s.logger.Warn("failed to publish availability", "topic", s.opts.AvailabilityTopic, "error", err)
		}
	}
	return nil
}

// Publish sends payload on topic.
//
// The size check happens before anything else, so an oversized payload
// never reaches the transport.
//
// Returns:
//   - ErrPayloadTooLarge if len(payload) > maxPayloadSize
//   - ErrNotConnected if the session is not healthy
//   - ErrPublishRejected wrapping the transport error
func (s *Session) Publish(ctx context.Context, topic string, payload []byte, maxPayloadSize int) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !s.IsHealthy() {
		return ErrNotConnected
	}

	if err := s.transport.Publish(ctx, topic, s.opts.QoS, false, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishRejected, err)
	}
	return nil
}

// IsHealthy reports whether the link is up, the transport is connected and
// the session believes it is connected.
func (s *Session) IsHealthy() bool {
	s.mu.Lock()
	connected := s.status == StatusConnected
	s.mu.Unlock()
	return connected && s.link.IsConnected() && s.transport.IsConnected()
}

// MarkDown forces the session to Disconnected, clears subscriptions, drops
// queued messages and closes the transport.
func (s *Session) MarkDown() {
	s.mu.Lock()
	wasConnected := s.status == StatusConnected
	s.resetLocked()
	s.mu.Unlock()

	s.inbox.purge()
	s.transport.Disconnect()

	if wasConnected {
		s.logger.Warn("broker session marked down")
	}
}

// Close publishes "offline" on the availability topic if possible and
// disconnects.
func (s *Session) Close(ctx context.Context) {
	if s.opts.AvailabilityTopic != "" && s.IsHealthy() {
		if err := s.transport.Publish(ctx, s.opts.AvailabilityTopic, s.opts.QoS, true, []byte(availabilityOffline)); err != nil {
			s.logger.Warn("failed to publish offline status", "error", err)
		}
	}
	s.MarkDown()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	return State{
		Status:     s.status,
		Topics:     topics,
		Epoch:      s.epoch,
		Subscribed: s.subscribed,
	}
}

// Drain dispatches up to limit queued messages to handler on the caller's
// goroutine (limit <= 0 drains everything queued).
//
// Only messages from the current epoch are dispatched, and only while the
// session is healthy and subscribed; everything else is discarded.
//
// Returns the number of messages dispatched.
func (s *Session) Drain(handler func(Message), limit int) int {
	msgs := s.inbox.take(limit)
	if len(msgs) == 0 {
		return 0
	}

	healthy := s.IsHealthy()
	s.mu.Lock()
	epoch := s.epoch
	subscribed := s.subscribed
	s.mu.Unlock()

	dispatched := 0
	for _, m := range msgs {
		if !healthy || !subscribed || m.Epoch != epoch {
			s.inbox.discarded.Add(1)
			s.logger.Debug("discarding inbound message", "topic", m.Topic, "epoch", m.Epoch, "current_epoch", epoch)
			continue
		}
		handler(m)
		dispatched++
	}
	return dispatched
}

// Pending returns the number of queued inbound messages.
func (s *Session) Pending() int {
	return s.inbox.size()
}

// Stats returns inbox loss counters.
func (s *Session) Stats() Stats {
	return Stats{
		Dropped:   s.inbox.dropped.Load(),
		Discarded: s.inbox.discarded.Load(),
	}
}

// enqueueFor returns a transport handler that tags messages with epoch.
func (s *Session) enqueueFor(epoch uint64) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		msg := Message{
			Topic:   topic,
			Payload: append([]byte(nil), payload...),
			Epoch:   epoch,
		}
		if err := s.inbox.offer(msg); err != nil {
			return fmt.Errorf("%s: %w", topic, err)
		}
		return nil
	}
}

// resetLocked clears connection state. Caller holds s.mu.
func (s *Session) resetLocked() {
	s.status = StatusDisconnected
	s.topics = make(map[string]struct{})
	s.subscribed = false
}

// Availability payloads.
const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

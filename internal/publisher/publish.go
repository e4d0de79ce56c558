package publisher

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-node/internal/broker"
)

// Session is the subset of *broker.Session used for publishing.
type Session interface {
	IsHealthy() bool
	Publish(ctx context.Context, topic string, payload []byte, maxPayloadSize int) error
}

// PublishState encodes snapshot and publishes it on topic.
//
// Checks run before any I/O, in order: payload size, then session health.
//
// Parameters:
//   - ctx: Bounds the publish acknowledgement wait
//   - session: The broker session to publish through
//   - topic: State topic (e.g. "home/arduino/sensors")
//   - snapshot: Current device state
//   - maxPayloadSize: Upper bound on the encoded message, in bytes
//
// Returns:
//   - []byte: The encoded payload (also on error, for logging and history)
//   - error: broker.ErrPayloadTooLarge, broker.ErrNotConnected or
//     broker.ErrPublishRejected
func PublishState(ctx context.Context, session Session, topic string, snapshot Snapshot, maxPayloadSize int) ([]byte, error) {
	payload := Encode(snapshot)

	if len(payload) > maxPayloadSize {
		return payload, fmt.Errorf("%w: state message is %d bytes, limit %d", broker.ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !session.IsHealthy() {
		return payload, broker.ErrNotConnected
	}

	if err := session.Publish(ctx, topic, payload, maxPayloadSize); err != nil {
		return payload, fmt.Errorf("publishing state: %w", err)
	}
	return payload, nil
}

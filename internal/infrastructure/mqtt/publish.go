package mqtt

import (
	"context"
	"fmt"
)

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - ctx: Cancels the wait for the broker acknowledgement
//   - topic: The topic to publish to (e.g., "home/arduino/sensors")
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//   - payload: The message payload
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Payload size limits are the caller's concern; the transport publishes
// whatever it is given.
//
// Returns:
//   - error: nil on success, ErrNotConnected, or ErrPublishFailed wrapping the cause
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client, err := c.current()
	if err != nil {
		return err
	}

	token := client.Publish(topic, qos, retained, payload)
	if err := waitToken(ctx, token, defaultOperationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}

package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a rejected subscription.
const subackFailure = 0x80

// Subscribe registers a handler for messages on the specified topic filter.
//
// Filters can include MQTT wildcards:
//   - + (single-level): "home/+/control" matches any node
//   - # (multi-level): "home/#" matches everything under home
//
// Subscriptions are not tracked or restored: the connection uses a clean
// session, so after every Connect the owner must subscribe again.
//
// Parameters:
//   - ctx: Cancels the wait for the SUBACK
//   - filter: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, ErrNotConnected, or ErrSubscribeFailed wrapping the cause
func (c *Client) Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	client, err := c.current()
	if err != nil {
		return err
	}

	token := client.Subscribe(filter, qos, c.wrapHandler(handler))
	if err := waitToken(ctx, token, defaultOperationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
	}
	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[filter]; found && code == subackFailure {
			return fmt.Errorf("%w: %s: broker refused subscription", ErrSubscribeFailed, filter)
		}
	}

	return nil
}

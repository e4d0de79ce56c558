// Package mqtt provides the broker transport for Gray Logic Node.
//
// This package manages:
//   - A single MQTT connection per Connect call (clean session)
//   - Message publishing with QoS acknowledgement waits
//   - Topic subscriptions with wildcard validation
//   - Last Will and Testament (LWT) on the availability topic
//   - Connection-lost detection
//
// # Architecture
//
// The transport deliberately has no automatic reconnect. The node's
// reconnect supervisor decides when to retry, and the broker session
// re-issues every subscription after each successful Connect:
//
//	supervisor → broker.Session → mqtt.Client → broker
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is off-premises
//   - Credentials are never logged
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(ctx, cfg.MQTT.Broker.ClientID); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	err := client.Subscribe(ctx, "home/arduino/control", 0,
//	    func(topic string, payload []byte) error {
//	        return inbox.Offer(topic, payload)
//	    })
package mqtt

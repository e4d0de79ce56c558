// Package broker holds the node's MQTT session: connection status, the set
// of active subscriptions, and the inbound message queue.
//
// A Session sits on top of a Transport (normally *mqtt.Client) and a link
// whose IsConnected gates every operation. Each successful Connect starts
// a new epoch with an empty subscription set; EnsureSubscriptions must run
// again before inbound messages are dispatched.
//
// Inbound messages are never dispatched from transport goroutines. They are
// queued in a bounded inbox tagged with the epoch they arrived in, and the
// owner drains the inbox on its own goroutine. Messages from an earlier
// epoch, or drained while the session is unhealthy, are discarded.
package broker

package broker

import "context"

// Status is the broker connection status as seen by the session.
type Status string

// Session statuses.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

// State is a snapshot of the session.
type State struct {
	Status Status `json:"status"`

	// Topics are the subscriptions active in the current epoch, sorted.
	// Always empty while disconnected.
	Topics []string `json:"topics"`

	// Epoch increments on every successful Connect.
	Epoch uint64 `json:"epoch"`

	// Subscribed is true once EnsureSubscriptions has succeeded in this epoch.
	Subscribed bool `json:"subscribed"`
}

// Message is an inbound message tagged with the epoch it arrived in.
type Message struct {
	Topic   string
	Payload []byte
	Epoch   uint64
}

// Stats counts inbox losses.
type Stats struct {
	// Dropped counts messages refused because the inbox was full.
	Dropped uint64 `json:"dropped"`

	// Discarded counts messages drained from a stale epoch or while unhealthy.
	Discarded uint64 `json:"discarded"`
}

// Transport is a single broker connection. *mqtt.Client implements it.
//
// Transport does not reconnect or restore subscriptions on its own.
type Transport interface {
	Connect(ctx context.Context, clientID string) error
	Subscribe(ctx context.Context, filter string, qos byte, handler func(topic string, payload []byte) error) error
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// LinkState reports whether the network link is up. link.Link implements it.
type LinkState interface {
	IsConnected() bool
}

// Logger is the logging interface used by Session.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

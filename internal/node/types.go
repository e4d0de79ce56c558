package node

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/broker"
	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/publisher"
	"github.com/nerrad567/gray-logic-node/internal/supervisor"
)

// Broadcast channels used with Notifier.
const (
	ChannelConnectivity = "connectivity.changed"
	ChannelState        = "state.published"
)

// SnapshotSource produces the readings to publish. It is called once per
// publish interval on the node goroutine.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (publisher.Snapshot, error)
}

// CommandHandler receives raw control messages. Interpreting the payload is
// the handler's business.
type CommandHandler interface {
	HandleCommand(ctx context.Context, topic string, payload []byte) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, topic string, payload []byte) error

// HandleCommand calls f.
func (f CommandHandlerFunc) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// Notifier pushes events to live observers. *api.Hub implements it.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Recorder receives metric updates. *metrics.Metrics implements it.
type Recorder interface {
	ObserveTransition(from, to, event string)
	SetSupervisor(state string, failures int, backoff time.Duration)
	SetLink(connected bool, rssi int)
	SetSession(healthy bool, epoch uint64, pending int)
	ObservePublish(outcome string, payloadSize int)
	IncCommands()
}

// Telemetry receives time-series points. *influxdb.Client implements it.
type Telemetry interface {
	WriteSnapshot(snap publisher.Snapshot, payloadSize int, outcome string, at time.Time)
	WriteLinkQuality(ssid string, rssi int, connected bool, at time.Time)
	WriteTransition(from, to, event string, failures int, at time.Time)
}

// Link is the part of link.Link the node reads for status.
type Link interface {
	IsConnected() bool
	SignalStrength() int
	SSID() string
	Status() link.Status
}

// Supervisor is the reconnect supervisor. *supervisor.Supervisor implements it.
type Supervisor interface {
	Tick(ctx context.Context, now time.Time) error
	Snapshot() supervisor.Snapshot
	NextAttempt() time.Time
	SetOnTransition(callback func(supervisor.Transition))
}

// Logger is the logging interface used by Node.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LinkStatus is the observed network link.
type LinkStatus struct {
	Status    link.Status `json:"status"`
	SSID      string      `json:"ssid,omitempty"`
	RSSI      int         `json:"rssi_dbm"`
	Connected bool        `json:"connected"`
}

// BrokerStatus is the observed broker session.
type BrokerStatus struct {
	broker.State
	Healthy bool         `json:"healthy"`
	Pending int          `json:"pending"`
	Inbox   broker.Stats `json:"inbox"`
}

// SupervisorStatus is the reconnect supervisor's state and pacing.
type SupervisorStatus struct {
	supervisor.Snapshot
	NextAttempt *time.Time `json:"next_attempt,omitempty"`
}

// PublishResult describes the most recent publish attempt.
type PublishResult struct {
	At          time.Time       `json:"at"`
	Outcome     history.Outcome `json:"outcome"`
	PayloadSize int             `json:"payload_size"`
	Error       string          `json:"error,omitempty"`
}

// Status is a point-in-time view of node connectivity.
type Status struct {
	DeviceID    string           `json:"device_id"`
	Link        LinkStatus       `json:"link"`
	Broker      BrokerStatus     `json:"broker"`
	Supervisor  SupervisorStatus `json:"supervisor"`
	LastPublish *PublishResult   `json:"last_publish,omitempty"`
	Commands    uint64           `json:"commands_dispatched"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/publisher"
)

// Measurement names.
const (
	MeasurementState       = "node_state"
	MeasurementLink        = "link_quality"
	MeasurementTransitions = "connectivity_transitions"
)

// WriteSnapshot records one attempted state publish.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - snap: The readings that were encoded
//   - payloadSize: Encoded message length in bytes
//   - outcome: Publish result (e.g., "published", "not_connected")
//   - at: When the publish was attempted
func (c *Client) WriteSnapshot(snap publisher.Snapshot, payloadSize int, outcome string, at time.Time) {
	c.WritePointWithTime(MeasurementState,
		map[string]string{
			"mode":    snap.Mode,
			"outcome": outcome,
		},
		map[string]interface{}{
			"temperature":  snap.Temperature,
			"humidity":     snap.Humidity,
			"led":          boolField(snap.LED),
			"fan":          boolField(snap.Fan),
			"payload_size": payloadSize,
		},
		at,
	)
}

// WriteLinkQuality records the current access point and its signal strength.
func (c *Client) WriteLinkQuality(ssid string, rssi int, connected bool, at time.Time) {
	c.WritePointWithTime(MeasurementLink,
		map[string]string{"ssid": ssid},
		map[string]interface{}{
			"rssi_dbm":  rssi,
			"connected": connected,
		},
		at,
	)
}

// WriteTransition records a reconnect supervisor state change.
//
// failures is the consecutive failure count at the time of the transition.
func (c *Client) WriteTransition(from, to, event string, failures int, at time.Time) {
	c.WritePointWithTime(MeasurementTransitions,
		map[string]string{
			"from":  from,
			"to":    to,
			"event": event,
		},
		map[string]interface{}{
			"failures": failures,
		},
		at,
	)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}

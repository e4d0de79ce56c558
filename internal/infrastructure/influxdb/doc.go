// Package influxdb provides optional InfluxDB telemetry for Gray Logic Node.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes, and health monitoring.
//
// # Measurements
//
//   - node_state: every attempted state publish with its readings and outcome
//   - link_quality: access point and signal strength, sampled each publish interval
//   - connectivity_transitions: reconnect supervisor state changes
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSnapshot(snap, len(payload), "published", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned directly.
// Writes on a closed or disconnected client are dropped silently.
package influxdb

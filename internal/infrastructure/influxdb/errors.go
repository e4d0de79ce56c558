package influxdb

import "errors"

// Telemetry is optional, so callers mostly branch on ErrDisabled at startup
// and only log the rest.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrUnreachable means the startup ping failed or reported unhealthy.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrClosed is returned by HealthCheck once Close has been called.
	ErrClosed = errors.New("influxdb: client closed")

	// ErrWriteRejected wraps batch failures delivered to the SetOnError
	// callback.
	ErrWriteRejected = errors.New("influxdb: write rejected")
)

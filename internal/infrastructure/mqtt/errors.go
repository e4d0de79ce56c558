package mqtt

import "errors"

// Transport errors. The broker package wraps these in its own session
// errors, so callers above it rarely see them directly.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrTimeout          = errors.New("mqtt: operation timed out")

	// Argument errors, returned before any I/O.
	ErrInvalidQoS      = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic    = errors.New("mqtt: invalid topic")
	ErrInvalidClientID = errors.New("mqtt: client id cannot be empty")
)

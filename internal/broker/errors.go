package broker

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNetworkUnavailable is returned by Connect when the link is down.
	ErrNetworkUnavailable = errors.New("broker: network unavailable")

	// ErrHandshakeFailed is returned when the broker rejects or never answers the connect.
	ErrHandshakeFailed = errors.New("broker: handshake failed")

	// ErrSubscribeFailed is returned when a required subscription cannot be established.
	ErrSubscribeFailed = errors.New("broker: subscribe failed")

	// ErrPublishRejected is returned when the transport fails to deliver a publish.
	ErrPublishRejected = errors.New("broker: publish rejected")

	// ErrPayloadTooLarge is returned when a payload exceeds the configured limit.
	// Nothing is sent; payloads are never truncated.
	ErrPayloadTooLarge = errors.New("broker: payload too large")

	// ErrNotConnected is returned for operations that need a healthy session.
	ErrNotConnected = errors.New("broker: session not connected")

	// ErrInboxFull is returned to the transport when an inbound message is dropped.
	ErrInboxFull = errors.New("broker: inbox full")
)

package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/publisher"
)

// EventKind classifies a connectivity event.
type EventKind string

// Event kinds.
const (
	// KindTransition is a reconnect supervisor state change.
	KindTransition EventKind = "transition"

	// KindLink is an access point acquired or lost.
	KindLink EventKind = "link"

	// KindCommand is a control message dispatched to the node.
	KindCommand EventKind = "command"

	// KindPublishFailed is a state publish that did not reach the broker.
	KindPublishFailed EventKind = "publish_failed"
)

// Outcome is the result of one publish attempt.
type Outcome string

// Publish outcomes.
const (
	OutcomePublished    Outcome = "published"
	OutcomeTooLarge     Outcome = "too_large"
	OutcomeNotConnected Outcome = "not_connected"
	OutcomeRejected     Outcome = "rejected"
)

// Event is one row of connectivity history.
type Event struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       EventKind `json:"kind"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Reading is one attempted state publish.
type Reading struct {
	ID          int64              `json:"id"`
	RecordedAt  time.Time          `json:"recorded_at"`
	Snapshot    publisher.Snapshot `json:"snapshot"`
	PayloadSize int                `json:"payload_size"`
	Outcome     Outcome            `json:"outcome"`
}

// Repository stores and queries node history.
type Repository interface {
	RecordEvent(ctx context.Context, e Event) error
	RecordReading(ctx context.Context, r Reading) error
	Events(ctx context.Context, limit int) ([]Event, error)
	Readings(ctx context.Context, limit int) ([]Reading, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

package supervisor

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/link"
)

// State is a supervisor FSM state.
type State string

// Supervisor states.
const (
	StateIdle         State = "idle"
	StateReconnecting State = "reconnecting"
	StateBackingOff   State = "backing_off"
)

// FSM events.
const (
	EventDrop    = "drop"
	EventRecover = "recover"
	EventFail    = "fail"
	EventRetry   = "retry"
)

// RetryState tracks reconnect pacing.
type RetryState struct {
	// LastAttempt is when the last connect attempt started (zero before the first).
	LastAttempt time.Time `json:"last_attempt"`

	// Backoff is the minimum gap before the next attempt.
	Backoff time.Duration `json:"backoff"`

	// Failures counts consecutive failed attempts.
	Failures int `json:"failures"`

	// LastError is the most recent attempt failure (empty after success).
	LastError string `json:"last_error,omitempty"`
}

// Transition describes one state change.
type Transition struct {
	From  State
	To    State
	Event string
	At    time.Time
}

// Snapshot is the supervisor's observable state.
type Snapshot struct {
	State State      `json:"state"`
	Retry RetryState `json:"retry"`
}

// Session is the broker session the supervisor drives. *broker.Session implements it.
type Session interface {
	Connect(ctx context.Context, clientID string) error
	EnsureSubscriptions(ctx context.Context, topics []string) error
	IsHealthy() bool
	MarkDown()
}

// Link is the network link the supervisor observes. *link.Interface implements it.
type Link interface {
	Refresh(ctx context.Context) error
	IsConnected() bool
}

// Acquirer re-acquires the network. *link.Selector implements it.
type Acquirer interface {
	Acquire(ctx context.Context, candidates []link.Credential) (link.Credential, error)
}

// Logger is the logging interface used by Supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Config holds reconnect policy and the session parameters to re-establish.
type Config struct {
	ClientID    string
	Topics      []string
	Credentials []link.Credential

	// InitialInterval is the backoff after the first failure and after every success.
	InitialInterval time.Duration
	// MaxInterval caps the backoff.
	MaxInterval time.Duration
	// Multiplier is the growth factor between consecutive failures.
	Multiplier float64

	// RefreshInterval is the minimum gap between idle link probes. Zero
	// probes on every tick.
	RefreshInterval time.Duration
}

// Backoff defaults.
const (
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = time.Minute
	DefaultMultiplier      = 2.0
)

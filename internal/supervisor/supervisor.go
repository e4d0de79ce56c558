package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/looplab/fsm"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
)

// Supervisor re-drives the broker session whenever it becomes unhealthy.
//
// Thread Safety:
//   - Tick must be called from a single goroutine.
//   - Snapshot and State are safe for concurrent use.
type Supervisor struct {
	cfg      Config
	link     Link
	acquirer Acquirer
	session  Session
	logger   Logger

	machine *fsm.FSM
	backoff *backoff.ExponentialBackOff

	// lastRefresh is when the link was last probed. Owned by Tick.
	lastRefresh time.Time

	mu           sync.RWMutex
	retry        RetryState
	onTransition func(Transition)
}

// New creates a supervisor in the idle state.
//
// Zero backoff settings in cfg fall back to 1s base, 60s ceiling, factor 2.
func New(cfg Config, l Link, acquirer Acquirer, session Session) *Supervisor {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultMultiplier
	}

	s := &Supervisor{
		cfg:      cfg,
		link:     l,
		acquirer: acquirer,
		session:  session,
		logger:   logging.Discard(),
		backoff:  newBackOff(cfg),
		retry:    RetryState{Backoff: cfg.InitialInterval},
	}

	s.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: EventDrop, Src: []string{string(StateIdle)}, Dst: string(StateReconnecting)},
			{Name: EventRecover, Src: []string{string(StateReconnecting)}, Dst: string(StateIdle)},
			{Name: EventFail, Src: []string{string(StateReconnecting)}, Dst: string(StateBackingOff)},
			{Name: EventRetry, Src: []string{string(StateBackingOff)}, Dst: string(StateReconnecting)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.notify(e)
			},
		},
	)

	return s
}

// newBackOff builds a deterministic capped exponential curve that never gives up.
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          cfg.Multiplier,
		MaxInterval:         cfg.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// SetLogger sets a logger for reconnect progress.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetOnTransition registers a callback invoked on every state change.
// The callback runs on the goroutine calling Tick and must not call Tick.
func (s *Supervisor) SetOnTransition(callback func(Transition)) {
	s.mu.Lock()
	s.onTransition = callback
	s.mu.Unlock()
}

// State returns the current FSM state.
func (s *Supervisor) State() State {
	return State(s.machine.Current())
}

// Snapshot returns the current state and retry pacing.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.State(), Retry: s.retry}
}

// Tick advances the state machine once.
//
// In idle the link is refreshed (at most once per RefreshInterval) and
// session health checked; an unhealthy session is marked down and
// reconnection begins. In reconnecting and
// backing_off an attempt is made only once now - LastAttempt >= Backoff.
//
// Returns the error of a failed reconnect attempt made during this tick,
// or nil if no attempt was made or the attempt succeeded.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) error {
	switch s.State() {
	case StateIdle:
		if s.refreshDue(now) {
			s.refreshLink(ctx, now)
		}
		if s.session.IsHealthy() {
			return nil
		}
		s.logger.Warn("broker session unhealthy, reconnecting", "link_connected", s.link.IsConnected())
		s.session.MarkDown()
		s.fire(ctx, EventDrop, now)
		return s.attempt(ctx, now)

	case StateReconnecting:
		return s.attempt(ctx, now)

	case StateBackingOff:
		if !s.gateOpen(now) {
			return nil
		}
		s.fire(ctx, EventRetry, now)
		return s.attempt(ctx, now)
	}
	return nil
}

// NextAttempt returns the earliest time the next attempt may start.
func (s *Supervisor) NextAttempt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.retry.LastAttempt.IsZero() {
		return time.Time{}
	}
	return s.retry.LastAttempt.Add(s.retry.Backoff)
}

// gateOpen reports whether enough time has passed since the last attempt.
func (s *Supervisor) gateOpen(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.retry.LastAttempt.IsZero() {
		return true
	}
	return now.Sub(s.retry.LastAttempt) >= s.retry.Backoff
}

// attempt runs one reconnect attempt if the gate is open.
func (s *Supervisor) attempt(ctx context.Context, now time.Time) error {
	if !s.gateOpen(now) {
		return nil
	}

	s.mu.Lock()
	s.retry.LastAttempt = now
	s.mu.Unlock()

	// The link state may be up to RefreshInterval old; read it fresh before
	// deciding whether to re-acquire.
	if !s.lastRefresh.Equal(now) {
		s.refreshLink(ctx, now)
	}

	err := s.reconnect(ctx)
	if err == nil {
		s.backoff.Reset()
		s.mu.Lock()
		s.retry.Backoff = s.cfg.InitialInterval
		s.retry.Failures = 0
		s.retry.LastError = ""
		s.mu.Unlock()

		s.logger.Info("broker session restored")
		s.fire(ctx, EventRecover, now)
		return nil
	}

	s.session.MarkDown()
	next := s.backoff.NextBackOff()

	s.mu.Lock()
	s.retry.Backoff = next
	s.retry.Failures++
	s.retry.LastError = err.Error()
	failures := s.retry.Failures
	s.mu.Unlock()

	s.logger.Warn("reconnect attempt failed",
		"error", err,
		"failures", failures,
		"backoff", next,
	)
	s.fire(ctx, EventFail, now)
	return err
}

// refreshDue reports whether the idle link probe should run at now.
func (s *Supervisor) refreshDue(now time.Time) bool {
	if s.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(s.lastRefresh) >= s.cfg.RefreshInterval
}

// refreshLink probes the link once. The link bounds the probe itself.
func (s *Supervisor) refreshLink(ctx context.Context, now time.Time) {
	s.lastRefresh = now
	if err := s.link.Refresh(ctx); err != nil {
		s.logger.Debug("link refresh failed", "error", err)
	}
}

// reconnect re-acquires the network if needed, then connects and subscribes.
func (s *Supervisor) reconnect(ctx context.Context) error {
	if !s.link.IsConnected() {
		if _, err := s.acquirer.Acquire(ctx, s.cfg.Credentials); err != nil {
			return fmt.Errorf("acquiring network: %w", err)
		}
	}
	if err := s.session.Connect(ctx, s.cfg.ClientID); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	if err := s.session.EnsureSubscriptions(ctx, s.cfg.Topics); err != nil {
		return fmt.Errorf("asserting subscriptions: %w", err)
	}
	return nil
}

// fire triggers an FSM event, passing now to the transition callback.
func (s *Supervisor) fire(ctx context.Context, event string, now time.Time) {
	if err := s.machine.Event(ctx, event, now); err != nil {
		s.logger.Warn("supervisor transition rejected", "event", event, "state", s.machine.Current(), "error", err)
	}
}

// notify forwards an FSM transition to the registered observer.
func (s *Supervisor) notify(e *fsm.Event) {
	t := Transition{
		From:  State(e.Src),
		To:    State(e.Dst),
		Event: e.Event,
	}
	if len(e.Args) > 0 {
		if at, ok := e.Args[0].(time.Time); ok {
			t.At = at
		}
	}

	s.logger.Debug("supervisor transition", "from", t.From, "to", t.To, "event", t.Event)

	s.mu.RLock()
	callback := s.onTransition
	s.mu.RUnlock()
	if callback != nil {
		callback(t)
	}
}

package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/broker"
	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/publisher"
	"github.com/nerrad567/gray-logic-node/internal/supervisor"
)

// Loop defaults.
const (
	DefaultTickInterval    = 250 * time.Millisecond
	DefaultPublishInterval = 2 * time.Second
	DefaultMaxDispatch     = 8

	// pruneInterval is how often history is trimmed to the retention count.
	pruneInterval = time.Hour

	// historyTimeout bounds a single history write from the loop.
	historyTimeout = 2 * time.Second

	// shutdownTimeout bounds the graceful offline publish on exit.
	shutdownTimeout = 2 * time.Second
)

// Options configures a Node.
type Options struct {
	DeviceID        string
	StateTopic      string
	MaxPayloadSize  int
	TickInterval    time.Duration
	PublishInterval time.Duration

	// MaxDispatch bounds control messages dispatched per tick.
	MaxDispatch int

	// Retention is the number of rows kept per history table (0 disables pruning).
	Retention int
}

// Deps holds a Node's collaborators. Link, Session and Supervisor are
// required; everything else is optional.
type Deps struct {
	Link       Link
	Session    *broker.Session
	Supervisor Supervisor

	Snapshots SnapshotSource
	Commands  CommandHandler

	History   history.Repository
	Metrics   Recorder
	Telemetry Telemetry
	Notifier  Notifier
	Logger    Logger
}

// Node is the connectivity context: it owns the link, session and supervisor
// and serialises every operation on them onto its loop goroutine.
//
// Thread Safety:
//   - Run and Step must be called from a single goroutine.
//   - Status is safe for concurrent use.
type Node struct {
	opts Options
	deps Deps

	logger Logger

	// Loop-owned state.
	transitions []supervisor.Transition
	nextPublish time.Time
	nextPrune   time.Time
	lastLink    LinkStatus
	commands    uint64

	mu          sync.RWMutex
	status      Status
	lastPublish *PublishResult
}

// New creates a Node.
//
// Returns:
//   - *Node: Node ready to Run
//   - error: If a required dependency is missing
func New(opts Options, deps Deps) (*Node, error) {
	if deps.Link == nil {
		return nil, fmt.Errorf("link is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("broker session is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}
	if opts.MaxDispatch <= 0 {
		opts.MaxDispatch = DefaultMaxDispatch
	}

	n := &Node{
		opts:   opts,
		deps:   deps,
		logger: deps.Logger,
	}
	if n.logger == nil {
		n.logger = logging.Discard()
	}

	deps.Supervisor.SetOnTransition(func(t supervisor.Transition) {
		n.transitions = append(n.transitions, t)
	})

	n.refreshStatus(time.Time{})
	return n, nil
}

// Run ticks the node until ctx is cancelled, then closes the broker session
// so the offline status is published.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.opts.TickInterval)
	defer ticker.Stop()

	n.logger.Info("node loop started",
		"tick_interval", n.opts.TickInterval,
		"publish_interval", n.opts.PublishInterval,
	)

	n.Step(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return nil
		case now := <-ticker.C:
			n.Step(ctx, now)
		}
	}
}

// shutdown closes the session with a fresh bounded context.
func (n *Node) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.deps.Session.Close(ctx)
	n.refreshStatus(time.Now())
	n.logger.Info("node loop stopped")
}

// Step runs one iteration of the loop at now.
func (n *Node) Step(ctx context.Context, now time.Time) {
	if err := n.deps.Supervisor.Tick(ctx, now); err != nil {
		n.logger.Debug("reconnect attempt failed", "error", err)
	}
	n.flushTransitions(ctx)
	n.observeLink(ctx, now)

	if n.deps.Session.IsHealthy() {
		n.dispatch(ctx)
		if !now.Before(n.nextPublish) {
			n.publish(ctx, now)
			n.nextPublish = now.Add(n.opts.PublishInterval)
		}
	}

	n.prune(ctx, now)
	n.refreshStatus(now)
}

// Status returns the latest connectivity view.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// flushTransitions forwards supervisor transitions collected during Tick.
func (n *Node) flushTransitions(ctx context.Context) {
	if len(n.transitions) == 0 {
		return
	}
	pending := n.transitions
	n.transitions = nil

	failures := n.deps.Supervisor.Snapshot().Retry.Failures
	for _, t := range pending {
		from, to := string(t.From), string(t.To)
		n.logger.Info("connectivity state changed", "from", from, "to", to, "event", t.Event)

		if n.deps.Metrics != nil {
			n.deps.Metrics.ObserveTransition(from, to, t.Event)
		}
		if n.deps.Telemetry != nil {
			n.deps.Telemetry.WriteTransition(from, to, t.Event, failures, t.At)
		}
		n.recordEvent(ctx, history.Event{
			OccurredAt: t.At,
			Kind:       history.KindTransition,
			From:       from,
			To:         to,
			Detail:     t.Event,
		})
	}

	if n.deps.Notifier != nil {
		n.refreshStatus(pending[len(pending)-1].At)
		n.deps.Notifier.Broadcast(ChannelConnectivity, n.Status())
	}
}

// observeLink records link changes as history events.
func (n *Node) observeLink(ctx context.Context, now time.Time) {
	current := n.linkStatus()
	prev := n.lastLink
	n.lastLink = current

	if current.Connected == prev.Connected && current.SSID == prev.SSID {
		return
	}

	detail := current.SSID
	if !current.Connected {
		detail = "lost " + prev.SSID
	}
	n.logger.Info("network link changed", "connected", current.Connected, "ssid", current.SSID, "rssi", current.RSSI)
	n.recordEvent(ctx, history.Event{
		OccurredAt: now,
		Kind:       history.KindLink,
		From:       linkLabel(prev),
		To:         linkLabel(current),
		Detail:     detail,
	})
}

func linkLabel(l LinkStatus) string {
	if l.Status == "" {
		return "disconnected"
	}
	return string(l.Status)
}

// dispatch hands queued control messages to the command handler.
func (n *Node) dispatch(ctx context.Context) {
	n.deps.Session.Drain(func(m broker.Message) {
		n.commands++
		if n.deps.Metrics != nil {
			n.deps.Metrics.IncCommands()
		}
		if n.deps.Commands == nil {
			n.logger.Debug("no command handler, dropping control message", "topic", m.Topic)
			return
		}
		if err := n.deps.Commands.HandleCommand(ctx, m.Topic, m.Payload); err != nil {
			n.logger.Warn("command handler failed", "topic", m.Topic, "error", err)
		}
	}, n.opts.MaxDispatch)
}

// publish reads a snapshot and publishes it on the state topic.
func (n *Node) publish(ctx context.Context, now time.Time) {
	if n.deps.Snapshots == nil {
		return
	}

	snap, err := n.deps.Snapshots.Snapshot(ctx)
	if err != nil {
		n.logger.Warn("reading sensor snapshot failed", "error", err)
		return
	}

	payload, err := publisher.PublishState(ctx, n.deps.Session, n.opts.StateTopic, snap, n.opts.MaxPayloadSize)
	outcome := outcomeFor(err)

	switch outcome {
	case history.OutcomePublished:
		n.logger.Debug("state published", "topic", n.opts.StateTopic, "bytes", len(payload))
	case history.OutcomeTooLarge:
		n.logger.Error("state message exceeds max payload size",
			"bytes", len(payload),
			"max", n.opts.MaxPayloadSize,
		)
	default:
		n.logger.Warn("state publish failed", "outcome", outcome, "error", err)
	}

	result := &PublishResult{At: now, Outcome: outcome, PayloadSize: len(payload)}
	if err != nil {
		result.Error = err.Error()
	}
	n.mu.Lock()
	n.lastPublish = result
	n.mu.Unlock()

	if n.deps.Metrics != nil {
		n.deps.Metrics.ObservePublish(string(outcome), len(payload))
	}
	if n.deps.Telemetry != nil {
		n.deps.Telemetry.WriteSnapshot(snap, len(payload), string(outcome), now)
		l := n.lastLink
		n.deps.Telemetry.WriteLinkQuality(l.SSID, l.RSSI, l.Connected, now)
	}
	if n.deps.History != nil {
		hctx, cancel := context.WithTimeout(ctx, historyTimeout)
		defer cancel()
		if err := n.deps.History.RecordReading(hctx, history.Reading{
			RecordedAt:  now,
			Snapshot:    snap,
			PayloadSize: len(payload),
			Outcome:     outcome,
		}); err != nil {
			n.logger.Warn("recording reading failed", "error", err)
		}
	}
	if outcome != history.OutcomePublished {
		n.recordEvent(ctx, history.Event{
			OccurredAt: now,
			Kind:       history.KindPublishFailed,
			Detail:     string(outcome),
		})
	}
	if n.deps.Notifier != nil {
		n.deps.Notifier.Broadcast(ChannelState, map[string]any{
			"snapshot": snap,
			"result":   result,
		})
	}
}

// outcomeFor classifies a PublishState error.
func outcomeFor(err error) history.Outcome {
	switch {
	case err == nil:
		return history.OutcomePublished
	case errors.Is(err, broker.ErrPayloadTooLarge):
		return history.OutcomeTooLarge
	case errors.Is(err, broker.ErrNotConnected):
		return history.OutcomeNotConnected
	default:
		return history.OutcomeRejected
	}
}

// prune trims history once per pruneInterval.
func (n *Node) prune(ctx context.Context, now time.Time) {
	if n.deps.History == nil || n.opts.Retention <= 0 || now.Before(n.nextPrune) {
		return
	}
	n.nextPrune = now.Add(pruneInterval)

	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	deleted, err := n.deps.History.Prune(hctx, n.opts.Retention)
	if err != nil {
		n.logger.Warn("pruning history failed", "error", err)
		return
	}
	if deleted > 0 {
		n.logger.Info("history pruned", "deleted", deleted, "retention", n.opts.Retention)
	}
}

func (n *Node) recordEvent(ctx context.Context, e history.Event) {
	if n.deps.History == nil {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	if err := n.deps.History.RecordEvent(hctx, e); err != nil {
		n.logger.Warn("recording connectivity event failed", "kind", e.Kind, "error", err)
	}
}

func (n *Node) linkStatus() LinkStatus {
	l := n.deps.Link
	return LinkStatus{
		Status:    l.Status(),
		SSID:      l.SSID(),
		RSSI:      l.SignalStrength(),
		Connected: l.IsConnected(),
	}
}

// refreshStatus rebuilds the status snapshot and pushes gauges.
func (n *Node) refreshStatus(now time.Time) {
	session := n.deps.Session
	sup := n.deps.Supervisor.Snapshot()

	st := Status{
		DeviceID: n.opts.DeviceID,
		Link:     n.linkStatus(),
		Broker: BrokerStatus{
			State:   session.State(),
			Healthy: session.IsHealthy(),
			Pending: session.Pending(),
			Inbox:   session.Stats(),
		},
		Supervisor: SupervisorStatus{Snapshot: sup},
		Commands:   n.commands,
		UpdatedAt:  now,
	}
	if sup.State != supervisor.StateIdle {
		if next := n.deps.Supervisor.NextAttempt(); !next.IsZero() {
			st.Supervisor.NextAttempt = &next
		}
	}

	n.mu.Lock()
	if n.lastPublish != nil {
		p := *n.lastPublish
		st.LastPublish = &p
	}
	n.status = st
	n.mu.Unlock()

	if m := n.deps.Metrics; m != nil {
		m.SetSupervisor(string(sup.State), sup.Retry.Failures, sup.Retry.Backoff)
		m.SetLink(st.Link.Connected, st.Link.RSSI)
		m.SetSession(st.Broker.Healthy, st.Broker.Epoch, st.Broker.Pending)
	}
}

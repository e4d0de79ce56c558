// Package metrics exposes node connectivity as Prometheus metrics.
//
// Each Metrics owns its registry, so tests and multiple nodes in one process
// never collide on the global default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "graylogic_node"
)

// Supervisor states tracked by the state gauge.
var supervisorStates = []string{"idle", "reconnecting", "backing_off"}

// Metrics holds every collector the node updates.
type Metrics struct {
	registry *prometheus.Registry

	supervisorState   *prometheus.GaugeVec
	transitions       *prometheus.CounterVec
	reconnectFailures prometheus.Gauge
	backoffSeconds    prometheus.Gauge

	linkConnected prometheus.Gauge
	linkRSSI      prometheus.Gauge

	sessionConnected prometheus.Gauge
	sessionEpoch     prometheus.Gauge
	inboxPending     prometheus.Gauge

	publishes    *prometheus.CounterVec
	payloadBytes prometheus.Histogram
	commands     prometheus.Counter
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		supervisorState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "state",
			Help:      "Reconnect supervisor state (1 for the current state, 0 otherwise)",
		}, []string{"state"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "transitions_total",
			Help:      "Total reconnect supervisor state transitions",
		}, []string{"from", "to", "event"}),
		reconnectFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "consecutive_failures",
			Help:      "Consecutive failed reconnect attempts",
		}),
		backoffSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "backoff_seconds",
			Help:      "Current minimum gap between reconnect attempts",
		}),

		linkConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connected",
			Help:      "Network link association (0=down, 1=up)",
		}),
		linkRSSI: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "rssi_dbm",
			Help:      "Signal strength of the associated access point (0 when down)",
		}),

		sessionConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "connected",
			Help:      "Broker session health (0=down, 1=connected and subscribed)",
		}),
		sessionEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "session_epoch",
			Help:      "Number of broker sessions established since start",
		}),
		inboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "inbox_pending",
			Help:      "Inbound messages waiting for dispatch",
		}),

		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "publishes_total",
			Help:      "State publish attempts by outcome",
		}, []string{"outcome"}),
		payloadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "payload_bytes",
			Help:      "Encoded state message size",
			Buckets:   prometheus.LinearBuckets(32, 32, 8),
		}),
		commands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "commands_dispatched_total",
			Help:      "Inbound control messages dispatched to the command handler",
		}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransition counts a supervisor state change and moves the state gauge.
func (m *Metrics) ObserveTransition(from, to, event string) {
	m.transitions.WithLabelValues(from, to, event).Inc()
	m.setState(to)
}

// SetSupervisor records the supervisor's current state and retry pacing.
func (m *Metrics) SetSupervisor(state string, failures int, backoff time.Duration) {
	m.setState(state)
	m.reconnectFailures.Set(float64(failures))
	m.backoffSeconds.Set(backoff.Seconds())
}

func (m *Metrics) setState(current string) {
	for _, s := range supervisorStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.supervisorState.WithLabelValues(s).Set(v)
	}
}

// SetLink records link association and signal strength.
func (m *Metrics) SetLink(connected bool, rssi int) {
	m.linkConnected.Set(boolGauge(connected))
	m.linkRSSI.Set(float64(rssi))
}

// SetSession records broker session health, epoch and inbox depth.
func (m *Metrics) SetSession(healthy bool, epoch uint64, pending int) {
	m.sessionConnected.Set(boolGauge(healthy))
	m.sessionEpoch.Set(float64(epoch))
	m.inboxPending.Set(float64(pending))
}

// ObservePublish counts a publish attempt and its encoded size.
func (m *Metrics) ObservePublish(outcome string, payloadSize int) {
	m.publishes.WithLabelValues(outcome).Inc()
	if payloadSize > 0 {
		m.payloadBytes.Observe(float64(payloadSize))
	}
}

// IncCommands counts one dispatched control message.
func (m *Metrics) IncCommands() {
	m.commands.Inc()
}

// RegisterInboxStats exposes inbox loss counters read from stats at scrape time.
func (m *Metrics) RegisterInboxStats(stats func() (dropped, discarded uint64)) {
	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "inbox_dropped_total",
		Help:      "Inbound messages refused because the inbox was full",
	}, func() float64 {
		dropped, _ := stats()
		return float64(dropped)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broker",
		Name:      "inbox_discarded_total",
		Help:      "Inbound messages discarded as stale or received while unhealthy",
	}, func() float64 {
		_, discarded := stats()
		return float64(discarded)
	})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

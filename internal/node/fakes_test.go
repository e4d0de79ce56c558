package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/publisher"
)

// callLog is an ordered record of interesting calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}

// fakeDriver associates only with SSIDs listed in up.
type fakeDriver struct {
	mu           sync.Mutex
	up           map[string]int
	current      string
	down         bool
	probeErr     error
	associations int
}

func (d *fakeDriver) Associate(_ context.Context, ssid, _ string) error {
	d.mu.Lock()
	d.associations++
	d.current = ssid
	d.down = false
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) Probe(context.Context) (link.Probe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probeErr != nil {
		return link.Probe{}, d.probeErr
	}
	rssi, ok := d.up[d.current]
	if d.down || !ok {
		return link.Probe{}, nil
	}
	return link.Probe{Associated: true, SSID: d.current, Address: "10.0.0.9", RSSI: rssi}, nil
}

type publishCall struct {
	topic    string
	retained bool
	payload  string
}

// fakeTransport is an in-memory broker connection.
type fakeTransport struct {
	mu  sync.Mutex
	log *callLog

	connectErr error
	connected  bool
	publishes  []publishCall
	subscribes int
	handlers   map[string]func(string, []byte) error
}

func newFakeTransport(log *callLog) *fakeTransport {
	return &fakeTransport{log: log, handlers: make(map[string]func(string, []byte) error)}
}

func (f *fakeTransport) Connect(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("connect")
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.handlers = make(map[string]func(string, []byte) error)
	return nil
}

func (f *fakeTransport) Subscribe(_ context.Context, filter string, _ byte, handler func(string, []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("subscribe " + filter)
	f.subscribes++
	f.handlers[filter] = handler
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("not connected")
	}
	f.publishes = append(f.publishes, publishCall{topic: topic, retained: retained, payload: string(payload)})
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) handler(topic string) func(string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

func (f *fakeTransport) published(topic string) []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishCall
	for _, p := range f.publishes {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeTransport) setConnectErr(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

// staticSnapshots always returns the same readings.
type staticSnapshots struct {
	snap  publisher.Snapshot
	err   error
	calls int
}

func (s *staticSnapshots) Snapshot(context.Context) (publisher.Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

// memoryHistory is an in-memory history.Repository.
type memoryHistory struct {
	mu       sync.Mutex
	events   []history.Event
	readings []history.Reading
	prunes   []int
}

func (h *memoryHistory) RecordEvent(_ context.Context, e history.Event) error {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
	return nil
}

func (h *memoryHistory) RecordReading(_ context.Context, r history.Reading) error {
	h.mu.Lock()
	h.readings = append(h.readings, r)
	h.mu.Unlock()
	return nil
}

func (h *memoryHistory) Events(context.Context, int) ([]history.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Event(nil), h.events...), nil
}

func (h *memoryHistory) Readings(context.Context, int) ([]history.Reading, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Reading(nil), h.readings...), nil
}

func (h *memoryHistory) Prune(_ context.Context, keep int) (int64, error) {
	h.mu.Lock()
	h.prunes = append(h.prunes, keep)
	h.mu.Unlock()
	return 0, nil
}

func (h *memoryHistory) eventsOfKind(kind history.EventKind) []history.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []history.Event
	for _, e := range h.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeRecorder counts metric updates.
type fakeRecorder struct {
	transitions []string
	outcomes    []string
	commands    int
	state       string
	linkUp      bool
	healthy     bool
}

func (r *fakeRecorder) ObserveTransition(from, to, event string) {
	r.transitions = append(r.transitions, from+">"+to+":"+event)
}
func (r *fakeRecorder) SetSupervisor(state string, _ int, _ time.Duration) { r.state = state }
func (r *fakeRecorder) SetLink(connected bool, _ int)                    { r.linkUp = connected }
func (r *fakeRecorder) SetSession(healthy bool, _ uint64, _ int)         { r.healthy = healthy }
func (r *fakeRecorder) ObservePublish(outcome string, _ int)             { r.outcomes = append(r.outcomes, outcome) }
func (r *fakeRecorder) IncCommands()                                     { r.commands++ }

// fakeTelemetry counts points.
type fakeTelemetry struct {
	snapshots   int
	links       []string
	transitions int
}

func (t *fakeTelemetry) WriteSnapshot(publisher.Snapshot, int, string, time.Time) { t.snapshots++ }
func (t *fakeTelemetry) WriteLinkQuality(ssid string, _ int, _ bool, _ time.Time) {
	t.links = append(t.links, ssid)
}
func (t *fakeTelemetry) WriteTransition(string, string, string, int, time.Time) { t.transitions++ }

// fakeNotifier records broadcast channels.
type fakeNotifier struct {
	mu       sync.Mutex
	channels []string
}

func (n *fakeNotifier) Broadcast(channel string, _ any) {
	n.mu.Lock()
	n.channels = append(n.channels, channel)
	n.mu.Unlock()
}

func (n *fakeNotifier) count(channel string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ch := range n.channels {
		if ch == channel {
			c++
		}
	}
	return c
}

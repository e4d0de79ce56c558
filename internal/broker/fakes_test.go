package broker

import (
	"context"
	"errors"
	"sync"
)

type fakeLinkState struct {
	mu sync.Mutex
	up bool
}

func (l *fakeLinkState) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.up
}

func (l *fakeLinkState) set(up bool) {
	l.mu.Lock()
	l.up = up
	l.mu.Unlock()
}

type publishCall struct {
	topic    string
	retained bool
	payload  string
}

// fakeTransport records calls and lets tests inject failures and messages.
type fakeTransport struct {
	mu sync.Mutex

	connectErr   error
	subscribeErr error
	publishErr   error
	connected    bool

	connects    int
	disconnects int
	subscribes  []string
	publishes   []publishCall
	handlers    map[string]func(topic string, payload []byte) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]func(string, []byte) error)}
}

func (f *fakeTransport) Connect(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
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
	f.subscribes = append(f.subscribes, filter)
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[filter] = handler
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("not connected")
	}
	if f.publishErr != nil {
		return f.publishErr
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
	f.disconnects++
	f.mu.Unlock()
}

// drop simulates a silent broker-side disconnect.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

// deliver invokes the handler registered for topic, as paho would.
func (f *fakeTransport) deliver(topic, payload string) error {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return errors.New("no subscription")
	}
	return h(topic, []byte(payload))
}

// capture returns a handler that keeps the last handler for topic even after
// a reconnect clears the transport's table.
func (f *fakeTransport) capture(topic string) func(string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

func (f *fakeTransport) publishCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.publishes {
		if p.topic == topic {
			n++
		}
	}
	return n
}

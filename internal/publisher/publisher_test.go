package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/broker"
)

type fakeSession struct {
	healthy bool
	err     error
	calls   int
	payload []byte
}

func (s *fakeSession) IsHealthy() bool { return s.healthy }

func (s *fakeSession) Publish(_ context.Context, _ string, payload []byte, _ int) error {
	s.calls++
	s.payload = payload
	return s.err
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   Snapshot
		want string
	}{
		{
			name: "reference message",
			in:   Snapshot{Temperature: 23.5, Humidity: 41.2, LED: true, Fan: false, Mode: "auto"},
			want: `{"temperature":23.5,"humidity":41.2,"led":1,"fan":0,"mode":"auto"}`,
		},
		{
			name: "rounds to one decimal",
			in:   Snapshot{Temperature: 21.46, Humidity: 55.04, Fan: true, Mode: "manual"},
			want: `{"temperature":21.5,"humidity":55.0,"led":0,"fan":1,"mode":"manual"}`,
		},
		{
			name: "negative temperature",
			in:   Snapshot{Temperature: -4.25, Humidity: 80, Mode: "auto"},
			want: `{"temperature":-4.2,"humidity":80.0,"led":0,"fan":0,"mode":"auto"}`,
		},
		{
			name: "failed sensor read",
			in:   Snapshot{Temperature: math.NaN(), Humidity: math.Inf(1), Mode: "auto"},
			want: `{"temperature":0.0,"humidity":0.0,"led":0,"fan":0,"mode":"auto"}`,
		},
		{
			name: "mode is escaped",
			in:   Snapshot{Mode: `a"b\c`},
			want: `{"temperature":0.0,"humidity":0.0,"led":0,"fan":0,"mode":"a\"b\\c"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Encode(tt.in))
			if got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("Encode() produced invalid JSON: %s", got)
			}
		})
	}
}

func TestPublishState(t *testing.T) {
	sess := &fakeSession{healthy: true}
	snap := Snapshot{Temperature: 23.5, Humidity: 41.2, LED: true, Mode: "auto"}

	payload, err := PublishState(context.Background(), sess, "home/arduino/sensors", snap, 150)
	if err != nil {
		t.Fatalf("PublishState() error = %v", err)
	}
	if sess.calls != 1 {
		t.Errorf("publish calls = %d, want 1", sess.calls)
	}
	if string(sess.payload) != string(payload) {
		t.Errorf("published %s, returned %s", sess.payload, payload)
	}
}

func TestPublishState_PayloadTooLarge(t *testing.T) {
	sess := &fakeSession{healthy: true}
	snap := Snapshot{Temperature: 23.5, Humidity: 41.2, LED: true, Mode: "auto"}

	payload, err := PublishState(context.Background(), sess, "home/arduino/sensors", snap, 10)
	if !errors.Is(err, broker.ErrPayloadTooLarge) {
		t.Fatalf("PublishState() error = %v, want ErrPayloadTooLarge", err)
	}
	if len(payload) < 60 {
		t.Errorf("payload length = %d, want the full 60+ byte message", len(payload))
	}
	if sess.calls != 0 {
		t.Errorf("publish calls = %d, want 0", sess.calls)
	}
}

func TestPublishState_SizeCheckedBeforeHealth(t *testing.T) {
	sess := &fakeSession{healthy: false}

	_, err := PublishState(context.Background(), sess, "t", Snapshot{Mode: "auto"}, 10)
	if !errors.Is(err, broker.ErrPayloadTooLarge) {
		t.Errorf("PublishState() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestPublishState_Unhealthy(t *testing.T) {
	sess := &fakeSession{healthy: false}

	_, err := PublishState(context.Background(), sess, "t", Snapshot{Mode: "auto"}, 150)
	if !errors.Is(err, broker.ErrNotConnected) {
		t.Fatalf("PublishState() error = %v, want ErrNotConnected", err)
	}
	if sess.calls != 0 {
		t.Errorf("publish calls = %d, want 0", sess.calls)
	}
}

func TestPublishState_Rejected(t *testing.T) {
	sess := &fakeSession{healthy: true, err: broker.ErrPublishRejected}

	_, err := PublishState(context.Background(), sess, "t", Snapshot{Mode: "auto"}, 150)
	if !errors.Is(err, broker.ErrPublishRejected) {
		t.Errorf("PublishState() error = %v, want ErrPublishRejected", err)
	}
}

func TestPublishState_WithSession(t *testing.T) {
	sess := broker.NewSession(alwaysUp{}, &nullTransport{}, broker.Options{})

	_, err := PublishState(context.Background(), sess, "t", Snapshot{Mode: "auto"}, 150)
	if !errors.Is(err, broker.ErrNotConnected) {
		t.Errorf("PublishState() on fresh session error = %v, want ErrNotConnected", err)
	}
}

type alwaysUp struct{}

func (alwaysUp) IsConnected() bool { return true }

type nullTransport struct{}

func (*nullTransport) Connect(context.Context, string) error { return nil }
func (*nullTransport) Subscribe(context.Context, string, byte, func(string, []byte) error) error {
	return nil
}
func (*nullTransport) Publish(context.Context, string, byte, bool, []byte) error { return nil }
func (*nullTransport) IsConnected() bool                                         { return false }
func (*nullTransport) Disconnect()                                               {}

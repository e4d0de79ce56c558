package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/broker"
	"github.com/nerrad567/gray-logic-node/internal/link"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeLink struct {
	connected bool
	refreshes int
}

func (l *fakeLink) Refresh(context.Context) error {
	l.refreshes++
	return nil
}

func (l *fakeLink) IsConnected() bool { return l.connected }

type fakeAcquirer struct {
	link  *fakeLink
	err   error
	calls int
	got   []link.Credential
}

func (a *fakeAcquirer) Acquire(_ context.Context, creds []link.Credential) (link.Credential, error) {
	a.calls++
	a.got = creds
	if a.err != nil {
		return link.Credential{}, a.err
	}
	a.link.connected = true
	return creds[0], nil
}

type fakeSession struct {
	healthy    bool
	connectErr error
	subErr     error

	calls     []string
	connects  int
	markdowns int
	topics    []string
}

func (s *fakeSession) Connect(context.Context, string) error {
	s.calls = append(s.calls, "connect")
	s.connects++
	if s.connectErr != nil {
		return s.connectErr
	}
	return nil
}

func (s *fakeSession) EnsureSubscriptions(_ context.Context, topics []string) error {
	s.calls = append(s.calls, "subscribe")
	if s.subErr != nil {
		return s.subErr
	}
	s.topics = topics
	s.healthy = true
	return nil
}

func (s *fakeSession) IsHealthy() bool { return s.healthy }

func (s *fakeSession) MarkDown() {
	s.calls = append(s.calls, "markdown")
	s.markdowns++
	s.healthy = false
}

func testConfig() Config {
	return Config{
		ClientID:        "node-1",
		Topics:          []string{"home/arduino/control"},
		Credentials:     []link.Credential{{SSID: "Home"}, {SSID: "Phone", Priority: 1}},
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
}

func newTestSupervisor(cfg Config) (*Supervisor, *fakeLink, *fakeAcquirer, *fakeSession) {
	l := &fakeLink{connected: true}
	a := &fakeAcquirer{link: l}
	s := &fakeSession{}
	return New(cfg, l, a, s), l, a, s
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// Transition Tests
// =============================================================================

func TestTick_HealthyStaysIdle(t *testing.T) {
	sup, l, _, sess := newTestSupervisor(testConfig())
	sess.healthy = true

	if err := sup.Tick(context.Background(), epoch); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if sup.State() != StateIdle {
		t.Errorf("State() = %q, want idle", sup.State())
	}
	if sess.connects != 0 {
		t.Errorf("connects = %d, want 0", sess.connects)
	}
	if l.refreshes != 1 {
		t.Errorf("link refreshes = %d, want 1", l.refreshes)
	}
}

func TestTick_RefreshThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshInterval = 2 * time.Second
	sup, l, _, sess := newTestSupervisor(cfg)
	sess.healthy = true

	for _, offset := range []time.Duration{0, 250 * time.Millisecond, time.Second, 2 * time.Second, 2250 * time.Millisecond} {
		if err := sup.Tick(context.Background(), epoch.Add(offset)); err != nil {
			t.Fatalf("Tick(+%v) error = %v", offset, err)
		}
	}

	if l.refreshes != 2 {
		t.Errorf("link refreshes = %d, want 2 (at +0s and +2s)", l.refreshes)
	}
}

func TestTick_AttemptRefreshesStaleLink(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshInterval = time.Hour
	sup, l, _, sess := newTestSupervisor(cfg)
	sess.healthy = true

	_ = sup.Tick(context.Background(), epoch)
	sess.healthy = false
	if err := sup.Tick(context.Background(), epoch.Add(time.Second)); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if l.refreshes != 2 {
		t.Errorf("link refreshes = %d, want 2 (idle, then before the attempt)", l.refreshes)
	}
	if sup.State() != StateIdle {
		t.Errorf("State() = %q, want idle", sup.State())
	}
}

// stalledDriver never answers a probe until its context ends.
type stalledDriver struct{}

func (stalledDriver) Associate(context.Context, string, string) error { return nil }

func (stalledDriver) Probe(ctx context.Context) (link.Probe, error) {
	<-ctx.Done()
	return link.Probe{}, ctx.Err()
}

func TestTick_StalledProbeDoesNotBlock(t *testing.T) {
	l := link.NewInterface(stalledDriver{}, time.Millisecond)
	l.SetProbeTimeout(20 * time.Millisecond)
	sess := &fakeSession{healthy: true}
	sup := New(testConfig(), l, &fakeAcquirer{link: &fakeLink{}}, sess)

	done := make(chan error, 1)
	go func() { done <- sup.Tick(context.Background(), epoch) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Tick() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Tick() blocked on a stalled link probe")
	}
	if sup.State() != StateIdle {
		t.Errorf("State() = %q, want idle", sup.State())
	}
}

func TestTick_DropAndRecover(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())

	var transitions []Transition
	sup.SetOnTransition(func(tr Transition) { transitions = append(transitions, tr) })

	if err := sup.Tick(context.Background(), epoch); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if sup.State() != StateIdle {
		t.Errorf("State() = %q, want idle", sup.State())
	}
	want := []string{"markdown", "connect", "subscribe"}
	if len(sess.calls) != len(want) {
		t.Fatalf("session calls = %v, want %v", sess.calls, want)
	}
	for i := range want {
		if sess.calls[i] != want[i] {
			t.Errorf("session calls = %v, want %v", sess.calls, want)
			break
		}
	}
	if len(sess.topics) != 1 || sess.topics[0] != "home/arduino/control" {
		t.Errorf("subscribed topics = %v", sess.topics)
	}

	if len(transitions) != 2 {
		t.Fatalf("transitions = %+v, want 2", transitions)
	}
	if transitions[0].From != StateIdle || transitions[0].To != StateReconnecting || transitions[0].Event != EventDrop {
		t.Errorf("transitions[0] = %+v, want idle->reconnecting on drop", transitions[0])
	}
	if transitions[1].To != StateIdle || transitions[1].Event != EventRecover {
		t.Errorf("transitions[1] = %+v, want reconnecting->idle on recover", transitions[1])
	}
	if !transitions[1].At.Equal(epoch) {
		t.Errorf("transition time = %v, want %v", transitions[1].At, epoch)
	}
}

func TestTick_ConnectFailureBacksOff(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())
	sess.connectErr = broker.ErrHandshakeFailed

	err := sup.Tick(context.Background(), epoch)
	if !errors.Is(err, broker.ErrHandshakeFailed) {
		t.Fatalf("Tick() error = %v, want ErrHandshakeFailed", err)
	}

	snap := sup.Snapshot()
	if snap.State != StateBackingOff {
		t.Errorf("State = %q, want backing_off", snap.State)
	}
	if snap.Retry.Backoff != time.Second {
		t.Errorf("Backoff = %v, want 1s", snap.Retry.Backoff)
	}
	if snap.Retry.Failures != 1 {
		t.Errorf("Failures = %d, want 1", snap.Retry.Failures)
	}
	if !snap.Retry.LastAttempt.Equal(epoch) {
		t.Errorf("LastAttempt = %v, want %v", snap.Retry.LastAttempt, epoch)
	}
	if snap.Retry.LastError == "" {
		t.Error("LastError empty after failure")
	}
	if sup.NextAttempt() != epoch.Add(time.Second) {
		t.Errorf("NextAttempt() = %v, want %v", sup.NextAttempt(), epoch.Add(time.Second))
	}
}

func TestTick_SubscribeFailureCountsAsFailure(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())
	sess.subErr = broker.ErrSubscribeFailed

	err := sup.Tick(context.Background(), epoch)
	if !errors.Is(err, broker.ErrSubscribeFailed) {
		t.Fatalf("Tick() error = %v, want ErrSubscribeFailed", err)
	}
	if sup.State() != StateBackingOff {
		t.Errorf("State() = %q, want backing_off", sup.State())
	}
	if sess.healthy {
		t.Error("session left healthy after failed subscribe")
	}
}

func TestTick_LinkDownReacquires(t *testing.T) {
	sup, l, acq, sess := newTestSupervisor(testConfig())
	l.connected = false

	if err := sup.Tick(context.Background(), epoch); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if acq.calls != 1 {
		t.Errorf("acquire calls = %d, want 1", acq.calls)
	}
	if len(acq.got) != 2 || acq.got[0].SSID != "Home" {
		t.Errorf("acquire candidates = %v", acq.got)
	}
	if sess.connects != 1 {
		t.Errorf("connects = %d, want 1", sess.connects)
	}
	if sup.State() != StateIdle {
		t.Errorf("State() = %q, want idle", sup.State())
	}
}

func TestTick_AcquireFailureSkipsBroker(t *testing.T) {
	sup, l, acq, sess := newTestSupervisor(testConfig())
	l.connected = false
	acq.err = link.ErrAllCandidatesFailed

	err := sup.Tick(context.Background(), epoch)
	if !errors.Is(err, link.ErrAllCandidatesFailed) {
		t.Fatalf("Tick() error = %v, want ErrAllCandidatesFailed", err)
	}
	if sess.connects != 0 {
		t.Errorf("connects = %d, want 0 while network is down", sess.connects)
	}
	if sup.State() != StateBackingOff {
		t.Errorf("State() = %q, want backing_off", sup.State())
	}
}

func TestTick_BackingOffWaitsForGate(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())
	sess.connectErr = broker.ErrHandshakeFailed

	_ = sup.Tick(context.Background(), epoch)
	_ = sup.Tick(context.Background(), epoch.Add(999*time.Millisecond))

	if sess.connects != 1 {
		t.Fatalf("connects = %d before backoff elapsed, want 1", sess.connects)
	}
	if sup.State() != StateBackingOff {
		t.Errorf("State() = %q, want backing_off", sup.State())
	}

	_ = sup.Tick(context.Background(), epoch.Add(time.Second))
	if sess.connects != 2 {
		t.Errorf("connects = %d once backoff elapsed, want 2", sess.connects)
	}
}

// =============================================================================
// Backoff Property Tests
// =============================================================================

func TestBackoff_GapsNonDecreasingAndCapped(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())
	sess.connectErr = broker.ErrHandshakeFailed

	var attempts []time.Time
	var backoffs []time.Duration

	now := epoch
	for i := 0; i < 5000; i++ {
		before := sess.connects
		_ = sup.Tick(context.Background(), now)
		if sess.connects > before {
			attempts = append(attempts, now)
			backoffs = append(backoffs, sup.Snapshot().Retry.Backoff)
		}
		now = now.Add(100 * time.Millisecond)
	}

	if len(attempts) < 10 {
		t.Fatalf("only %d attempts in simulated window", len(attempts))
	}

	for i := 1; i < len(attempts); i++ {
		gap := attempts[i].Sub(attempts[i-1])
		if gap < backoffs[i-1] {
			t.Errorf("attempt %d came %v after previous, backoff was %v", i, gap, backoffs[i-1])
		}
		if backoffs[i] < backoffs[i-1] {
			t.Errorf("backoff decreased from %v to %v", backoffs[i-1], backoffs[i])
		}
		if backoffs[i] > time.Minute {
			t.Errorf("backoff %v exceeds ceiling", backoffs[i])
		}
	}

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, time.Minute, time.Minute,
	}
	for i, w := range want {
		if backoffs[i] != w {
			t.Errorf("backoff after failure %d = %v, want %v", i+1, backoffs[i], w)
		}
	}
}

func TestBackoff_ResetsAfterSuccess(t *testing.T) {
	sup, _, _, sess := newTestSupervisor(testConfig())
	sess.connectErr = broker.ErrHandshakeFailed

	now := epoch
	for sup.Snapshot().Retry.Failures < 3 {
		_ = sup.Tick(context.Background(), now)
		now = now.Add(100 * time.Millisecond)
	}
	if sup.Snapshot().Retry.Backoff != 4*time.Second {
		t.Fatalf("Backoff = %v after 3 failures, want 4s", sup.Snapshot().Retry.Backoff)
	}

	sess.connectErr = nil
	for sup.State() != StateIdle {
		_ = sup.Tick(context.Background(), now)
		now = now.Add(100 * time.Millisecond)
	}

	snap := sup.Snapshot()
	if snap.Retry.Backoff != time.Second {
		t.Errorf("Backoff = %v after success, want base 1s", snap.Retry.Backoff)
	}
	if snap.Retry.Failures != 0 || snap.Retry.LastError != "" {
		t.Errorf("Retry = %+v, want cleared failures", snap.Retry)
	}

	// The next failure starts the curve again from the base.
	sess.healthy = false
	sess.connectErr = broker.ErrHandshakeFailed
	now = now.Add(time.Second)
	_ = sup.Tick(context.Background(), now)
	if got := sup.Snapshot().Retry.Backoff; got != time.Second {
		t.Errorf("Backoff after first new failure = %v, want 1s", got)
	}
}

func TestBackoff_CustomCurve(t *testing.T) {
	cfg := testConfig()
	cfg.InitialInterval = 100 * time.Millisecond
	cfg.Multiplier = 3
	cfg.MaxInterval = time.Second

	sup, _, _, sess := newTestSupervisor(cfg)
	sess.connectErr = broker.ErrHandshakeFailed

	var backoffs []time.Duration
	now := epoch
	for len(backoffs) < 5 {
		before := sess.connects
		_ = sup.Tick(context.Background(), now)
		if sess.connects > before {
			backoffs = append(backoffs, sup.Snapshot().Retry.Backoff)
		}
		now = now.Add(10 * time.Millisecond)
	}

	want := []time.Duration{
		100 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond,
		time.Second, time.Second,
	}
	for i := range want {
		if backoffs[i] != want[i] {
			t.Errorf("backoffs = %v, want %v", backoffs, want)
			break
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	sup := New(Config{}, &fakeLink{}, &fakeAcquirer{}, &fakeSession{})

	snap := sup.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("State = %q, want idle", snap.State)
	}
	if snap.Retry.Backoff != DefaultInitialInterval {
		t.Errorf("Backoff = %v, want %v", snap.Retry.Backoff, DefaultInitialInterval)
	}
	if !sup.NextAttempt().IsZero() {
		t.Error("NextAttempt() non-zero before any attempt")
	}
}

package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
)

const (
	// defaultPollInterval matches the firmware's 500ms status poll.
	defaultPollInterval = 500 * time.Millisecond

	defaultProbeTimeout      = 2 * time.Second
	defaultProbeFailureLimit = 3
)

// Interface is a Link backed by a Driver.
//
// Thread Safety:
//   - Query methods are safe for concurrent use.
//   - Connect and Refresh are expected to be called from the node loop only.
type Interface struct {
	driver       Driver
	pollInterval time.Duration
	probeTimeout time.Duration
	failureLimit int
	logger       Logger

	// probeFailures counts consecutive failed Refresh reads.
	probeFailures int

	mu      sync.RWMutex
	status  Status
	ssid    string
	address string
	rssi    int
}

// NewInterface creates a disconnected link using driver.
// A non-positive pollInterval falls back to 500ms.
func NewInterface(driver Driver, pollInterval time.Duration) *Interface {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Interface{
		driver:       driver,
		pollInterval: pollInterval,
		probeTimeout: defaultProbeTimeout,
		failureLimit: defaultProbeFailureLimit,
		logger:       logging.Discard(),
		status:       StatusDisconnected,
	}
}

// SetLogger sets a logger for association progress.
func (l *Interface) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetProbeTimeout bounds each Refresh read. Non-positive values are ignored.
func (l *Interface) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		l.probeTimeout = d
	}
}

// SetProbeFailureLimit sets how many consecutive failed reads mark a
// connected link down. Values below 1 are ignored.
func (l *Interface) SetProbeFailureLimit(n int) {
	if n >= 1 {
		l.failureLimit = n
	}
}

// Connect associates with ssid and waits until the interface has an address.
//
// The driver is asked to associate, then the interface is probed every poll
// interval until it reports the requested SSID with an assigned address or
// timeout elapses. A timed-out attempt is not retried.
//
// Returns:
//   - nil on confirmed association with an address
//   - ErrTimeout when timeout elapses first
//   - ErrUnavailable when the driver rejects the association outright
//   - ctx.Err() (wrapped) when the parent context is cancelled
func (l *Interface) Connect(ctx context.Context, ssid, passphrase string, timeout time.Duration) error {
	if ssid == "" {
		return ErrInvalidSSID
	}
	if timeout <= 0 {
		return ErrInvalidTimeout
	}

	l.probeFailures = 0
	l.setState(StatusConnecting, ssid, "", 0)
	l.logger.Info("associating with access point", "ssid", ssid, "timeout", timeout)

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.driver.Associate(attemptCtx, ssid, passphrase); err != nil {
		l.setState(StatusDisconnected, "", "", 0)
		if ctx.Err() != nil {
			return fmt.Errorf("link connect %s: %w", ssid, ctx.Err())
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %v", ErrTimeout, ssid, timeout)
		}
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, ssid, err)
	}

	for {
		probe, err := l.driver.Probe(attemptCtx)
		if err == nil && probe.Associated && probe.Address != "" && probe.SSID == ssid {
			l.setState(StatusConnected, ssid, probe.Address, probe.RSSI)
			l.logger.Info("access point associated",
				"ssid", ssid,
				"address", probe.Address,
				"rssi_dbm", probe.RSSI,
			)
			return nil
		}
		if err != nil {
			l.logger.Debug("interface probe failed", "ssid", ssid, "error", err)
		}

		if waitErr := sleepContext(attemptCtx, l.pollInterval); waitErr != nil {
			l.setState(StatusDisconnected, "", "", 0)
			if ctx.Err() != nil {
				return fmt.Errorf("link connect %s: %w", ssid, ctx.Err())
			}
			l.logger.Warn("access point association timed out", "ssid", ssid, "timeout", timeout)
			return fmt.Errorf("%w: %s after %v", ErrTimeout, ssid, timeout)
		}
	}
}

// Refresh probes the interface once, within the probe timeout, and updates
// the observed state.
//
// This is how a silent drop (access point gone, DHCP lease lost) becomes
// visible to IsConnected. A failed read says nothing about the association,
// so the last observed state is kept until the failure limit is reached.
func (l *Interface) Refresh(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()

	probe, err := l.driver.Probe(probeCtx)
	if err != nil {
		l.probeFailures++
		if l.probeFailures >= l.failureLimit && l.IsConnected() {
			l.logger.Warn("link lost after repeated probe failures",
				"ssid", l.SSID(),
				"failures", l.probeFailures,
				"error", err,
			)
			l.setState(StatusDisconnected, "", "", 0)
		}
		return fmt.Errorf("link refresh: %w", err)
	}
	l.probeFailures = 0

	if probe.Associated && probe.Address != "" {
		l.setState(StatusConnected, probe.SSID, probe.Address, probe.RSSI)
		return nil
	}

	if l.IsConnected() {
		l.logger.Warn("link lost", "ssid", l.SSID())
	}
	l.setState(StatusDisconnected, "", "", 0)
	return nil
}

// IsConnected reports whether the last observation was an associated interface with an address.
func (l *Interface) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status == StatusConnected
}

// SignalStrength returns the last observed RSSI in dBm (0 when disconnected).
func (l *Interface) SignalStrength() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rssi
}

// SSID returns the network the link is joined to or joining.
func (l *Interface) SSID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ssid
}

// Address returns the assigned IP address (empty when disconnected).
func (l *Interface) Address() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.address
}

// Status returns the current link status.
func (l *Interface) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *Interface) setState(status Status, ssid, address string, rssi int) {
	l.mu.Lock()
	l.status = status
	l.ssid = ssid
	l.address = address
	l.rssi = rssi
	l.mu.Unlock()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package link

import (
	"context"
	"sort"
	"time"
)

// Status is the link state as last observed.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Credential is one candidate access point. Lower Priority values are preferred.
type Credential struct {
	SSID       string
	Passphrase string
	Priority   int
}

// String returns the SSID only, so credentials never leak into logs.
func (c Credential) String() string {
	return c.SSID
}

// SortCredentials returns a copy of creds ordered by ascending priority.
// Equal priorities keep their configured order.
func SortCredentials(creds []Credential) []Credential {
	sorted := make([]Credential, len(creds))
	copy(sorted, creds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// Link is the network link a broker session runs on.
//
// Connect is the only blocking call and is bounded by timeout. The query
// methods return the last observed state and never touch the interface.
type Link interface {
	Connect(ctx context.Context, ssid, passphrase string, timeout time.Duration) error
	Refresh(ctx context.Context) error
	IsConnected() bool
	SignalStrength() int
	SSID() string
	Status() Status
}

// Probe is a single reading of interface state from a Driver.
type Probe struct {
	// Associated reports whether the interface is joined to a network.
	Associated bool

	// SSID of the network the interface is joined to.
	SSID string

	// Address is the assigned IP address, empty until DHCP completes.
	Address string

	// RSSI is the received signal strength in dBm (0 when not applicable).
	RSSI int
}

// Driver talks to the operating system's network stack.
type Driver interface {
	// Associate starts joining ssid. It may return before an address is assigned.
	Associate(ctx context.Context, ssid, passphrase string) error

	// Probe reads the current interface state.
	Probe(ctx context.Context) (Probe, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

package link

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// InterfaceInspector returns the state of a named network interface.
type InterfaceInspector func(name string) (up bool, address string, err error)

// StaticDriver is a Driver for links the node does not associate itself,
// such as Ethernet or a WiFi interface managed by the host.
//
// Associate only records the label; the link counts as associated once the
// interface is up with an address. Signal strength is always 0.
type StaticDriver struct {
	iface   string
	inspect InterfaceInspector

	mu    sync.Mutex
	label string
}

// NewStaticDriver creates a driver that watches the named interface.
func NewStaticDriver(iface string) *StaticDriver {
	return &StaticDriver{iface: iface, inspect: inspectInterface}
}

// NewStaticDriverWithInspector creates a driver that reads interface state through inspect.
func NewStaticDriverWithInspector(iface string, inspect InterfaceInspector) *StaticDriver {
	return &StaticDriver{iface: iface, inspect: inspect}
}

// Associate records label as the network name reported by Probe.
func (d *StaticDriver) Associate(_ context.Context, label, _ string) error {
	if _, _, err := d.inspect(d.iface); err != nil {
		return fmt.Errorf("static link %s: %w", d.iface, err)
	}
	d.mu.Lock()
	d.label = label
	d.mu.Unlock()
	return nil
}

// Probe reports the interface as associated when it is up with an address.
func (d *StaticDriver) Probe(_ context.Context) (Probe, error) {
	up, address, err := d.inspect(d.iface)
	if err != nil {
		return Probe{}, fmt.Errorf("static link %s: %w", d.iface, err)
	}

	d.mu.Lock()
	label := d.label
	d.mu.Unlock()

	if !up || address == "" {
		return Probe{}, nil
	}
	if label == "" {
		label = d.iface
	}
	return Probe{Associated: true, SSID: label, Address: address}, nil
}

// inspectInterface reads interface flags and the first unicast address.
func inspectInterface(name string) (bool, string, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return false, "", err
	}
	if ifi.Flags&net.FlagUp == 0 {
		return false, "", nil
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return false, "", err
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLinkLocalUnicast() {
			return true, ipNet.IP.String(), nil
		}
	}
	return true, "", nil
}

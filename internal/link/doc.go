// Package link manages the node's physical network link.
//
// It provides:
//   - Interface: a Link that associates with a named access point through a
//     Driver and polls until the interface reports an address, bounded by a
//     caller-supplied timeout
//   - Selector: tries an ordered list of access point credentials until one
//     associates (home network first, phone hotspot as fallback)
//   - NMCLIDriver: NetworkManager-backed WiFi driver
//   - StaticDriver: wired or externally managed interfaces
//
// A timed-out association is never retried inside this package. Retry policy
// belongs to the reconnect supervisor. Refresh is bounded by the probe
// timeout, and a failed read does not by itself mark the link down.
//
// # Usage
//
//	l := link.NewInterface(link.NewNMCLIDriver("wlan0"), 500*time.Millisecond)
//	l.SetProbeTimeout(2 * time.Second)
//	sel := link.NewSelector(l, 10*time.Second, 0)
//	cred, err := sel.Acquire(ctx, creds)
//	if err != nil {
//	    // all candidates failed; try again after backoff
//	}
//	log.Printf("joined %s at %d dBm", cred.SSID, l.SignalStrength())
package link

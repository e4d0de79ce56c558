// Package supervisor keeps the broker session alive.
//
// The Supervisor is a tick-driven state machine over idle, reconnecting and
// backing_off. It never sleeps: the owner calls Tick frequently with the
// current time, and every reconnect attempt is gated on the time elapsed
// since the previous attempt. The only blocking wait inside a tick is the
// bounded network association when the link has to be re-acquired.
//
//	idle ──drop──▶ reconnecting ──recover──▶ idle
//	                  │    ▲
//	                fail  retry
//	                  ▼    │
//	               backing_off
//
// After each failed attempt the delay grows exponentially up to a ceiling;
// a successful attempt resets it to the base interval.
package supervisor

// Package node runs the Gray Logic Node main loop.
//
// A Node owns the network link, broker session and reconnect supervisor and
// drives them from a single goroutine. Every tick it:
//
//  1. lets the supervisor observe and, if needed, re-establish connectivity
//  2. dispatches queued control messages to the CommandHandler (healthy only)
//  3. publishes the current sensor snapshot when the publish interval is due
//     and the session is healthy
//  4. refreshes the Status exposed to the local API
//
// Sensor reading and actuator control stay outside this package, behind
// SnapshotSource and CommandHandler.
package node

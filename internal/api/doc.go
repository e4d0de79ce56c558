// Package api implements the local status HTTP API and WebSocket feed for
// a Gray Logic node.
//
// This package provides:
//   - Read-only REST endpoints for health, live connectivity status and
//     recorded history
//   - The Prometheus scrape endpoint at /metrics
//   - A WebSocket hub that pushes connectivity transitions and state
//     publishes to subscribed clients
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The API never touches the link or broker session directly. It reads the
// status snapshot the node loop maintains and the history repository, and
// the node loop pushes events into the Hub via node.Notifier.
//
// # Graceful Degradation
//
// The server runs without history or a database; the history endpoints
// then answer 503 and /health omits the database check.
package api

// Package publisher serialises the node's sensor and actuator state into the
// fixed state message and hands it to the broker session.
//
// The wire format is a flat JSON object with fields in a fixed order:
//
//	{"temperature":23.5,"humidity":41.2,"led":1,"fan":0,"mode":"auto"}
//
// Temperatures and humidity carry one decimal, actuator states are 0 or 1,
// and mode is a JSON string. A message larger than the configured limit is
// rejected, never truncated.
package publisher

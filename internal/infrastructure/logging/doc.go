// Package logging provides the structured logger shared by every layer of
// the node.
//
// It is a thin layer over log/slog. Entries carry service and version
// fields, and Component adds a component field so link, broker and
// supervisor output can be told apart in one stream:
//
//	log := logging.New(cfg.Logging, version)
//	session.SetLogger(log.Component("broker"))
//
// Configured in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log WiFi passphrases, broker passwords or InfluxDB tokens. Log the
// SSID or broker host instead.
package logging

// Package config loads the node's YAML configuration.
//
// Load applies defaults, reads the file, then lets GRAYLOGIC_NODE_* environment
// variables override individual fields before validating. Access points are
// tried in ascending priority order; durations are given in
// milliseconds and converted by accessor methods such as
// MQTTReconnectConfig.InitialDelay.
//
// Keep WiFi passphrases and the broker password out of the file where
// possible and set them through the environment instead.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	creds := cfg.Network.AccessPoints
package config

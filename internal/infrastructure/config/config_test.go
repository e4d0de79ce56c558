package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Network.AccessPoints = []AccessPointConfig{
		{SSID: "Home", Passphrase: "secret", Priority: 0},
	}
	cfg.MQTT.Broker.ClientID = "test-node"
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "kitchen-node"
network:
  driver: "static"
  interface: "eth0"
  access_points:
    - ssid: "Home"
      passphrase: "home-pass"
      priority: 0
    - ssid: "Phone"
      passphrase: "phone-pass"
      priority: 1
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  topics:
    state: "home/test/sensors"
    control: "home/test/control"
  max_payload_size: 200
  reconnect:
    initial_delay_ms: 500
    max_delay_ms: 8000
    multiplier: 2
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "kitchen-node" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "kitchen-node")
	}
	if len(cfg.Network.AccessPoints) != 2 {
		t.Fatalf("AccessPoints = %d, want 2", len(cfg.Network.AccessPoints))
	}
	if cfg.Network.AccessPoints[1].SSID != "Phone" {
		t.Errorf("AccessPoints[1].SSID = %q, want %q", cfg.Network.AccessPoints[1].SSID, "Phone")
	}
	if cfg.MQTT.Topics.State != "home/test/sensors" {
		t.Errorf("Topics.State = %q, want %q", cfg.MQTT.Topics.State, "home/test/sensors")
	}
	// Unset values keep their defaults.
	if cfg.MQTT.Topics.Availability != "home/arduino/status" {
		t.Errorf("Topics.Availability = %q, want default", cfg.MQTT.Topics.Availability)
	}
	if cfg.MQTT.Reconnect.InitialDelay() != 500*time.Millisecond {
		t.Errorf("InitialDelay() = %v, want 500ms", cfg.MQTT.Reconnect.InitialDelay())
	}
	if cfg.Network.ConnectTimeout() != 10*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 10s", cfg.Network.ConnectTimeout())
	}
	if cfg.Network.CandidatePause() != 0 {
		t.Errorf("CandidatePause() = %v, want 0", cfg.Network.CandidatePause())
	}
	if cfg.Network.ProbeTimeout() != 2*time.Second || cfg.Network.RefreshInterval() != 2*time.Second {
		t.Errorf("ProbeTimeout() = %v, RefreshInterval() = %v, want 2s each",
			cfg.Network.ProbeTimeout(), cfg.Network.RefreshInterval())
	}
	if cfg.Network.ProbeFailureLimit != 3 {
		t.Errorf("ProbeFailureLimit = %d, want 3", cfg.Network.ProbeFailureLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_NoAccessPoints(t *testing.T) {
	_, err := Load(writeConfig(t, "device:\n  id: \"n1\"\n"))
	if err == nil {
		t.Fatal("Load() expected validation error for empty access point list")
	}
	if !strings.Contains(err.Error(), "access_points") {
		t.Errorf("error = %v, want mention of access_points", err)
	}
}

func TestLoad_GeneratesClientID(t *testing.T) {
	content := `
network:
  access_points:
    - ssid: "Home"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(cfg.MQTT.Broker.ClientID, "graylogic-node-") {
		t.Errorf("ClientID = %q, want graylogic-node- prefix", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
network:
  access_points:
    - ssid: "Home"
      passphrase: "from-file"
    - ssid: "Phone"
mqtt:
  broker:
    host: "file-host"
`
	t.Setenv("GRAYLOGIC_NODE_MQTT_HOST", "env-host")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PASSWORD", "env-password")
	t.Setenv("GRAYLOGIC_NODE_WIFI_1_PASSPHRASE", "env-phone-pass")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-host" {
		t.Errorf("Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "env-host")
	}
	if cfg.MQTT.Auth.Password != "env-password" {
		t.Errorf("Auth.Password not overridden")
	}
	if cfg.Network.AccessPoints[0].Passphrase != "from-file" {
		t.Errorf("AccessPoints[0].Passphrase = %q, want from-file", cfg.Network.AccessPoints[0].Passphrase)
	}
	if cfg.Network.AccessPoints[1].Passphrase != "env-phone-pass" {
		t.Errorf("AccessPoints[1].Passphrase = %q, want env-phone-pass", cfg.Network.AccessPoints[1].Passphrase)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Network.Driver = "bluetooth" },
			wantErr: true,
		},
		{
			name:    "access point without SSID",
			mutate:  func(c *Config) { c.Network.AccessPoints[0].SSID = "" },
			wantErr: true,
		},
		{
			name:    "zero probe timeout",
			mutate:  func(c *Config) { c.Network.ProbeTimeoutMS = 0 },
			wantErr: true,
		},
		{
			name:    "negative refresh interval",
			mutate:  func(c *Config) { c.Network.RefreshIntervalMS = -1 },
			wantErr: true,
		},
		{
			name:    "zero probe failure limit",
			mutate:  func(c *Config) { c.Network.ProbeFailureLimit = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "zero payload size",
			mutate:  func(c *Config) { c.MQTT.MaxPayloadSize = 0 },
			wantErr: true,
		},
		{
			name:    "ceiling below base",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxDelayMS = 10 },
			wantErr: true,
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Multiplier = 0.5 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without URL",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "api disabled ignores port",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_TimeoutHelpers(t *testing.T) {
	cfg := validConfig()

	if got := cfg.GetReadTimeout(); got != 15*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 15s", got)
	}
	if got := cfg.Loop.PublishInterval(); got != 2*time.Second {
		t.Errorf("PublishInterval() = %v, want 2s", got)
	}
	if got := cfg.MQTT.Reconnect.MaxDelay(); got != time.Minute {
		t.Errorf("MaxDelay() = %v, want 1m", got)
	}
}

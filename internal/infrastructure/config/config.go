package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Loop      LoopConfig      `yaml:"loop"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this node.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// NetworkConfig contains network link settings and the ordered access point list.
type NetworkConfig struct {
	// Driver selects the link implementation: "nmcli" or "static".
	Driver    string `yaml:"driver"`
	Interface string `yaml:"interface"`

	// ConnectTimeoutMS bounds a single access point association attempt.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`

	// PollIntervalMS is how often interface status is polled while associating.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// CandidatePauseMS is the pause between two failed access points. It
	// blocks the node loop on top of the connect timeout, so it defaults to 0.
	CandidatePauseMS int `yaml:"candidate_pause_ms"`

	// ProbeTimeoutMS bounds a single interface status read.
	ProbeTimeoutMS int `yaml:"probe_timeout_ms"`

	// RefreshIntervalMS is the minimum gap between link probes while idle.
	RefreshIntervalMS int `yaml:"refresh_interval_ms"`

	// ProbeFailureLimit is how many consecutive failed reads mark a connected link down.
	ProbeFailureLimit int `yaml:"probe_failure_limit"`

	AccessPoints []AccessPointConfig `yaml:"access_points"`
}

// AccessPointConfig is one candidate network. Lower priority values are tried first.
type AccessPointConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	Priority   int    `yaml:"priority"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	Auth           MQTTAuthConfig      `yaml:"auth"`
	QoS            int                 `yaml:"qos"`
	Topics         MQTTTopicsConfig    `yaml:"topics"`
	MaxPayloadSize int                 `yaml:"max_payload_size"`
	InboxSize      int                 `yaml:"inbox_size"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	TLS              bool   `yaml:"tls"`
	ClientID         string `yaml:"client_id"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	KeepAlive        int    `yaml:"keep_alive"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTopicsConfig names the fixed topics the node uses.
type MQTTTopicsConfig struct {
	State        string `yaml:"state"`
	Control      string `yaml:"control"`
	Availability string `yaml:"availability"`
}

// MQTTReconnectConfig contains the reconnect backoff curve.
type MQTTReconnectConfig struct {
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// LoopConfig controls the cooperative main loop cadence.
type LoopConfig struct {
	TickIntervalMS    int `yaml:"tick_interval_ms"`
	PublishIntervalMS int `yaml:"publish_interval_ms"`
	MaxDispatch       int `yaml:"max_dispatch"`
}

// SensorsConfig points at the snapshot written by the sensor collaborator.
type SensorsConfig struct {
	SnapshotFile string `yaml:"snapshot_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	Retention   int    `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Network drivers.
const (
	DriverNMCLI  = "nmcli"
	DriverStatic = "static"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "GRAYLOGIC_NODE_"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY.
// Access point passphrases are overridden by index: GRAYLOGIC_NODE_WIFI_0_PASSPHRASE.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDerivedDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Topic names and the payload limit follow the original device firmware.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "node-001",
			Name: "Gray Logic Node",
		},
		Network: NetworkConfig{
			Driver:           DriverNMCLI,
			Interface:        "wlan0",
			ConnectTimeoutMS: 10000,
			PollIntervalMS:    500,
			CandidatePauseMS:  0,
			ProbeTimeoutMS:    2000,
			RefreshIntervalMS: 2000,
			ProbeFailureLimit: 3,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:             "broker.hivemq.com",
				Port:             1883,
				ConnectTimeoutMS: 5000,
				KeepAlive:        30,
			},
			QoS: 0,
			Topics: MQTTTopicsConfig{
				State:        "home/arduino/sensors",
				Control:      "home/arduino/control",
				Availability: "home/arduino/status",
			},
			MaxPayloadSize: 150,
			InboxSize:      16,
			Reconnect: MQTTReconnectConfig{
				InitialDelayMS: 1000,
				MaxDelayMS:     60000,
				Multiplier:     2,
			},
		},
		Loop: LoopConfig{
			TickIntervalMS:    250,
			PublishIntervalMS: 2000,
			MaxDispatch:       8,
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-node.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   10000,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Network
	if v := os.Getenv(envPrefix + "NETWORK_DRIVER"); v != "" {
		cfg.Network.Driver = v
	}
	if v := os.Getenv(envPrefix + "NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	for i := range cfg.Network.AccessPoints {
		if v := os.Getenv(envPrefix + "WIFI_" + strconv.Itoa(i) + "_PASSPHRASE"); v != "" {
			cfg.Network.AccessPoints[i].Passphrase = v
		}
	}

	// MQTT
	if v := os.Getenv(envPrefix + "MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv(envPrefix + "MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv(envPrefix + "MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv(envPrefix + "MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv(envPrefix + "INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv(envPrefix + "DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// applyDerivedDefaults fills values that depend on other settings.
func applyDerivedDefaults(cfg *Config) {
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = "graylogic-node-" + uuid.NewString()[:8]
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// Network validation
	switch c.Network.Driver {
	case DriverNMCLI, DriverStatic:
	default:
		errs = append(errs, fmt.Sprintf("network.driver must be %q or %q", DriverNMCLI, DriverStatic))
	}
	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	if c.Network.ConnectTimeoutMS <= 0 {
		errs = append(errs, "network.connect_timeout_ms must be positive")
	}
	if c.Network.PollIntervalMS <= 0 {
		errs = append(errs, "network.poll_interval_ms must be positive")
	}
	if c.Network.CandidatePauseMS < 0 {
		errs = append(errs, "network.candidate_pause_ms must not be negative")
	}
	if c.Network.ProbeTimeoutMS <= 0 {
		errs = append(errs, "network.probe_timeout_ms must be positive")
	}
	if c.Network.RefreshIntervalMS < 0 {
		errs = append(errs, "network.refresh_interval_ms must not be negative")
	}
	if c.Network.ProbeFailureLimit < 1 {
		errs = append(errs, "network.probe_failure_limit must be at least 1")
	}
	if len(c.Network.AccessPoints) == 0 {
		errs = append(errs, "network.access_points must list at least one access point")
	}
	for i, ap := range c.Network.AccessPoints {
		if ap.SSID == "" {
			errs = append(errs, fmt.Sprintf("network.access_points[%d].ssid is required", i))
		}
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.State == "" {
		errs = append(errs, "mqtt.topics.state is required")
	}
	if c.MQTT.Topics.Control == "" {
		errs = append(errs, "mqtt.topics.control is required")
	}
	if c.MQTT.MaxPayloadSize <= 0 {
		errs = append(errs, "mqtt.max_payload_size must be positive")
	}
	if c.MQTT.InboxSize <= 0 {
		errs = append(errs, "mqtt.inbox_size must be positive")
	}
	if c.MQTT.Reconnect.InitialDelayMS <= 0 {
		errs = append(errs, "mqtt.reconnect.initial_delay_ms must be positive")
	}
	if c.MQTT.Reconnect.MaxDelayMS < c.MQTT.Reconnect.InitialDelayMS {
		errs = append(errs, "mqtt.reconnect.max_delay_ms must not be below initial_delay_ms")
	}
	if c.MQTT.Reconnect.Multiplier < 1 {
		errs = append(errs, "mqtt.reconnect.multiplier must be at least 1")
	}

	// Loop validation
	if c.Loop.TickIntervalMS <= 0 {
		errs = append(errs, "loop.tick_interval_ms must be positive")
	}
	if c.Loop.PublishIntervalMS <= 0 {
		errs = append(errs, "loop.publish_interval_ms must be positive")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectTimeout returns the per access point association timeout.
func (n NetworkConfig) ConnectTimeout() time.Duration {
	return time.Duration(n.ConnectTimeoutMS) * time.Millisecond
}

// PollInterval returns the interface polling interval.
func (n NetworkConfig) PollInterval() time.Duration {
	return time.Duration(n.PollIntervalMS) * time.Millisecond
}

// CandidatePause returns the pause between failed access points.
func (n NetworkConfig) CandidatePause() time.Duration {
	return time.Duration(n.CandidatePauseMS) * time.Millisecond
}

// ProbeTimeout returns the deadline for one interface status read.
func (n NetworkConfig) ProbeTimeout() time.Duration {
	return time.Duration(n.ProbeTimeoutMS) * time.Millisecond
}

// RefreshInterval returns the minimum gap between idle link probes.
func (n NetworkConfig) RefreshInterval() time.Duration {
	return time.Duration(n.RefreshIntervalMS) * time.Millisecond
}

// ConnectTimeout returns the broker handshake timeout.
func (b MQTTBrokerConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutMS) * time.Millisecond
}

// InitialDelay returns the base reconnect backoff.
func (r MQTTReconnectConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// MaxDelay returns the reconnect backoff ceiling.
func (r MQTTReconnectConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// TickInterval returns the main loop tick period.
func (l LoopConfig) TickInterval() time.Duration {
	return time.Duration(l.TickIntervalMS) * time.Millisecond
}

// PublishInterval returns how often state is published.
func (l LoopConfig) PublishInterval() time.Duration {
	return time.Duration(l.PublishIntervalMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

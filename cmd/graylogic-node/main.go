// Gray Logic Node - connectivity manager for a sensor/actuator node
//
// This is the main entry point for the node. It keeps the node on the best
// available WiFi network, holds an MQTT session with its control
// subscription re-asserted after every reconnect, and publishes the sensor
// snapshot on a fixed cadence.
//
// The node runs offline-first: every dependency beyond the network link and
// the broker (history database, InfluxDB, status API) is optional.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/broker"
	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/metrics"
	"github.com/nerrad567/gray-logic-node/internal/node"
	"github.com/nerrad567/gray-logic-node/internal/supervisor"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable that overrides defaultConfigPath.
const configEnv = "GRAYLOGIC_NODE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"device_id", cfg.Device.ID,
		"access_points", len(cfg.Network.AccessPoints),
	)

	// History database
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	historyRepo := history.NewSQLiteRepository(db.DB)

	// Optional InfluxDB telemetry
	var telemetry node.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connectivity stack: link -> selector -> session -> supervisor
	netLink := link.NewInterface(newDriver(cfg.Network), cfg.Network.PollInterval())
	netLink.SetProbeTimeout(cfg.Network.ProbeTimeout())
	netLink.SetProbeFailureLimit(cfg.Network.ProbeFailureLimit)
	netLink.SetLogger(log.Component("link"))

	selector := link.NewSelector(netLink, cfg.Network.ConnectTimeout(), cfg.Network.CandidatePause())
	selector.SetLogger(log.Component("selector"))

	transport := mqtt.New(cfg.MQTT)
	transport.SetLogger(log.Component("mqtt"))
	transport.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	topics := mqtt.NewTopics(cfg.MQTT)
	session := broker.NewSession(netLink, transport, broker.Options{
		QoS:               byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0..2
		AvailabilityTopic: topics.Availability(),
		InboxSize:         cfg.MQTT.InboxSize,
	})
	session.SetLogger(log.Component("broker"))

	sup := supervisor.New(supervisor.Config{
		ClientID:        cfg.MQTT.Broker.ClientID,
		Topics:          topics.Required(),
		Credentials:     credentials(cfg.Network.AccessPoints),
		InitialInterval: cfg.MQTT.Reconnect.InitialDelay(),
		MaxInterval:     cfg.MQTT.Reconnect.MaxDelay(),
		Multiplier:      cfg.MQTT.Reconnect.Multiplier,
		RefreshInterval: cfg.Network.RefreshInterval(),
	}, netLink, selector, session)
	sup.SetLogger(log.Component("supervisor"))

	// Metrics
	m := metrics.New()
	m.RegisterInboxStats(func() (uint64, uint64) {
		st := session.Stats()
		return st.Dropped, st.Discarded
	})

	// WebSocket hub (shared between the node loop and the API)
	var hub *api.Hub
	var notifier node.Notifier
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go hub.Run(ctx)
		notifier = hub
	}

	var snapshots node.SnapshotSource
	if cfg.Sensors.SnapshotFile != "" {
		snapshots = node.FileSnapshotSource{Path: cfg.Sensors.SnapshotFile}
	} else {
		log.Warn("no sensors.snapshot_file configured, state will not be published")
	}

	n, err := node.New(node.Options{
		DeviceID:        cfg.Device.ID,
		StateTopic:      topics.State(),
		MaxPayloadSize:  cfg.MQTT.MaxPayloadSize,
		TickInterval:    cfg.Loop.TickInterval(),
		PublishInterval: cfg.Loop.PublishInterval(),
		MaxDispatch:     cfg.Loop.MaxDispatch,
		Retention:       cfg.Database.Retention,
	}, node.Deps{
		Link:       netLink,
		Session:    session,
		Supervisor: sup,
		Snapshots:  snapshots,
		Commands:   &node.RecordingCommandHandler{History: historyRepo, Logger: log.Component("commands")},
		History:    historyRepo,
		Metrics:    m,
		Telemetry:  telemetry,
		Notifier:   notifier,
		Logger:     log.Component("node"),
	})
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	// Status API
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Status:  n,
			History: historyRepo,
			Metrics: m.Handler(),
			DB:      db,
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	if err := healthCheck(ctx, db, telemetry); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, starting node loop",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Blocks until shutdown; the loop publishes "offline" before returning.
	if err := n.Run(ctx); err != nil {
		return fmt.Errorf("node loop: %w", err)
	}

	log.Info("Gray Logic Node stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_NODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// newDriver selects the link driver named in the network config.
func newDriver(cfg config.NetworkConfig) link.Driver {
	if cfg.Driver == config.DriverStatic {
		return link.NewStaticDriver(cfg.Interface)
	}
	return link.NewNMCLIDriver(cfg.Interface)
}

// credentials converts configured access points to link credentials.
func credentials(aps []config.AccessPointConfig) []link.Credential {
	creds := make([]link.Credential, 0, len(aps))
	for _, ap := range aps {
		creds = append(creds, link.Credential{
			SSID:       ap.SSID,
			Passphrase: ap.Passphrase,
			Priority:   ap.Priority,
		})
	}
	return creds
}

// healthCheck verifies the local infrastructure before the loop starts.
// The broker is not checked: reaching it is the loop's job.
func healthCheck(ctx context.Context, db *database.DB, telemetry node.Telemetry) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if checker, ok := telemetry.(interface{ HealthCheck(context.Context) error }); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

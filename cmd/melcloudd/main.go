// melcloudd - MELCloud device synchronization daemon
//
// melcloudd keeps Mitsubishi Electric air conditioners, heat pumps and
// Lossnay ventilators in sync with their MELCloud cloud state. It polls
// the cloud on per-account schedules, publishes device info and state
// over MQTT, records a local audit trail, and exposes a status and
// control API over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skra72/melcloudd/internal/api"
	"github.com/skra72/melcloudd/internal/bridge"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/history"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
	"github.com/skra72/melcloudd/internal/infrastructure/influxdb"
	"github.com/skra72/melcloudd/internal/infrastructure/logging"
	"github.com/skra72/melcloudd/internal/infrastructure/mqtt"
	"github.com/skra72/melcloudd/internal/store"
	"github.com/skra72/melcloudd/internal/sync"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting melcloudd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the snapshot store
	st, err := store.New(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	log.Info("snapshot store ready", "dir", cfg.Storage.Dir)

	// The event bus fans synchronization events out to the log, MQTT,
	// history and telemetry consumers.
	bus := events.NewBus()
	attachEventLog(bus, log)

	// Open the state history recorder (optional)
	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Open(cfg.History)
		if err != nil {
			return fmt.Errorf("opening state history: %w", err)
		}
		defer func() {
			log.Info("closing state history")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing state history", "error", closeErr)
			}
		}()
		recorder.SetLogger(log)
		recorder.Attach(bus)
		log.Info("state history enabled",
			"path", cfg.History.Path,
			"retention_days", cfg.History.RetentionDays,
		)
	} else {
		log.Info("state history disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		influxClient.Attach(bus)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build one coordinator per configured account. They do not poll
	// yet; the MQTT bridge must attach to the bus first so the earliest
	// deviceInfo and stateChanged events reach the broker.
	coordinators := make(map[string]*sync.Coordinator, len(cfg.Accounts))
	coordinatorList := make([]*sync.Coordinator, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		coord := sync.NewCoordinator(account, st, bus)
		coordinators[coord.Account()] = coord
		coordinatorList = append(coordinatorList, coord)
	}

	// Connect to MQTT and start the bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		br := bridge.New(mqttClient, coordinatorList, log)
		if startErr := br.Start(ctx, bus); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		log.Info("MQTT bridge started", "prefix", cfg.MQTT.Prefix)
	} else {
		log.Info("MQTT disabled")
	}

	// Start the coordinators polling
	for _, coord := range coordinatorList {
		if runErr := coord.Run(ctx); runErr != nil {
			return fmt.Errorf("starting account %q: %w", coord.Account(), runErr)
		}
		defer coord.Stop()
		log.Info("account coordinator started", "account", coord.Account())
	}

	// Start the status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:       cfg.API,
			Logger:       log,
			Coordinators: coordinators,
			History:      recorder,
			Version:      version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (bridge subscriptions die with the client)
	// 3. Coordinators
	// 4. InfluxDB (if enabled)
	// 5. State history (if enabled)

	log.Info("melcloudd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MELCLOUDD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MELCLOUDD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the optional infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// attachEventLog mirrors synchronization events onto the process log.
// Coordinators and synchronizers never log directly; this subscriber is
// their only path to the console.
func attachEventLog(bus *events.Bus, log *logging.Logger) {
	bus.Subscribe(func(e events.Event) {
		switch e.Kind {
		case events.KindConnected:
			log.Info("account connected", "account", e.Account)
		case events.KindDeviceInfo:
			log.Info("device discovered",
				"account", e.Account,
				"device_id", e.Info.DeviceID,
				"name", e.Info.Name,
				"family", e.Info.Family,
			)
		case events.KindStateChanged:
			log.Debug("device state changed",
				"account", e.Account,
				"device_id", e.DeviceID,
				"family", e.Family,
			)
		case events.KindWarning:
			log.Warn(e.Message, "account", e.Account)
		case events.KindError:
			log.Error("synchronization error",
				"account", e.Account,
				"device_id", e.DeviceID,
				"error", e.Err,
			)
		case events.KindDebug:
			log.Debug(e.Message, "account", e.Account)
		case events.KindSchedulerState:
			log.Info("scheduler state",
				"account", e.Account,
				"running", e.Running,
				"timers", e.Timers,
			)
		}
	})
}

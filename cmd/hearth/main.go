// Hearth Core - Home Automation Hub
//
// This is the main entry point for the Hearth Core application. Hearth
// polls vendor devices and cloud APIs through per-entry update
// coordinators and exposes the resulting entities over REST, WebSocket,
// and MQTT.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearth-home/hearth-core/migrations"

	"github.com/hearth-home/hearth-core/internal/api"
	"github.com/hearth-home/hearth-core/internal/bridges/httpjson"
	"github.com/hearth-home/hearth-core/internal/coordinator"
	"github.com/hearth-home/hearth-core/internal/entity"
	"github.com/hearth-home/hearth-core/internal/entry"
	"github.com/hearth-home/hearth-core/internal/history"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/integration"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Entry persistence
	entryRepo := entry.NewSQLiteRepository(db.DB)

	// Integration registry with the built-in adapters
	registry := integration.NewRegistry()
	registry.SetLogger(log)
	if err := httpjson.Register(registry); err != nil {
		return fmt.Errorf("registering httpjson integration: %w", err)
	}
	log.Info("integrations registered", "types", registry.Types())

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Entity state fan-out: MQTT retained topics plus the history recorder
	var publisher entity.StatePublisher
	if mqttClient != nil {
		publisher = entity.NewMQTTPublisher(mqttClient, byte(cfg.MQTT.QoS))
	}

	historyStore := history.NewSQLiteStore(db.DB)
	var tsw history.TimeSeriesWriter
	if influxClient != nil {
		tsw = influxClient
	}
	recorder := history.NewRecorder(historyStore, tsw, log)
	recorder.Start()
	defer func() {
		log.Info("stopping history recorder")
		recorder.Stop()
	}()

	// WebSocket hub is created up front so it can observe entity changes
	// and entry events before the HTTP server starts.
	hub := api.NewHub(cfg.WebSocket, log)

	events := &entryEventSink{
		hub:  hub,
		mqtt: mqttClient,
		qos:  byte(cfg.MQTT.QoS),
		log:  log,
	}

	// Entry manager: one coordinator per loaded entry
	manager := entry.NewManager(entry.Options{
		Repository: entryRepo,
		Registry:   registry,
		Entities:   entityFactory(publisher, []entity.Observer{recorder, hub}, log),
		Events:     events,
		OnPoll: func(entryID string, result coordinator.PollResult) {
			if influxClient != nil {
				influxClient.WriteCoordinatorPoll(entryID, result.Duration, result.Success, result.FailureCount)
			}
		},
		Poll: entry.PollDefaults{
			Interval:         cfg.Polling.GetUpdateInterval(),
			FetchTimeout:     cfg.Polling.GetFetchTimeout(),
			FailureThreshold: cfg.Polling.FailureThreshold,
			DebounceDelay:    cfg.Polling.GetDebounceDelay(),
		},
		Retry: entry.RetryPolicy{
			InitialDelay: cfg.Polling.SetupRetry.GetInitialDelay(),
			MaxDelay:     cfg.Polling.SetupRetry.GetMaxDelay(),
			MaxAttempts:  cfg.Polling.SetupRetry.MaxAttempts,
		},
		Logger: log,
	})
	defer func() {
		log.Info("shutting down entry manager")
		manager.Shutdown()
	}()

	// Load every entry that isn't in a terminal failure state
	if err := manager.SetupAll(ctx); err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	log.Info("entries loaded", "count", manager.LoadedCount())

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Manager:  manager,
		Repo:     entryRepo,
		Registry: registry,
		History:  historyStore,
		MQTT:     mqttClient,
		Version:  version,
		Hub:      hub,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Entry manager
	// 3. History recorder
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// entityFactory builds entities from the entity declarations in an
// entry's options. Declarations that fail to parse are logged and the
// entry loads without entities; the coordinator still polls.
func entityFactory(pub entity.StatePublisher, observers []entity.Observer, log *logging.Logger) entry.EntityFactory {
	return func(e *entry.Entry, coord *coordinator.Coordinator) []*entity.Entity {
		specs, err := entity.SpecsFromOptions(e.Options)
		if err != nil {
			log.Warn("invalid entity declarations", "entry", e.ID, "error", err)
			return nil
		}

		entities := make([]*entity.Entity, 0, len(specs))
		for _, spec := range specs {
			entities = append(entities, entity.New(coord, entity.Options{
				ID:        spec.ID,
				Name:      spec.Name,
				EntryID:   e.ID,
				Derive:    entity.MapDeriver(spec.ValueKey, spec.LiveKey),
				Publisher: pub,
				Observers: observers,
				Logger:    log,
			}))
		}
		return entities
	}
}

// entryEventSink fans entry lifecycle events out to WebSocket clients and
// the MQTT entry topics.
type entryEventSink struct {
	hub  *api.Hub
	mqtt *mqtt.Client
	qos  byte
	log  *logging.Logger
}

// EntryEvent implements entry.EventSink.
func (s *entryEventSink) EntryEvent(ev entry.Event) {
	s.hub.EntryEvent(ev)

	if s.mqtt == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("encoding entry event", "entry", ev.EntryID, "error", err)
		return
	}
	topic := mqtt.Topics{}.EntryEvent(ev.EntryID)
	if err := s.mqtt.Publish(topic, payload, s.qos, false); err != nil {
		s.log.Debug("publishing entry event failed", "entry", ev.EntryID, "error", err)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

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

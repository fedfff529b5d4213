// whaccloud is the collector: it subscribes to every bridge's event and
// state topics, maintains the device registry, persists finished game
// sessions, and serves the dashboard HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	_ "github.com/whaclab/whac-bridge/migrations"

	"github.com/whaclab/whac-bridge/internal/bridge"
	"github.com/whaclab/whac-bridge/internal/infrastructure/config"
	"github.com/whaclab/whac-bridge/internal/infrastructure/database"
	"github.com/whaclab/whac-bridge/internal/infrastructure/influxdb"
	"github.com/whaclab/whac-bridge/internal/infrastructure/logging"
	"github.com/whaclab/whac-bridge/internal/infrastructure/mqtt"
	"github.com/whaclab/whac-bridge/internal/scoreboard"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// defaultConfigPath is used when WHAC_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the HTTP server drain on shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default("whaccloud")
	log.Info("starting whac collector", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, "whaccloud", version)
	log.Info("configuration loaded", "path", configPath)

	// Session store
	db, err := database.Open(database.Config{
		Path:        cfg.Cloud.Database.Path,
		WALMode:     cfg.Cloud.Database.WALMode,
		BusyTimeout: cfg.Cloud.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	repo := scoreboard.NewRepository(db)

	// Dependencies surfaced on GET /health.
	health := map[string]scoreboard.HealthChecker{"database": db}

	// Optional reaction-time series
	var series scoreboard.SeriesWriter
	if cfg.Cloud.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.Cloud.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("influxdb write error", "error", err)
		})
		series = influxClient
		health["influxdb"] = influxClient
		log.Info("influxdb connected",
			"url", cfg.Cloud.InfluxDB.URL,
			"bucket", cfg.Cloud.InfluxDB.Bucket)
	} else {
		log.Info("influxdb disabled")
	}

	tracker := scoreboard.NewTracker(scoreboard.TrackerOptions{
		Store:      repo,
		Series:     series,
		StaleAfter: cfg.Cloud.GetStaleAfter(),
		Logger:     log,
	})

	// Broker session. The collector has no device identity; a random
	// suffix keeps multiple collectors from evicting each other's session.
	clientID := "whaccloud-" + uuid.NewString()[:8]
	mqttClient, err := mqtt.Connect(cfg.MQTT, clientID, nil)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	health["mqtt"] = mqttClient
	log.Info("mqtt connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", clientID)

	namespace := cfg.Bridge.Namespace
	qos := byte(cfg.MQTT.QoS)
	if err := mqttClient.Subscribe(bridge.EventsWildcard(namespace), qos, tracker.HandleEvent); err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	if err := mqttClient.Subscribe(bridge.StateWildcard(namespace), qos, tracker.HandleStatus); err != nil {
		return fmt.Errorf("subscribing to state: %w", err)
	}
	log.Info("subscribed",
		"events", bridge.EventsWildcard(namespace),
		"state", bridge.StateWildcard(namespace),
		"count", mqttClient.SubscriptionCount())

	// HTTP API
	server, err := scoreboard.NewServer(scoreboard.ServerOptions{
		Addr:         net.JoinHostPort(cfg.Cloud.HTTP.Host, strconv.Itoa(cfg.Cloud.HTTP.Port)),
		Tracker:      tracker,
		Store:        repo,
		Publisher:    mqttClient,
		Namespace:    namespace,
		QoS:          qos,
		Health:       health,
		ReadTimeout:  cfg.Cloud.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.Cloud.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.Cloud.HTTP.GetIdleTimeout(),
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("http shutdown error", "error", err)
	}

	log.Info("whac collector stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the WHAC_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("WHAC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

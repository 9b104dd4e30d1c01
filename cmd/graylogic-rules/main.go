// Gray Logic Rules - rule evaluation service for Gray Logic installations.
//
// The service keeps a device registry fed by bridge state reports over MQTT,
// evaluates Lua routines whenever devices change, and sends the resulting
// commands back to the bridges.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/automation"
	"github.com/nerrad567/gray-logic-rules/internal/device"
	"github.com/nerrad567/gray-logic-rules/internal/event"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Rules",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath, err := getConfigPath(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.With("component", "devices"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	catalog, err := automation.LoadDefinitions(cfg.Automation.File)
	if err != nil {
		return fmt.Errorf("loading automation definitions: %w", err)
	}
	log.Info("automation definitions loaded",
		"path", cfg.Automation.File,
		"groups", len(catalog.Groups.IDs()),
		"scenes", len(catalog.Scenes.IDs()),
		"routines", catalog.Routines.Len(),
	)

	mqttClient, err := mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"))
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

	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	qos := byte(cfg.Automation.QoS)
	bus := event.NewBus()
	tx := event.NewForwarder(bus, mqttClient, func(k action.Kind) string {
		return mqtt.Topics{}.CoreAction(string(k))
	}, qos, log.With("component", "bus"))

	evaluator := rules.NewEvaluator(nil, log.With("component", "rules"))
	engine := automation.NewEngine(catalog, registry, evaluator, mqttClient, tx, log.With("component", "automation"))
	engine.SetQoS(qos)
	if influxClient != nil {
		engine.SetTelemetry(influxClient)
	}

	subQoS := byte(cfg.MQTT.QoS)
	if err := mqttClient.Subscribe(mqtt.Topics{}.AllBridgeStates(), subQoS, automation.StateHandler(tx)); err != nil {
		return fmt.Errorf("subscribing to bridge states: %w", err)
	}
	if err := mqttClient.Subscribe(mqtt.Topics{}.ActionRequest(), subQoS, automation.ActionRequestHandler(tx)); err != nil {
		return fmt.Errorf("subscribing to action requests: %w", err)
	}

	log.Info("initialisation complete, processing events")

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, draining events", "pending", bus.Len())
		bus.Close()
	}()

	// Drain on a fresh context so queued actions still run after shutdown starts.
	if err := engine.Run(context.WithoutCancel(ctx), bus); err != nil {
		return fmt.Errorf("running engine: %w", err)
	}

	log.Info("Gray Logic Rules stopped")
	return nil
}

// getConfigPath resolves -config, then GRAYLOGIC_CONFIG, then the default.
func getConfigPath(args []string) (string, error) {
	fs := flag.NewFlagSet("graylogic-rules", flag.ContinueOnError)
	path := fs.String("config", defaultConfigPath, "path to the configuration file")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("GRAYLOGIC")); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	return *path, nil
}

// connectInflux returns nil when telemetry is disabled.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// brickd - LEGO brick control daemon
//
// brickd runs on an ev3dev brick and exposes the robot over MQTT:
//   - Differential drive commands (travel, rotate, arc, steer)
//   - Sound playback and speech
//   - Status led control
//   - Button press events
//   - Battery and motor telemetry to InfluxDB
//   - Motion history in SQLite
//
// All hardware access goes through the sysfs attribute layer, so the
// daemon runs against a fixture tree in tests and against /sys on the
// brick.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openbrick/brickd/migrations"

	"github.com/openbrick/brickd/internal/bridge"
	"github.com/openbrick/brickd/internal/button"
	"github.com/openbrick/brickd/internal/infrastructure/config"
	"github.com/openbrick/brickd/internal/infrastructure/database"
	"github.com/openbrick/brickd/internal/infrastructure/influxdb"
	"github.com/openbrick/brickd/internal/infrastructure/logging"
	"github.com/openbrick/brickd/internal/infrastructure/mqtt"
	"github.com/openbrick/brickd/internal/led"
	"github.com/openbrick/brickd/internal/motor"
	"github.com/openbrick/brickd/internal/pilot"
	"github.com/openbrick/brickd/internal/power"
	"github.com/openbrick/brickd/internal/sensor"
	"github.com/openbrick/brickd/internal/sound"
	"github.com/openbrick/brickd/internal/sysfs"
	"github.com/openbrick/brickd/internal/telemetry"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence: each block wires one subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting brickd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open database and run migrations
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	history := telemetry.NewHistory(db.DB)

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

	// Bind the drive motors
	left, err := newMotor(cfg.Sysfs.Root, cfg.Motors.LeftPort, cfg.Motors.LeftDriver)
	if err != nil {
		return fmt.Errorf("binding left motor on %s: %w", cfg.Motors.LeftPort, err)
	}
	right, err := newMotor(cfg.Sysfs.Root, cfg.Motors.RightPort, cfg.Motors.RightDriver)
	if err != nil {
		return fmt.Errorf("binding right motor on %s: %w", cfg.Motors.RightPort, err)
	}
	log.Info("drive motors bound",
		"left_port", cfg.Motors.LeftPort,
		"right_port", cfg.Motors.RightPort,
	)

	differential, err := pilot.NewDifferential(pilot.Config{
		WheelDiameter: cfg.Robot.Geometry.WheelDiameter,
		TrackWidth:    cfg.Robot.Geometry.TrackWidth,
		TravelSpeed:   cfg.Robot.Geometry.TravelSpeed,
		RotateSpeed:   cfg.Robot.Geometry.RotateSpeed,
	}, left, right)
	if err != nil {
		return fmt.Errorf("creating pilot: %w", err)
	}
	differential.SetLogger(log)
	log.Info("pilot ready",
		"wheel_diameter", cfg.Robot.Geometry.WheelDiameter,
		"track_width", cfg.Robot.Geometry.TrackWidth,
	)

	// Bind the optional peripherals. A missing panel or battery is
	// normal on a partial fixture tree, so these only warn.
	panel, err := led.NewPanel(cfg.Sysfs.Root)
	if err != nil {
		log.Warn("led panel unavailable", "error", err)
		panel = nil
	}

	supply, err := power.New(cfg.Sysfs.Root, "*")
	if err != nil {
		log.Warn("battery unavailable", "error", err)
		supply = nil
	}

	player := sound.NewPlayer()
	player.BeepPath = cfg.Sound.BeepPath
	player.AplayPath = cfg.Sound.AplayPath
	player.EspeakPath = cfg.Sound.EspeakPath
	player.SetLogger(log)

	// Button scanner over the input event devices
	store := sysfs.NewStore()
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing attribute store", "error", closeErr)
		}
	}()

	sources := make(map[string]button.Source, len(cfg.Buttons.Sources))
	for _, src := range cfg.Buttons.Sources {
		sources[src.Name] = button.Source{Device: src.Device, Code: src.Code}
	}
	scanner := button.NewScanner(button.NewEvdevReader(store), sources)
	scanner.SetLogger(log)
	scanner.SetScanInterval(cfg.GetButtonPollInterval())

	// Start the MQTT bridge (requires a broker connection)
	if mqttClient != nil {
		robotBridge, bridgeErr := bridge.New(bridge.Options{
			RobotID:    cfg.Robot.ID,
			QoS:        byte(cfg.MQTT.QoS),
			MQTTClient: mqttClient,
			Pilot:      differential,
			Sound:      player,
			Leds:       ledPanel(panel),
			History:    history,
			Logger:     log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating bridge: %w", bridgeErr)
		}
		if startErr := robotBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping bridge")
			robotBridge.Stop()
		}()

		scanner.SetOnChange(func(changes []button.Change) {
			for _, change := range changes {
				robotBridge.HandleButtonChange(change.Source, change.Pressed)
			}
		})
	}

	scanner.StartScanning()
	defer func() {
		log.Info("stopping button scanner")
		scanner.StopScanning()
	}()
	log.Info("button scanner started", "sources", len(sources))

	// Start the telemetry sampler. Samples go to InfluxDB for history
	// and are mirrored onto the MQTT telemetry topics for live watchers;
	// either backend alone is enough to run it.
	var writers []telemetry.MetricsWriter
	if influxClient != nil {
		writers = append(writers, influxClient)
	}
	if mqttClient != nil {
		writers = append(writers, bridge.NewTelemetryPublisher(cfg.Robot.ID, mqttClient, log))
	}
	if len(writers) > 0 {
		sensors := bindSensors(cfg, log)
		sampler, samplerErr := telemetry.NewSampler(telemetry.SamplerOptions{
			RobotID: cfg.Robot.ID,
			Power:   powerSource(supply),
			Motors: map[string]telemetry.MotorReader{
				"left":  left,
				"right": right,
			},
			Sensors:  sensors,
			Metrics:  telemetry.MultiWriter(writers...),
			Interval: cfg.GetSampleInterval(),
			Logger:   log,
		})
		if samplerErr != nil {
			return fmt.Errorf("creating sampler: %w", samplerErr)
		}
		if startErr := sampler.Start(ctx); startErr != nil {
			return fmt.Errorf("starting sampler: %w", startErr)
		}
		defer func() {
			log.Info("stopping telemetry sampler")
			sampler.Stop()
		}()
		log.Info("telemetry sampler started", "interval", cfg.GetSampleInterval())
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Green panel means ready for commands
	if panel != nil {
		if ledErr := panel.Green(1); ledErr != nil {
			log.Warn("setting ready led failed", "error", ledErr)
		}
		defer func() {
			if ledErr := panel.AllOff(); ledErr != nil {
				log.Warn("clearing led panel failed", "error", ledErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order: leds, sampler, scanner,
	// bridge, store, InfluxDB, MQTT, database.

	log.Info("brickd stopped")
	return nil
}

// bindSensors binds the configured telemetry sensors. A sensor that
// fails to bind is logged and skipped; telemetry is best effort.
func bindSensors(cfg *config.Config, log *logging.Logger) map[string]telemetry.SensorReader {
	sensors := make(map[string]telemetry.SensorReader, len(cfg.Sensors))
	for _, sc := range cfg.Sensors {
		var s *sensor.Sensor
		var err error
		if sc.Driver == "" {
			s, err = sensor.New(cfg.Sysfs.Root, sc.Port)
		} else {
			s, err = sensor.New(cfg.Sysfs.Root, sc.Port, sc.Driver)
		}
		if err != nil {
			log.Warn("sensor unavailable", "port", sc.Port, "error", err)
			continue
		}
		if sc.Mode != "" {
			if modeErr := s.SetMode(sc.Mode); modeErr != nil {
				log.Warn("setting sensor mode failed", "port", sc.Port, "mode", sc.Mode, "error", modeErr)
				continue
			}
		}
		sensors[sc.Port] = s
		log.Info("sensor bound", "port", sc.Port, "mode", sc.Mode)
	}
	return sensors
}

// newMotor binds a tacho motor, constraining the driver name when one
// is configured.
func newMotor(root, port, driver string) (*motor.Tacho, error) {
	if driver == "" {
		return motor.NewTacho(root, port)
	}
	return motor.NewTacho(root, port, driver)
}

// ledPanel converts a possibly nil panel to the bridge interface. A
// typed nil pointer inside a non-nil interface would defeat the
// bridge's nil check.
func ledPanel(panel *led.Panel) bridge.LedPanel {
	if panel == nil {
		return nil
	}
	return panel
}

// powerSource converts a possibly nil supply to the sampler interface.
// A typed nil pointer inside a non-nil interface would defeat the
// sampler's nil check.
func powerSource(supply *power.Supply) telemetry.PowerSource {
	if supply == nil {
		return nil
	}
	return supply
}

// getConfigPath returns the configuration file path.
// Uses BRICKD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BRICKD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for brickd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Robot    RobotConfig    `yaml:"robot"`
	Sysfs    SysfsConfig    `yaml:"sysfs"`
	Motors   MotorsConfig   `yaml:"motors"`
	Buttons  ButtonsConfig  `yaml:"buttons"`
	Sensors  []SensorConfig `yaml:"sensors"`
	Sound    SoundConfig    `yaml:"sound"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RobotConfig identifies the robot and describes its drive geometry.
type RobotConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Geometry GeometryConfig `yaml:"geometry"`
}

// GeometryConfig contains differential drive geometry in millimetres.
// Wheel diameter and track width drive the pulse conversion maths, so
// both must be measured, not guessed from the kit manual.
type GeometryConfig struct {
	WheelDiameter float64 `yaml:"wheel_diameter"`
	TrackWidth    float64 `yaml:"track_width"`
	TravelSpeed   float64 `yaml:"travel_speed"`
	RotateSpeed   float64 `yaml:"rotate_speed"`
}

// SysfsConfig locates the device tree the daemon talks to.
// Root is "/" on a real brick; tests point it at a fixture directory.
type SysfsConfig struct {
	Root string `yaml:"root"`
}

// MotorsConfig names the output ports for the drive motors.
type MotorsConfig struct {
	LeftPort    string `yaml:"left_port"`
	RightPort   string `yaml:"right_port"`
	LeftDriver  string `yaml:"left_driver"`
	RightDriver string `yaml:"right_driver"`
}

// ButtonsConfig contains button scanner settings.
type ButtonsConfig struct {
	PollInterval int            `yaml:"poll_interval"`
	Sources      []ButtonSource `yaml:"sources"`
}

// ButtonSource maps a named button to an evdev device and key code.
type ButtonSource struct {
	Name   string `yaml:"name"`
	Device string `yaml:"device"`
	Code   uint16 `yaml:"code"`
}

// SensorConfig binds one sensor for telemetry sampling. Driver
// constrains the binding to a specific driver name; Mode is applied
// after binding when non-empty.
type SensorConfig struct {
	Port   string `yaml:"port"`
	Driver string `yaml:"driver"`
	Mode   string `yaml:"mode"`
}

// SoundConfig contains paths to the external audio tools.
type SoundConfig struct {
	BeepPath   string `yaml:"beep_path"`
	AplayPath  string `yaml:"aplay_path"`
	EspeakPath string `yaml:"espeak_path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	Org            string `yaml:"org"`
	Bucket         string `yaml:"bucket"`
	BatchSize      int    `yaml:"batch_size"`
	FlushInterval  int    `yaml:"flush_interval"`
	SampleInterval int    `yaml:"sample_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BRICKD_SECTION_KEY
// For example: BRICKD_DATABASE_PATH, BRICKD_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults for a stock EV3
// with large motors on outB/outC and the standard five-button layout.
func defaultConfig() *Config {
	return &Config{
		Robot: RobotConfig{
			ID:   "brick-001",
			Name: "brickd",
			Geometry: GeometryConfig{
				WheelDiameter: 43.2,
				TrackWidth:    120.0,
				TravelSpeed:   150.0,
				RotateSpeed:   90.0,
			},
		},
		Sysfs: SysfsConfig{
			Root: "/",
		},
		Motors: MotorsConfig{
			LeftPort:    "outB",
			RightPort:   "outC",
			LeftDriver:  "lego-ev3-l-motor",
			RightDriver: "lego-ev3-l-motor",
		},
		Buttons: ButtonsConfig{
			PollInterval: 50,
			Sources:      defaultButtonSources(),
		},
		Sound: SoundConfig{
			BeepPath:   "/usr/bin/beep",
			AplayPath:  "/usr/bin/aplay",
			EspeakPath: "/usr/bin/espeak",
		},
		Database: DatabaseConfig{
			Path:        "./data/brickd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "brickd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			SampleInterval: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// defaultButtonSources returns the EV3 gpio-keys layout.
func defaultButtonSources() []ButtonSource {
	const gpioKeys = "/dev/input/by-path/platform-gpio-keys.0-event"
	return []ButtonSource{
		{Name: "up", Device: gpioKeys, Code: 103},
		{Name: "down", Device: gpioKeys, Code: 108},
		{Name: "left", Device: gpioKeys, Code: 105},
		{Name: "right", Device: gpioKeys, Code: 106},
		{Name: "enter", Device: gpioKeys, Code: 28},
		{Name: "backspace", Device: gpioKeys, Code: 14},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BRICKD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Sysfs
	if v := os.Getenv("BRICKD_SYSFS_ROOT"); v != "" {
		cfg.Sysfs.Root = v
	}

	// Database
	if v := os.Getenv("BRICKD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BRICKD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BRICKD_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BRICKD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BRICKD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BRICKD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BRICKD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Robot validation
	if c.Robot.ID == "" {
		errs = append(errs, "robot.id is required")
	}
	if c.Robot.Geometry.WheelDiameter <= 0 {
		errs = append(errs, "robot.geometry.wheel_diameter must be positive")
	}
	if c.Robot.Geometry.TrackWidth <= 0 {
		errs = append(errs, "robot.geometry.track_width must be positive")
	}

	// Sysfs validation
	if c.Sysfs.Root == "" {
		errs = append(errs, "sysfs.root is required")
	}

	// Motor validation
	if c.Motors.LeftPort == "" || c.Motors.RightPort == "" {
		errs = append(errs, "motors.left_port and motors.right_port are required")
	}
	if c.Motors.LeftPort == c.Motors.RightPort {
		errs = append(errs, "motors.left_port and motors.right_port must differ")
	}

	// Button validation
	if c.Buttons.PollInterval <= 0 {
		errs = append(errs, "buttons.poll_interval must be positive")
	}
	seen := map[string]bool{}
	for _, src := range c.Buttons.Sources {
		if src.Name == "" || src.Device == "" {
			errs = append(errs, "buttons.sources entries require name and device")
			continue
		}
		if seen[src.Name] {
			errs = append(errs, fmt.Sprintf("buttons.sources: duplicate name %q", src.Name))
		}
		seen[src.Name] = true
	}

	// Sensor validation
	seenPorts := map[string]bool{}
	for _, s := range c.Sensors {
		if s.Port == "" {
			errs = append(errs, "sensors entries require port")
			continue
		}
		if seenPorts[s.Port] {
			errs = append(errs, fmt.Sprintf("sensors: duplicate port %q", s.Port))
		}
		seenPorts[s.Port] = true
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set BRICKD_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetButtonPollInterval returns the button scan interval as a Duration.
func (c *Config) GetButtonPollInterval() time.Duration {
	return time.Duration(c.Buttons.PollInterval) * time.Millisecond
}

// GetSampleInterval returns the telemetry sample interval as a Duration.
func (c *Config) GetSampleInterval() time.Duration {
	return time.Duration(c.InfluxDB.SampleInterval) * time.Second
}

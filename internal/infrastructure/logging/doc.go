// Package logging provides structured logging for the daemon.
//
// It wraps log/slog so every record carries the service name and build
// version. JSON output (the default) suits journald and log shippers;
// text output reads better over the brick's serial console during
// development.
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("pilot ready", "wheel_diameter_mm", 56.0)
//	logger.Warn("motor stalled", "side", "left")
//
// Never log secrets: the MQTT password and InfluxDB token must not
// appear in records.
package logging

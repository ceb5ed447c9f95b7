package influxdb

import "errors"

// Sentinel errors for telemetry store operations, checked with errors.Is.
// Write failures do not appear here: the write API batches asynchronously
// and reports them through the SetOnError callback.
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBatteryMetric writes a battery reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - robotID: Robot identifier (e.g., "brick-001")
//   - volts: Battery voltage in volts
//   - amps: Battery current draw in amps
func (c *Client) WriteBatteryMetric(robotID string, volts, amps float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"battery",
		map[string]string{
			"robot_id": robotID,
		},
		map[string]interface{}{
			"volts": volts,
			"amps":  amps,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMotorMetric writes a drive motor reading to InfluxDB.
//
// Parameters:
//   - robotID: Robot identifier
//   - side: Which motor ("left" or "right")
//   - position: Tacho position in pulses
//   - speed: Measured speed in pulses per second
//   - dutyCycle: Current duty cycle percentage
func (c *Client) WriteMotorMetric(robotID, side string, position, speed, dutyCycle int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"motor",
		map[string]string{
			"robot_id": robotID,
			"side":     side,
		},
		map[string]interface{}{
			"position":   position,
			"speed":      speed,
			"duty_cycle": dutyCycle,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSensorMetric writes a single sensor value to InfluxDB.
//
// Parameters:
//   - robotID: Robot identifier
//   - port: Input port the sensor is attached to (e.g., "in1")
//   - mode: Active sensor mode (e.g., "GYRO-ANG")
//   - value: The scaled sensor reading
func (c *Client) WriteSensorMetric(robotID, port, mode string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor",
		map[string]string{
			"robot_id": robotID,
			"port":     port,
			"mode":     mode,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"robot_id": "brick-001"},
//	    map[string]interface{}{"loop_ms": 4.2, "goroutines": 18})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

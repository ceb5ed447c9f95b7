// Package influxdb stores the robot's telemetry as time series.
//
// It wraps influxdb-client-go v2 for the readings the sampler takes each
// tick: battery volts and amps, drive motor position, speed, and duty
// cycle, and configured sensor values. Writes are non-blocking and
// batched per the config.yaml batch_size and flush_interval settings, so
// a slow uplink from the brick never stalls sampling; async write errors
// surface through SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteBatteryMetric("brick-001", 7.89, 0.17)
//
// All methods are safe for concurrent use.
package influxdb

// Package config loads and validates the daemon's YAML configuration.
//
// A single config.yaml describes the robot (drive geometry, motor ports,
// buttons, sensors) and the infrastructure around it (database, MQTT,
// InfluxDB, logging). Configuration loads once at startup; secrets such
// as the MQTT password and the InfluxDB token come from environment
// variables, never the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Robot.ID)
package config

// Package bridge connects the robot to an MQTT broker.
//
// Inbound, it subscribes to the robot's command topics and drives the
// pilot, sound player, and led panel:
//
//	brickd/{robot}/command/pilot/{action}   motion commands
//	brickd/{robot}/command/sound/{action}   playback commands
//	brickd/{robot}/command/led              status light commands
//
// Outbound, it publishes motion lifecycle events, button events, and
// rejections:
//
//	brickd/{robot}/event/motion             started, completed, stalled, cancelled, rejected
//	brickd/{robot}/event/button/{name}      press and release
//
// TelemetryPublisher additionally mirrors sampler readings onto the
// telemetry topics:
//
//	brickd/{robot}/telemetry/battery        volts and amps
//	brickd/{robot}/telemetry/motor/{side}   position, speed, duty cycle
//	brickd/{robot}/telemetry/sensor/{port}  mode and value
//
// # Motion Ownership
//
// The bridge owns the single active motion. A new pilot command
// preempts the running one, which is reported as cancelled before the
// new motion starts. Every motion reaches exactly one terminal state,
// and each terminal state is written to the motion history when a
// recorder is configured.
//
// # Usage
//
//	b, err := bridge.New(bridge.Options{
//	    RobotID:    cfg.Robot.ID,
//	    QoS:        cfg.MQTT.QoS,
//	    MQTTClient: mqttClient,
//	    Pilot:      differential,
//	    Sound:      player,
//	    History:    telemetry.NewHistory(db.DB),
//	    Logger:     log,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
//	defer b.Stop()
package bridge

package bridge

import (
	"encoding/json"
	"time"

	"github.com/openbrick/brickd/internal/infrastructure/mqtt"
)

// TelemetryPublisher mirrors sampler readings onto the robot's telemetry
// topics, so a dashboard subscribed to the broker can watch battery and
// motor state live without querying the time-series store. It implements
// telemetry.MetricsWriter and fans out alongside the InfluxDB writer.
//
// Samples are published at QoS 0, unretained. Telemetry is periodic; a
// dropped reading is replaced by the next one, and queueing stale samples
// behind a flaky link helps nobody.
type TelemetryPublisher struct {
	topics mqtt.Topics
	mqtt   MQTTClient
	logger Logger
}

// NewTelemetryPublisher creates a publisher for the given robot's
// telemetry topics. Logger is optional.
func NewTelemetryPublisher(robotID string, client MQTTClient, logger Logger) *TelemetryPublisher {
	return &TelemetryPublisher{
		topics: mqtt.Topics{Robot: robotID},
		mqtt:   client,
		logger: logger,
	}
}

// batteryReading is the payload on telemetry/battery.
type batteryReading struct {
	Volts     float64 `json:"volts"`
	Amps      float64 `json:"amps"`
	Timestamp string  `json:"timestamp"`
}

// motorReading is the payload on telemetry/motor/{side}.
type motorReading struct {
	Position  int    `json:"position"`
	Speed     int    `json:"speed"`
	DutyCycle int    `json:"duty_cycle"`
	Timestamp string `json:"timestamp"`
}

// sensorReading is the payload on telemetry/sensor/{port}.
type sensorReading struct {
	Mode      string  `json:"mode"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// WriteBatteryMetric publishes a battery reading.
func (p *TelemetryPublisher) WriteBatteryMetric(_ string, volts, amps float64) {
	p.publish(p.topics.TelemetryBattery(), batteryReading{
		Volts:     volts,
		Amps:      amps,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteMotorMetric publishes a drive motor reading.
func (p *TelemetryPublisher) WriteMotorMetric(_ string, side string, position, speed, dutyCycle int) {
	p.publish(p.topics.TelemetryMotor(side), motorReading{
		Position:  position,
		Speed:     speed,
		DutyCycle: dutyCycle,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteSensorMetric publishes a sensor reading.
func (p *TelemetryPublisher) WriteSensorMetric(_ string, port, mode string, value float64) {
	p.publish(p.topics.TelemetrySensor(port), sensorReading{
		Mode:      mode,
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// publish marshals and sends one sample. Failures are logged at debug;
// the sampler must never be slowed or aborted by the broker link.
func (p *TelemetryPublisher) publish(topic string, sample any) {
	data, err := json.Marshal(sample)
	if err != nil {
		return
	}
	if err := p.mqtt.Publish(topic, data, 0, false); err != nil {
		if p.logger != nil {
			p.logger.Debug("publishing telemetry sample", "topic", topic, "error", err)
		}
	}
}

package bridge

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTelemetryPublisher_Battery(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewTelemetryPublisher("brick-001", client, nil)

	pub.WriteBatteryMetric("brick-001", 7.89, 0.17)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}

	msg := client.published[0]
	if msg.topic != "brickd/brick-001/telemetry/battery" {
		t.Errorf("topic = %q, want battery telemetry topic", msg.topic)
	}

	var reading batteryReading
	if err := json.Unmarshal(msg.payload, &reading); err != nil {
		t.Fatalf("unmarshalling battery reading: %v", err)
	}
	if reading.Volts != 7.89 {
		t.Errorf("volts = %v, want 7.89", reading.Volts)
	}
	if reading.Amps != 0.17 {
		t.Errorf("amps = %v, want 0.17", reading.Amps)
	}
	if reading.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}
}

func TestTelemetryPublisher_Motor(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewTelemetryPublisher("brick-001", client, nil)

	pub.WriteMotorMetric("brick-001", "left", 531, 265, 74)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}

	msg := client.published[0]
	if !strings.HasSuffix(msg.topic, "/telemetry/motor/left") {
		t.Errorf("topic = %q, want left motor telemetry topic", msg.topic)
	}

	var reading motorReading
	if err := json.Unmarshal(msg.payload, &reading); err != nil {
		t.Fatalf("unmarshalling motor reading: %v", err)
	}
	if reading.Position != 531 || reading.Speed != 265 || reading.DutyCycle != 74 {
		t.Errorf("reading = %+v, want position 531 speed 265 duty 74", reading)
	}
}

func TestTelemetryPublisher_Sensor(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewTelemetryPublisher("brick-001", client, nil)

	pub.WriteSensorMetric("brick-001", "in2", "GYRO-ANG", 42.5)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}

	msg := client.published[0]
	if !strings.HasSuffix(msg.topic, "/telemetry/sensor/in2") {
		t.Errorf("topic = %q, want in2 sensor telemetry topic", msg.topic)
	}

	var reading sensorReading
	if err := json.Unmarshal(msg.payload, &reading); err != nil {
		t.Fatalf("unmarshalling sensor reading: %v", err)
	}
	if reading.Mode != "GYRO-ANG" {
		t.Errorf("mode = %q, want GYRO-ANG", reading.Mode)
	}
	if reading.Value != 42.5 {
		t.Errorf("value = %v, want 42.5", reading.Value)
	}
}

func TestTelemetryPublisher_PublishFailureIsSwallowed(t *testing.T) {
	client := &fakeMQTT{publishErr: errors.New("broker gone")}
	pub := NewTelemetryPublisher("brick-001", client, nil)

	// Must not panic or block; the next sample simply tries again.
	pub.WriteBatteryMetric("brick-001", 7.5, 0.1)
}

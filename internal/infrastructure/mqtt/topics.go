package mqtt

import "fmt"

// Topic prefixes for the brickd MQTT namespace.
//
// Robot-scoped topics use the scheme: brickd/{robot_id}/{category}/...
// so multiple bricks can share one broker without colliding.
const (
	// TopicPrefix is the base for all brickd topics.
	TopicPrefix = "brickd"

	// TopicPrefixSystem is the base for daemon-level topics shared by
	// every brick (status payloads carry the client ID).
	TopicPrefixSystem = "brickd/system"
)

// Topics provides builders for brickd MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Robot is the robot ID from configuration; it is required for all
// robot-scoped topics but ignored by the system topics.
//
//	topics := mqtt.Topics{Robot: "brick-001"}
//	cmdTopic := topics.PilotCommand("travel")
//	// Returns: "brickd/brick-001/command/pilot/travel"
type Topics struct {
	Robot string
}

// =============================================================================
// Command Topics (inbound)
// =============================================================================

// PilotCommand returns the topic for a specific motion command.
//
// Example: brickd/brick-001/command/pilot/travel
func (t Topics) PilotCommand(action string) string {
	return fmt.Sprintf("%s/%s/command/pilot/%s", TopicPrefix, t.Robot, action)
}

// SoundCommand returns the topic for a specific sound command.
//
// Example: brickd/brick-001/command/sound/speak
func (t Topics) SoundCommand(action string) string {
	return fmt.Sprintf("%s/%s/command/sound/%s", TopicPrefix, t.Robot, action)
}

// LedCommand returns the topic for LED panel commands.
//
// Example: brickd/brick-001/command/led
func (t Topics) LedCommand() string {
	return fmt.Sprintf("%s/%s/command/led", TopicPrefix, t.Robot)
}

// =============================================================================
// Event Topics (outbound)
// =============================================================================

// ButtonEvent returns the topic for a named button's press/release events.
//
// Example: brickd/brick-001/event/button/enter
func (t Topics) ButtonEvent(name string) string {
	return fmt.Sprintf("%s/%s/event/button/%s", TopicPrefix, t.Robot, name)
}

// MotionEvent returns the topic for motion task lifecycle events
// (started, completed, stalled, cancelled).
//
// Example: brickd/brick-001/event/motion
func (t Topics) MotionEvent() string {
	return fmt.Sprintf("%s/%s/event/motion", TopicPrefix, t.Robot)
}

// =============================================================================
// Telemetry Topics (outbound)
// =============================================================================

// TelemetryBattery returns the topic for battery readings.
//
// Example: brickd/brick-001/telemetry/battery
func (t Topics) TelemetryBattery() string {
	return fmt.Sprintf("%s/%s/telemetry/battery", TopicPrefix, t.Robot)
}

// TelemetryMotor returns the topic for a drive motor's readings.
//
// Example: brickd/brick-001/telemetry/motor/left
func (t Topics) TelemetryMotor(side string) string {
	return fmt.Sprintf("%s/%s/telemetry/motor/%s", TopicPrefix, t.Robot, side)
}

// TelemetrySensor returns the topic for a sensor port's readings.
//
// Example: brickd/brick-001/telemetry/sensor/in2
func (t Topics) TelemetrySensor(port string) string {
	return fmt.Sprintf("%s/%s/telemetry/sensor/%s", TopicPrefix, t.Robot, port)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the daemon status topic used for the LWT and
// online/offline announcements.
//
// Example: brickd/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllPilotCommands returns a pattern matching every motion command for
// this robot.
//
// Pattern: brickd/brick-001/command/pilot/+
func (t Topics) AllPilotCommands() string {
	return fmt.Sprintf("%s/%s/command/pilot/+", TopicPrefix, t.Robot)
}

// AllSoundCommands returns a pattern matching every sound command for
// this robot.
//
// Pattern: brickd/brick-001/command/sound/+
func (t Topics) AllSoundCommands() string {
	return fmt.Sprintf("%s/%s/command/sound/+", TopicPrefix, t.Robot)
}

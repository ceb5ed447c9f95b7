package bridge

// Pilot actions accepted on the command topic. The action is the
// trailing topic segment; the payload carries its parameters.
const (
	ActionTravel        = "travel"
	ActionRotate        = "rotate"
	ActionArc           = "arc"
	ActionTravelArc     = "travel_arc"
	ActionDrive         = "drive"
	ActionForward       = "forward"
	ActionBackward      = "backward"
	ActionSteer         = "steer"
	ActionRotateForever = "rotate_forever"
	ActionStop          = "stop"
)

// Sound actions accepted on the command topic.
const (
	SoundBeep  = "beep"
	SoundTone  = "tone"
	SoundSpeak = "speak"
	SoundPlay  = "play"
)

// Motion lifecycle states published on the event topic.
const (
	MotionStarted   = "started"
	MotionCompleted = "completed"
	MotionStalled   = "stalled"
	MotionCancelled = "cancelled"
	MotionRejected  = "rejected"
)

// PilotCommand is the payload of a pilot command message. Which fields
// matter depends on the action; an empty payload is valid for actions
// whose parameters all have defaults.
type PilotCommand struct {
	// ID is an optional caller-chosen correlation token echoed on
	// motion events.
	ID string `json:"id,omitempty"`

	// Distance in mm. Used by travel and travel_arc.
	Distance float64 `json:"distance,omitempty"`

	// Angle in degrees, positive counter-clockwise. Used by rotate
	// and arc.
	Angle float64 `json:"angle,omitempty"`

	// Radius in mm, positive for a left turn. Used by arc and
	// travel_arc.
	Radius float64 `json:"radius,omitempty"`

	// Speed in mm/s (deg/s for rotations). Zero selects the
	// configured default.
	Speed float64 `json:"speed,omitempty"`

	// TurnRate in [-200, 200] for steer. Zero drives straight.
	TurnRate float64 `json:"turn_rate,omitempty"`

	// StopCommand overrides the motor stop behaviour for the stop
	// action: coast, brake, or hold.
	StopCommand string `json:"stop_command,omitempty"`
}

// SoundCommand is the payload of a sound command message.
type SoundCommand struct {
	// Text to speak. Required by speak.
	Text string `json:"text,omitempty"`

	// Frequency in Hz. Required by tone.
	Frequency float64 `json:"frequency,omitempty"`

	// DurationMS is the tone length in milliseconds. Required by tone.
	DurationMS int `json:"duration_ms,omitempty"`

	// File is an absolute WAV path on the brick. Required by play.
	File string `json:"file,omitempty"`
}

// LedCommand is the payload of a led command message.
type LedCommand struct {
	// Color is one of red, green, amber, orange, yellow, or off.
	Color string `json:"color"`

	// Brightness is a fraction in [0, 1]. Zero means full brightness
	// unless the color is off.
	Brightness float64 `json:"brightness,omitempty"`
}

// MotionEvent announces a motion lifecycle transition.
type MotionEvent struct {
	// ID echoes the command's correlation token, if any.
	ID string `json:"id,omitempty"`

	// Kind is the pilot action that produced the motion.
	Kind string `json:"kind"`

	// State is the lifecycle state reached.
	State string `json:"state"`

	// Error carries the rejection reason when State is rejected.
	Error string `json:"error,omitempty"`

	// Timestamp is RFC 3339 UTC.
	Timestamp string `json:"timestamp"`
}

// ButtonEvent announces a button press or release.
type ButtonEvent struct {
	Name      string `json:"name"`
	Pressed   bool   `json:"pressed"`
	Timestamp string `json:"timestamp"`
}

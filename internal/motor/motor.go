package motor

import (
	"errors"

	"github.com/openbrick/brickd/internal/device"
)

// Device class names and instance name patterns.
const (
	ClassTacho = "tacho-motor"
	ClassDC    = "dc-motor"
	ClassServo = "servo-motor"

	namePattern = "motor*"
)

// Run commands accepted by the command attribute. Not every class
// supports every command; the commands attribute lists what a bound
// instance accepts.
const (
	CommandRunForever  = "run-forever"
	CommandRunTimed    = "run-timed"
	CommandRunDirect   = "run-direct"
	CommandRunToAbsPos = "run-to-abs-pos"
	CommandRunToRelPos = "run-to-rel-pos"
	CommandStop        = "stop"
	CommandReset       = "reset"
)

// Values for the polarity and encoder_polarity attributes.
const (
	PolarityNormal   = "normal"
	PolarityInversed = "inversed"
)

// Values for the stop_command attribute.
const (
	StopCommandCoast = "coast"
	StopCommandBrake = "brake"
	StopCommandHold  = "hold"
)

// Values for the speed_regulation attribute.
const (
	SpeedRegulationOn  = "on"
	SpeedRegulationOff = "off"
)

// EV3 tacho motor driver names.
const (
	DriverLargeMotor  = "lego-ev3-l-motor"
	DriverMediumMotor = "lego-ev3-m-motor"
)

// ErrNotFound is returned by the constructors when no instance of the
// class matches the requested port and driver.
var ErrNotFound = errors.New("motor: no matching motor")

func criteria(port string, drivers []string) device.Criteria {
	c := device.Criteria{}
	if port != "" {
		c["port_name"] = []string{port}
	}
	if len(drivers) > 0 {
		c["driver_name"] = drivers
	}
	return c
}

func bind(root, class, port string, drivers []string) (*device.Device, error) {
	dev, err := device.Bind(root, class, namePattern, criteria(port, drivers))
	if err != nil {
		return nil, err
	}
	if !dev.Connected() {
		return nil, ErrNotFound
	}
	return dev, nil
}

// base carries the attributes every motor class exposes.
type base struct {
	dev *device.Device
}

// Device exposes the underlying binding, for callers that need the
// instance path or index.
func (b base) Device() *device.Device { return b.dev }

// Commands reports the run commands the bound instance supports.
func (b base) Commands() ([]string, error) { return b.dev.GetSet("commands") }

// Command writes a run command to the command sink.
func (b base) Command(cmd string) error { return b.dev.SetString("command", cmd) }

func (b base) Polarity() (string, error)  { return b.dev.GetString("polarity") }
func (b base) SetPolarity(v string) error { return b.dev.SetString("polarity", v) }

// State reports the state flags currently asserted by the driver, e.g.
// "running", "ramping", "holding", "stalled".
func (b base) State() ([]string, error) { return b.dev.GetSet("state") }

// dutyCycler covers the duty-cycle drive capability shared by tacho and
// DC motors.
type dutyCycler struct {
	dev *device.Device
}

func (d dutyCycler) DutyCycle() (int, error)         { return d.dev.GetInt("duty_cycle") }
func (d dutyCycler) DutyCycleSetpoint() (int, error) { return d.dev.GetInt("duty_cycle_sp") }
func (d dutyCycler) SetDutyCycleSetpoint(v int) error {
	return d.dev.SetInt("duty_cycle_sp", v)
}

// RampUp and RampDown are the ramp durations in milliseconds applied
// when the duty cycle changes.
func (d dutyCycler) RampUp() (int, error)      { return d.dev.GetInt("ramp_up_sp") }
func (d dutyCycler) SetRampUp(ms int) error    { return d.dev.SetInt("ramp_up_sp", ms) }
func (d dutyCycler) RampDown() (int, error)    { return d.dev.GetInt("ramp_down_sp") }
func (d dutyCycler) SetRampDown(ms int) error  { return d.dev.SetInt("ramp_down_sp", ms) }
func (d dutyCycler) TimeSetpoint() (int, error) { return d.dev.GetInt("time_sp") }
func (d dutyCycler) SetTimeSetpoint(ms int) error {
	return d.dev.SetInt("time_sp", ms)
}

// StopCommand is the behaviour applied when a run command completes or
// the stop command is issued.
func (d dutyCycler) StopCommand() (string, error)   { return d.dev.GetString("stop_command") }
func (d dutyCycler) SetStopCommand(v string) error  { return d.dev.SetString("stop_command", v) }
func (d dutyCycler) StopCommands() ([]string, error) { return d.dev.GetSet("stop_commands") }

// positioner covers the position setpoint capability shared by tacho
// and servo motors. For tacho motors the unit is encoder pulses, for
// servos it is percent of the pulse range.
type positioner struct {
	dev *device.Device
}

func (p positioner) PositionSetpoint() (int, error) { return p.dev.GetInt("position_sp") }
func (p positioner) SetPositionSetpoint(v int) error {
	return p.dev.SetInt("position_sp", v)
}

// Tacho is a regulated motor with positional and directional encoder
// feedback, such as the EV3 large and medium motors.
type Tacho struct {
	base
	dutyCycler
	positioner
}

// NewTacho binds the first tacho motor matching port (empty for any)
// and, when given, one of the driver names.
func NewTacho(root, port string, drivers ...string) (*Tacho, error) {
	dev, err := bind(root, ClassTacho, port, drivers)
	if err != nil {
		return nil, err
	}
	return newTacho(dev), nil
}

func newTacho(dev *device.Device) *Tacho {
	return &Tacho{base{dev}, dutyCycler{dev}, positioner{dev}}
}

// NewLargeMotor binds an EV3 large motor on the given port.
func NewLargeMotor(root, port string) (*Tacho, error) {
	return NewTacho(root, port, DriverLargeMotor)
}

// NewMediumMotor binds an EV3 medium motor on the given port.
func NewMediumMotor(root, port string) (*Tacho, error) {
	return NewTacho(root, port, DriverMediumMotor)
}

// Device resolves the embedding ambiguity in favour of the shared base.
func (t *Tacho) Device() *device.Device { return t.base.dev }

// CountPerRot is the number of encoder counts in one rotation of the
// motor, used to convert rotations or degrees to pulses.
func (t *Tacho) CountPerRot() (int, error) { return t.base.dev.GetInt("count_per_rot") }

func (t *Tacho) EncoderPolarity() (string, error) {
	return t.base.dev.GetString("encoder_polarity")
}

func (t *Tacho) SetEncoderPolarity(v string) error {
	return t.base.dev.SetString("encoder_polarity", v)
}

// Position is the current encoder position in pulses. Writing sets the
// counter to that value.
func (t *Tacho) Position() (int, error)     { return t.base.dev.GetInt("position") }
func (t *Tacho) SetPosition(v int) error    { return t.base.dev.SetInt("position", v) }

// Speed is the measured speed in pulses per second.
func (t *Tacho) Speed() (int, error)         { return t.base.dev.GetInt("speed") }
func (t *Tacho) SpeedSetpoint() (int, error) { return t.base.dev.GetInt("speed_sp") }
func (t *Tacho) SetSpeedSetpoint(v int) error {
	return t.base.dev.SetInt("speed_sp", v)
}

func (t *Tacho) SpeedRegulation() (string, error) {
	return t.base.dev.GetString("speed_regulation")
}

// SetSpeedRegulation switches the controller between regulating to
// speed_sp (on) and driving at duty_cycle_sp (off).
func (t *Tacho) SetSpeedRegulation(v string) error {
	return t.base.dev.SetString("speed_regulation", v)
}

// RunForever runs the motor until another command is sent.
func (t *Tacho) RunForever() error { return t.Command(CommandRunForever) }

// RunTimed runs for ms milliseconds, then stops per stop_command.
func (t *Tacho) RunTimed(ms int) error {
	if err := t.SetTimeSetpoint(ms); err != nil {
		return err
	}
	return t.Command(CommandRunTimed)
}

// RunDirect drives at the given duty cycle; unlike the other run
// commands, later duty_cycle_sp changes take effect immediately.
func (t *Tacho) RunDirect(dutyCycle int) error {
	if err := t.SetDutyCycleSetpoint(dutyCycle); err != nil {
		return err
	}
	return t.Command(CommandRunDirect)
}

// RunToAbsPos runs to an absolute encoder position.
func (t *Tacho) RunToAbsPos(position int) error {
	if err := t.SetPositionSetpoint(position); err != nil {
		return err
	}
	return t.Command(CommandRunToAbsPos)
}

// RunToRelPos runs to current position plus the given pulse delta.
func (t *Tacho) RunToRelPos(position int) error {
	if err := t.SetPositionSetpoint(position); err != nil {
		return err
	}
	return t.Command(CommandRunToRelPos)
}

// Stop interrupts any run command. A non-empty stopCommand overrides
// the configured stop behaviour first.
func (t *Tacho) Stop(stopCommand string) error {
	if stopCommand != "" {
		if err := t.SetStopCommand(stopCommand); err != nil {
			return err
		}
	}
	return t.Command(CommandStop)
}

// Reset restores all motor parameters to their defaults and stops the
// motor.
func (t *Tacho) Reset() error { return t.Command(CommandReset) }

// DC is an unregulated motor driven by duty cycle alone.
type DC struct {
	base
	dutyCycler
}

// NewDC binds the first DC motor matching port (empty for any).
func NewDC(root, port string) (*DC, error) {
	dev, err := bind(root, ClassDC, port, nil)
	if err != nil {
		return nil, err
	}
	return &DC{base{dev}, dutyCycler{dev}}, nil
}

func (m *DC) Device() *device.Device { return m.base.dev }

func (m *DC) RunForever() error { return m.Command(CommandRunForever) }

func (m *DC) RunTimed(ms int) error {
	if err := m.SetTimeSetpoint(ms); err != nil {
		return err
	}
	return m.Command(CommandRunTimed)
}

func (m *DC) RunDirect(dutyCycle int) error {
	if err := m.SetDutyCycleSetpoint(dutyCycle); err != nil {
		return err
	}
	return m.Command(CommandRunDirect)
}

func (m *DC) Stop(stopCommand string) error {
	if stopCommand != "" {
		if err := m.SetStopCommand(stopCommand); err != nil {
			return err
		}
	}
	return m.Command(CommandStop)
}

// Servo is a hobby type servo motor. Its position setpoint is a
// percentage of the pulse range: -100 maps to min_pulse_sp, 0 to
// mid_pulse_sp and 100 to max_pulse_sp.
type Servo struct {
	base
	positioner
}

// Servo specific commands.
const (
	servoCommandRun   = "run"
	servoCommandFloat = "float"
)

// NewServo binds the first servo motor matching port (empty for any).
func NewServo(root, port string) (*Servo, error) {
	dev, err := bind(root, ClassServo, port, nil)
	if err != nil {
		return nil, err
	}
	return &Servo{base{dev}, positioner{dev}}, nil
}

func (s *Servo) Device() *device.Device { return s.base.dev }

func (s *Servo) MinPulseSetpoint() (int, error)  { return s.base.dev.GetInt("min_pulse_sp") }
func (s *Servo) SetMinPulseSetpoint(v int) error { return s.base.dev.SetInt("min_pulse_sp", v) }
func (s *Servo) MidPulseSetpoint() (int, error)  { return s.base.dev.GetInt("mid_pulse_sp") }
func (s *Servo) SetMidPulseSetpoint(v int) error { return s.base.dev.SetInt("mid_pulse_sp", v) }
func (s *Servo) MaxPulseSetpoint() (int, error)  { return s.base.dev.GetInt("max_pulse_sp") }
func (s *Servo) SetMaxPulseSetpoint(v int) error { return s.base.dev.SetInt("max_pulse_sp", v) }

// RateSetpoint is the travel time in milliseconds for half of the full
// range. Controllers without rate support fail these with Unsupported.
func (s *Servo) RateSetpoint() (int, error)  { return s.base.dev.GetInt("rate_sp") }
func (s *Servo) SetRateSetpoint(v int) error { return s.base.dev.SetInt("rate_sp", v) }

// Run drives the servo to the configured position setpoint.
func (s *Servo) Run() error { return s.Command(servoCommandRun) }

// Float removes power from the motor.
func (s *Servo) Float() error { return s.Command(servoCommandFloat) }

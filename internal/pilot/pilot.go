package pilot

import (
	"fmt"
	"math"

	"github.com/openbrick/brickd/internal/motor"
)

// Motor is the slice of the regulated motor surface the pilot drives.
// *motor.Tacho satisfies it.
type Motor interface {
	CountPerRot() (int, error)
	Reset() error
	SetStopCommand(value string) error
	SetRampUp(ms int) error
	SetRampDown(ms int) error
	SetDutyCycleSetpoint(value int) error
	SetSpeedRegulation(value string) error
	SetSpeedSetpoint(pulsesPerSec int) error
	SetPositionSetpoint(pulses int) error
	Command(cmd string) error
	Stop(stopCommand string) error
	State() ([]string, error)
	Position() (int, error)
}

// Logger is the minimal logging surface the pilot needs for poll
// failures. The zero pilot logs nowhere.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Settings are the motor parameters applied to both motors at
// construction time.
type Settings struct {
	DutyCycleSetpoint int
	SpeedRegulation   string
	StopCommand       string
	RampUp            int
	RampDown          int
}

// DefaultSettings enables speed regulation, holds position on stop and
// ramps over half a second.
func DefaultSettings() Settings {
	return Settings{
		DutyCycleSetpoint: 100,
		SpeedRegulation:   motor.SpeedRegulationOn,
		StopCommand:       motor.StopCommandHold,
		RampUp:            500,
		RampDown:          500,
	}
}

// Config carries the drive geometry and default speeds. Dimension
// units are free (mm, cm) as long as wheel diameter, track width and
// linear speeds use the same one.
type Config struct {
	// WheelDiameter is the driven wheel diameter.
	WheelDiameter float64
	// TrackWidth is the distance between the wheel contact points.
	TrackWidth float64
	// TravelSpeed is the default linear speed in length units per
	// second. The sign is discarded.
	TravelSpeed float64
	// RotateSpeed is the default rotation speed in degrees per
	// second. The sign is discarded.
	RotateSpeed float64
	// Settings overrides the motor setup applied at construction.
	Settings *Settings
}

// Differential drives two independently controlled motors so the robot
// can steer differentially and rotate within its own footprint.
type Differential struct {
	left, right Motor
	motors      [2]Motor

	trackWidth       float64
	distPerPulse     float64
	rotationPerPulse float64

	travelSpeed float64
	rotateSpeed float64

	log Logger
}

// NewDifferential binds a pilot to its two motors, resets them and
// applies the configured motor settings.
func NewDifferential(cfg Config, left, right Motor) (*Differential, error) {
	if left == nil || right == nil {
		return nil, ErrMissingMotor
	}
	if cfg.WheelDiameter <= 0 || cfg.TrackWidth <= 0 {
		return nil, ErrBadGeometry
	}

	countPerRot, err := left.CountPerRot()
	if err != nil {
		return nil, fmt.Errorf("reading count_per_rot: %w", err)
	}
	if countPerRot <= 0 {
		return nil, fmt.Errorf("%w: count_per_rot %d", ErrBadGeometry, countPerRot)
	}

	distPerPulse := cfg.WheelDiameter * math.Pi / float64(countPerRot)
	p := &Differential{
		left:             left,
		right:            right,
		motors:           [2]Motor{left, right},
		trackWidth:       cfg.TrackWidth,
		distPerPulse:     distPerPulse,
		rotationPerPulse: degrees(distPerPulse / cfg.TrackWidth * 2),
		travelSpeed:      math.Abs(cfg.TravelSpeed),
		rotateSpeed:      math.Abs(cfg.RotateSpeed),
		log:              noopLogger{},
	}

	settings := DefaultSettings()
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}
	for _, m := range p.motors {
		if err := m.Reset(); err != nil {
			return nil, fmt.Errorf("resetting motor: %w", err)
		}
		if err := applySettings(m, settings); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func applySettings(m Motor, s Settings) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"duty_cycle_sp", func() error { return m.SetDutyCycleSetpoint(s.DutyCycleSetpoint) }},
		{"speed_regulation", func() error { return m.SetSpeedRegulation(s.SpeedRegulation) }},
		{"stop_command", func() error { return m.SetStopCommand(s.StopCommand) }},
		{"ramp_up_sp", func() error { return m.SetRampUp(s.RampUp) }},
		{"ramp_down_sp", func() error { return m.SetRampDown(s.RampDown) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("configuring %s: %w", step.name, err)
		}
	}
	return nil
}

// SetLogger routes poll failure warnings from monitors started by this
// pilot.
func (p *Differential) SetLogger(log Logger) {
	if log != nil {
		p.log = log
	}
}

// DistancePerPulse reports the travel distance of one encoder pulse.
func (p *Differential) DistancePerPulse() float64 { return p.distPerPulse }

// RotationPerPulse reports the heading change, in degrees, of one
// encoder pulse applied differentially.
func (p *Differential) RotationPerPulse() float64 { return p.rotationPerPulse }

// TravelSpeed reports the default linear speed.
func (p *Differential) TravelSpeed() float64 { return p.travelSpeed }

// SetTravelSpeed sets the default linear speed; the sign is discarded.
func (p *Differential) SetTravelSpeed(speed float64) { p.travelSpeed = math.Abs(speed) }

// RotateSpeed reports the default rotation speed in degrees per second.
func (p *Differential) RotateSpeed() float64 { return p.rotateSpeed }

// SetRotateSpeed sets the default rotation speed; the sign is
// discarded.
func (p *Differential) SetRotateSpeed(speed float64) { p.rotateSpeed = math.Abs(speed) }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func roundToInt(v float64) int { return int(math.Round(v)) }

// pulsesPerSecLinear converts a linear speed to encoder pulses per
// second.
func (p *Differential) pulsesPerSecLinear(speed float64) int {
	return roundToInt(speed / p.distPerPulse)
}

// pulsesPerSecAngular converts a rotation speed in degrees per second
// to encoder pulses per second.
func (p *Differential) pulsesPerSecAngular(speed float64) int {
	return roundToInt(speed / p.rotationPerPulse)
}

func (p *Differential) orDefaultTravel(speed float64) float64 {
	if speed == 0 {
		return p.travelSpeed
	}
	return speed
}

func (p *Differential) orDefaultRotate(speed float64) float64 {
	if speed == 0 {
		return p.rotateSpeed
	}
	return speed
}

// syncStart issues the run command to every motor. Callers must have
// committed all setpoints beforehand so no motor starts ahead of its
// sibling.
func (p *Differential) syncStart(cmd string) error {
	for _, m := range p.motors {
		if err := m.Command(cmd); err != nil {
			return fmt.Errorf("issuing %s: %w", cmd, err)
		}
	}
	return nil
}

// setSpeeds commits speed regulation and the given per-motor speed
// setpoints, left first.
func (p *Differential) setSpeeds(leftPPS, rightPPS int) error {
	pps := [2]int{leftPPS, rightPPS}
	for i, m := range p.motors {
		if err := m.SetSpeedRegulation(motor.SpeedRegulationOn); err != nil {
			return fmt.Errorf("enabling speed regulation: %w", err)
		}
		if err := m.SetSpeedSetpoint(pps[i]); err != nil {
			return fmt.Errorf("setting speed_sp: %w", err)
		}
	}
	return nil
}

// Drive runs straight continuously. A positive speed moves forward, a
// negative one backwards, zero selects the default travel speed.
func (p *Differential) Drive(speed float64) error {
	pps := p.pulsesPerSecLinear(p.orDefaultTravel(speed))
	if err := p.setSpeeds(pps, pps); err != nil {
		return err
	}
	return p.syncStart(motor.CommandRunForever)
}

// Forward runs straight ahead regardless of the speed sign.
func (p *Differential) Forward(speed float64) error {
	return p.Drive(math.Abs(p.orDefaultTravel(speed)))
}

// Backward runs straight back regardless of the speed sign.
func (p *Differential) Backward(speed float64) error {
	return p.Drive(-math.Abs(p.orDefaultTravel(speed)))
}

// Stop halts both motors immediately. A non-empty stopCommand
// overrides the configured stop behaviour.
func (p *Differential) Stop(stopCommand string) error {
	for _, m := range p.motors {
		if err := m.Stop(stopCommand); err != nil {
			return err
		}
	}
	return nil
}

// Travel moves the given distance in a straight line and returns a
// monitor tracking the motion. A zero pulse target issues no command
// and returns an already settled monitor.
func (p *Differential) Travel(distance, speed float64, cb *Callbacks) (Monitor, error) {
	pulses := roundToInt(distance / p.distPerPulse)
	if pulses == 0 {
		return NullMonitor{}, nil
	}

	for _, m := range p.motors {
		if err := m.SetPositionSetpoint(pulses); err != nil {
			return nil, fmt.Errorf("setting position_sp: %w", err)
		}
	}
	pps := p.pulsesPerSecLinear(p.orDefaultTravel(speed))
	if err := p.setSpeeds(pps, pps); err != nil {
		return nil, err
	}
	if err := p.syncStart(motor.CommandRunToRelPos); err != nil {
		return nil, err
	}
	return p.startMonitor(cb), nil
}

// Rotate turns in place by the given number of degrees, positive
// counter-clockwise. The speed is in degrees per second; its sign is
// discarded, zero selects the default rotate speed.
func (p *Differential) Rotate(angle, speed float64, cb *Callbacks) (Monitor, error) {
	pulses := roundToInt(angle / p.rotationPerPulse)
	if pulses == 0 {
		return NullMonitor{}, nil
	}

	if err := p.left.SetPositionSetpoint(-pulses); err != nil {
		return nil, fmt.Errorf("setting position_sp: %w", err)
	}
	if err := p.right.SetPositionSetpoint(pulses); err != nil {
		return nil, fmt.Errorf("setting position_sp: %w", err)
	}
	pps := p.pulsesPerSecAngular(p.orDefaultRotate(speed))
	if err := p.setSpeeds(pps, pps); err != nil {
		return nil, err
	}
	if err := p.syncStart(motor.CommandRunToRelPos); err != nil {
		return nil, err
	}
	return p.startMonitor(cb), nil
}

// RotateLeft rotates counter-clockwise by the magnitude of angle.
func (p *Differential) RotateLeft(angle, speed float64, cb *Callbacks) (Monitor, error) {
	return p.Rotate(math.Abs(angle), speed, cb)
}

// RotateRight rotates clockwise by the magnitude of angle.
func (p *Differential) RotateRight(angle, speed float64, cb *Callbacks) (Monitor, error) {
	return p.Rotate(-math.Abs(angle), speed, cb)
}

// RotateForever spins in place until stopped. Positive speed turns
// counter-clockwise, units are degrees per second.
func (p *Differential) RotateForever(speed float64) error {
	pps := p.pulsesPerSecAngular(speed)
	if err := p.setSpeeds(-pps, pps); err != nil {
		return err
	}
	return p.syncStart(motor.CommandRunForever)
}

// Arc moves along an arc of the given radius until the heading has
// changed by angle degrees. A positive radius puts the turn centre on
// the left, zero degenerates to Rotate. The sign of angle sets the
// spin direction; combined with the radius sign it determines forward
// or backward traversal. The speed sign is discarded.
func (p *Differential) Arc(radius, angle, speed float64, cb *Callbacks) (Monitor, error) {
	if radius == 0 {
		return p.Rotate(angle, 0, cb)
	}

	speed = math.Abs(p.orDefaultTravel(speed))
	halfTrack := p.trackWidth / 2
	bias := halfTrack / radius
	rad := radians(angle)

	sides := [2]float64{-1, 1} // left, right
	anyPulses := false
	var pps [2]int
	for i, m := range p.motors {
		wheelSpeed := speed * (1 + sides[i]*bias)
		distance := (radius + sides[i]*halfTrack) * rad
		pulses := roundToInt(distance / p.distPerPulse)
		if pulses != 0 {
			anyPulses = true
		}
		if err := m.SetPositionSetpoint(pulses); err != nil {
			return nil, fmt.Errorf("setting position_sp: %w", err)
		}
		pps[i] = p.pulsesPerSecLinear(wheelSpeed)
	}
	if !anyPulses {
		return NullMonitor{}, nil
	}
	if err := p.setSpeeds(pps[0], pps[1]); err != nil {
		return nil, err
	}
	if err := p.syncStart(motor.CommandRunToRelPos); err != nil {
		return nil, err
	}
	return p.startMonitor(cb), nil
}

// TravelArc is Arc parameterized by the distance along the arc instead
// of the heading change.
func (p *Differential) TravelArc(radius, distance, speed float64, cb *Callbacks) (Monitor, error) {
	if radius == 0 {
		return nil, ErrZeroRadius
	}
	return p.Arc(radius, degrees(distance/radius), speed, cb)
}

// Steer runs continuously along a curved path. turnRate is clamped to
// [-200, 200]; 0 drives straight, positive turns left, the extremes
// spin in place. In between, the inner wheel runs at
// (100-|turnRate|)/100 of the outer wheel's speed.
func (p *Differential) Steer(turnRate, speed float64) error {
	if turnRate == 0 {
		return p.Drive(speed)
	}
	turnRate = math.Min(math.Max(turnRate, -200), 200)
	if math.Abs(turnRate) == 200 {
		return p.RotateForever(speed)
	}

	speed = p.orDefaultTravel(speed)
	ratio := (100 - math.Abs(turnRate)) / 100
	var leftSpeed, rightSpeed float64
	if turnRate > 0 {
		// Left turn, the right wheel is outside and runs at full speed.
		leftSpeed, rightSpeed = speed*ratio, speed
	} else {
		leftSpeed, rightSpeed = speed, speed*ratio
	}
	if err := p.setSpeeds(p.pulsesPerSecLinear(leftSpeed), p.pulsesPerSecLinear(rightSpeed)); err != nil {
		return err
	}
	return p.syncStart(motor.CommandRunForever)
}

func (p *Differential) startMonitor(cb *Callbacks) *motionMonitor {
	m := newMonitor(p.motors[:], cb, p.log)
	m.start()
	return m
}

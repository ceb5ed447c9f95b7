package sensor

import (
	"errors"
	"fmt"
	"math"

	"github.com/openbrick/brickd/internal/device"
)

// Class is the sysfs class shared by all plugged sensors.
const Class = "lego-sensor"

const namePattern = "sensor*"

// ErrNotFound is returned by the constructors when no instance matches
// the requested port and drivers.
var ErrNotFound = errors.New("sensor: no matching sensor")

// Driver names of the supported sensors.
const (
	DriverColor      = "lego-ev3-color"
	DriverUltrasonic = "lego-ev3-us"
	DriverNXTUltra   = "lego-nxt-us"
	DriverGyro       = "lego-ev3-gyro"
	DriverInfrared   = "lego-ev3-ir"
	DriverTouch      = "lego-ev3-touch"
	DriverNXTTouch   = "lego-nxt-touch"
	DriverNXTSound   = "lego-nxt-sound"
	DriverNXTLight   = "lego-nxt-light"
)

// binDataWidths maps a bin_data_format token to the byte width of one
// value. Unknown formats fall back to one byte.
var binDataWidths = map[string]int{
	"u8":     1,
	"s8":     1,
	"u16":    2,
	"s16":    2,
	"s16_be": 2,
	"s32":    4,
	"float":  4,
}

// Sensor is one bound instance of the lego-sensor class.
type Sensor struct {
	dev *device.Device

	// binDataSize is computed from bin_data_format and num_values on
	// the first raw read and reused afterwards. Mode switches that
	// change the format require a fresh binding.
	binDataSize int
}

// New binds the first sensor matching port (empty for any) and, when
// given, one of the driver names.
func New(root, port string, drivers ...string) (*Sensor, error) {
	criteria := device.Criteria{}
	if port != "" {
		criteria["port_name"] = []string{port}
	}
	if len(drivers) > 0 {
		criteria["driver_name"] = drivers
	}
	dev, err := device.Bind(root, Class, namePattern, criteria)
	if err != nil {
		return nil, err
	}
	if !dev.Connected() {
		return nil, ErrNotFound
	}
	return &Sensor{dev: dev}, nil
}

// Device exposes the underlying binding.
func (s *Sensor) Device() *device.Device { return s.dev }

// Mode reports the currently active mode.
func (s *Sensor) Mode() (string, error) { return s.dev.GetString("mode") }

// SetMode activates one of the modes listed by Modes.
func (s *Sensor) SetMode(mode string) error { return s.dev.SetString("mode", mode) }

// Modes lists the valid modes for this sensor.
func (s *Sensor) Modes() ([]string, error) { return s.dev.GetSet("modes") }

// Units reports the measurement units of the current mode.
func (s *Sensor) Units() (string, error) { return s.dev.GetString("units") }

// Decimals reports the decimal places of the numbered values in the
// current mode.
func (s *Sensor) Decimals() (int, error) { return s.dev.GetInt("decimals") }

// NumValues reports how many numbered value attributes the current
// mode populates.
func (s *Sensor) NumValues() (int, error) { return s.dev.GetInt("num_values") }

// Value reads the nth raw value of the current mode.
func (s *Sensor) Value(n int) (int, error) {
	return s.dev.GetInt(fmt.Sprintf("value%d", n))
}

// ScaledValue reads the nth value adjusted by the mode's decimal
// places.
func (s *Sensor) ScaledValue(n int) (float64, error) {
	raw, err := s.Value(n)
	if err != nil {
		return 0, err
	}
	decimals, err := s.Decimals()
	if err != nil {
		return 0, err
	}
	return float64(raw) / math.Pow10(decimals), nil
}

// BinDataFormat reports the wire format of the bin_data block in the
// current mode.
func (s *Sensor) BinDataFormat() (string, error) {
	return s.dev.GetString("bin_data_format")
}

// BinData reads the unscaled raw values as one fixed size byte block.
// The block size is resolved once from the format descriptor and
// cached.
func (s *Sensor) BinData() ([]byte, error) {
	if s.binDataSize == 0 {
		format, err := s.BinDataFormat()
		if err != nil {
			return nil, err
		}
		count, err := s.NumValues()
		if err != nil {
			return nil, err
		}
		width, ok := binDataWidths[format]
		if !ok {
			width = 1
		}
		s.binDataSize = width * count
	}
	return s.dev.ReadBinary("bin_data", s.binDataSize)
}

// Color is the EV3 color sensor.
type Color struct{ *Sensor }

// Color codes reported in COL-COLOR mode.
const (
	ColorNone = iota
	ColorBlack
	ColorBlue
	ColorGreen
	ColorYellow
	ColorRed
	ColorWhite
	ColorBrown
)

// Color sensor modes.
const (
	ModeColAmbient = "COL-AMBIENT"
	ModeColColor   = "COL-COLOR"
	ModeColReflect = "COL-REFLECT"
	ModeRefRaw     = "REF-RAW"
	ModeRGBRaw     = "RGB-RAW"
)

func NewColor(root, port string) (*Color, error) {
	s, err := New(root, port, DriverColor)
	if err != nil {
		return nil, err
	}
	return &Color{s}, nil
}

// Ultrasonic is the EV3 or NXT ultrasonic distance sensor.
type Ultrasonic struct{ *Sensor }

// Ultrasonic sensor modes.
const (
	ModeUSDistCM = "US-DIST-CM"
	ModeUSDistIN = "US-DIST-IN"
	ModeUSListen = "US-LISTEN"
	ModeUSSiCM   = "US-SI-CM"
	ModeUSSiIN   = "US-SI-IN"
)

func NewUltrasonic(root, port string) (*Ultrasonic, error) {
	s, err := New(root, port, DriverUltrasonic, DriverNXTUltra)
	if err != nil {
		return nil, err
	}
	return &Ultrasonic{s}, nil
}

// DistanceCM reads the distance in centimeters, honouring the mode's
// decimal scaling.
func (u *Ultrasonic) DistanceCM() (float64, error) {
	return u.ScaledValue(0)
}

// Gyro is the EV3 gyro sensor.
type Gyro struct{ *Sensor }

// Gyro sensor modes.
const (
	ModeGyroAngle = "GYRO-ANG"
	ModeGyroRate  = "GYRO-RATE"
	ModeGyroRaw   = "GYRO-FAS"
	ModeGyroBoth  = "GYRO-G&A"
)

func NewGyro(root, port string) (*Gyro, error) {
	s, err := New(root, port, DriverGyro)
	if err != nil {
		return nil, err
	}
	return &Gyro{s}, nil
}

// Angle reads the accumulated heading in degrees.
func (g *Gyro) Angle() (int, error) { return g.Value(0) }

// Infrared is the EV3 infrared sensor.
type Infrared struct{ *Sensor }

// Infrared sensor modes.
const (
	ModeIRProx   = "IR-PROX"
	ModeIRSeek   = "IR-SEEK"
	ModeIRRemote = "IR-REMOTE"
)

func NewInfrared(root, port string) (*Infrared, error) {
	s, err := New(root, port, DriverInfrared)
	if err != nil {
		return nil, err
	}
	return &Infrared{s}, nil
}

// Proximity reads the proximity estimate, 0 (closest) to 100.
func (i *Infrared) Proximity() (int, error) { return i.Value(0) }

// Touch is the EV3 or NXT touch sensor.
type Touch struct{ *Sensor }

func NewTouch(root, port string) (*Touch, error) {
	s, err := New(root, port, DriverTouch, DriverNXTTouch)
	if err != nil {
		return nil, err
	}
	return &Touch{s}, nil
}

// Pressed reports whether the button is currently pushed in.
func (t *Touch) Pressed() (bool, error) {
	v, err := t.Value(0)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

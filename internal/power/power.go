// Package power wraps the power_supply device class, primarily the
// brick battery. Raw readings are in microvolts and microamps, the
// convenience accessors scale them to SI units.
package power

import (
	"errors"

	"github.com/openbrick/brickd/internal/device"
)

// Class is the sysfs class of power supplies.
const Class = "power_supply"

// ErrNotFound is returned when no power supply matches.
var ErrNotFound = errors.New("power: no matching power supply")

// Supply is one bound power supply instance.
type Supply struct {
	dev *device.Device
}

// New binds the first power supply whose instance name matches the
// given pattern; "*" binds the first one found.
func New(root, pattern string) (*Supply, error) {
	if pattern == "" {
		pattern = "*"
	}
	dev, err := device.Bind(root, Class, pattern, nil)
	if err != nil {
		return nil, err
	}
	if !dev.Connected() {
		return nil, ErrNotFound
	}
	return &Supply{dev: dev}, nil
}

func (s *Supply) Device() *device.Device { return s.dev }

// CurrentNow reports the supplied current in microamps.
func (s *Supply) CurrentNow() (int, error) { return s.dev.GetInt("current_now") }

// VoltageNow reports the supplied voltage in microvolts.
func (s *Supply) VoltageNow() (int, error) { return s.dev.GetInt("voltage_now") }

// VoltageMaxDesign reports the design maximum voltage in microvolts.
func (s *Supply) VoltageMaxDesign() (int, error) {
	return s.dev.GetInt("voltage_max_design")
}

// VoltageMinDesign reports the design minimum voltage in microvolts.
func (s *Supply) VoltageMinDesign() (int, error) {
	return s.dev.GetInt("voltage_min_design")
}

// Technology reports the battery chemistry, e.g. "Li-ion".
func (s *Supply) Technology() (string, error) { return s.dev.GetString("technology") }

// Type reports the kind of supply, e.g. "Battery".
func (s *Supply) Type() (string, error) { return s.dev.GetString("type") }

// Amps reports the supplied current in amps.
func (s *Supply) Amps() (float64, error) {
	v, err := s.CurrentNow()
	if err != nil {
		return 0, err
	}
	return float64(v) / 1e6, nil
}

// Volts reports the supplied voltage in volts.
func (s *Supply) Volts() (float64, error) {
	v, err := s.VoltageNow()
	if err != nil {
		return 0, err
	}
	return float64(v) / 1e6, nil
}

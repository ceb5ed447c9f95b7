// Package led wraps the leds device class and the four status LEDs on
// the EV3 brick. Background effects hand back a handle the owner stops
// and joins, never a detached task.
package led

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openbrick/brickd/internal/device"
)

// Class is the sysfs class of the LEDs.
const Class = "leds"

// Names of the brick status LEDs.
const (
	NameRedLeft    = "ev3-left0:red:ev3dev"
	NameRedRight   = "ev3-right0:red:ev3dev"
	NameGreenLeft  = "ev3-left1:green:ev3dev"
	NameGreenRight = "ev3-right1:green:ev3dev"
)

// ErrNotFound is returned when the named LED does not exist.
var ErrNotFound = errors.New("led: no matching led")

// Led is one bound LED instance.
type Led struct {
	dev *device.Device
}

// New binds an LED by its exact instance name.
func New(root, name string) (*Led, error) {
	dev, err := device.Bind(root, Class, name, nil)
	if err != nil {
		return nil, err
	}
	if !dev.Connected() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &Led{dev: dev}, nil
}

func (l *Led) Device() *device.Device { return l.dev }

// MaxBrightness reports the largest accepted brightness value.
func (l *Led) MaxBrightness() (int, error) { return l.dev.GetInt("max_brightness") }

// Brightness reports the current level, 0 to MaxBrightness.
func (l *Led) Brightness() (int, error) { return l.dev.GetInt("brightness") }

// SetBrightness sets the level. Zero also disables an active timer
// trigger.
func (l *Led) SetBrightness(v int) error { return l.dev.SetInt("brightness", v) }

// BrightnessPct reports the level as a fraction of MaxBrightness.
func (l *Led) BrightnessPct() (float64, error) {
	max, err := l.MaxBrightness()
	if err != nil {
		return 0, err
	}
	cur, err := l.Brightness()
	if err != nil {
		return 0, err
	}
	if max == 0 {
		return 0, nil
	}
	return float64(cur) / float64(max), nil
}

// SetBrightnessPct sets the level as a fraction of MaxBrightness,
// clamped to [0, 1].
func (l *Led) SetBrightnessPct(pct float64) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	max, err := l.MaxBrightness()
	if err != nil {
		return err
	}
	return l.SetBrightness(int(pct * float64(max)))
}

// Triggers lists the kernel event sources this LED can follow.
func (l *Led) Triggers() ([]string, error) { return l.dev.GetSet("trigger") }

// Trigger reports the active trigger.
func (l *Led) Trigger() (string, error) { return l.dev.GetString("trigger") }

// SetTrigger selects a trigger. The timer trigger blinks between 0 and
// the current brightness with the delay_on and delay_off periods.
func (l *Led) SetTrigger(v string) error { return l.dev.SetString("trigger", v) }

// DelayOn reports the timer trigger on period in milliseconds.
func (l *Led) DelayOn() (int, error) { return l.dev.GetInt("delay_on") }

// SetDelayOn sets the timer trigger on period in milliseconds.
func (l *Led) SetDelayOn(ms int) error { return l.dev.SetInt("delay_on", ms) }

// DelayOff reports the timer trigger off period in milliseconds.
func (l *Led) DelayOff() (int, error) { return l.dev.GetInt("delay_off") }

// SetDelayOff sets the timer trigger off period in milliseconds.
func (l *Led) SetDelayOff(ms int) error { return l.dev.SetInt("delay_off", ms) }

// Panel groups the four brick status LEDs, one red and one green pair,
// so colours mix across both sides.
type Panel struct {
	RedLeft, RedRight     *Led
	GreenLeft, GreenRight *Led
}

// NewPanel binds all four brick LEDs.
func NewPanel(root string) (*Panel, error) {
	p := &Panel{}
	var err error
	if p.RedLeft, err = New(root, NameRedLeft); err != nil {
		return nil, err
	}
	if p.RedRight, err = New(root, NameRedRight); err != nil {
		return nil, err
	}
	if p.GreenLeft, err = New(root, NameGreenLeft); err != nil {
		return nil, err
	}
	if p.GreenRight, err = New(root, NameGreenRight); err != nil {
		return nil, err
	}
	return p, nil
}

// MixColors drives the red and green channels at the given fractions
// on both sides.
func (p *Panel) MixColors(red, green float64) error {
	for _, l := range []*Led{p.RedLeft, p.RedRight} {
		if err := l.SetBrightnessPct(red); err != nil {
			return err
		}
	}
	for _, l := range []*Led{p.GreenLeft, p.GreenRight} {
		if err := l.SetBrightnessPct(green); err != nil {
			return err
		}
	}
	return nil
}

// Red drives both sides pure red at the given fraction.
func (p *Panel) Red(pct float64) error { return p.MixColors(pct, 0) }

// Green drives both sides pure green at the given fraction.
func (p *Panel) Green(pct float64) error { return p.MixColors(0, pct) }

// Amber drives both channels equally.
func (p *Panel) Amber(pct float64) error { return p.MixColors(pct, pct) }

// Orange is the red heavy mix.
func (p *Panel) Orange(pct float64) error { return p.MixColors(pct, 0.5*pct) }

// Yellow is the green heavy mix.
func (p *Panel) Yellow(pct float64) error { return p.MixColors(0.5*pct, pct) }

// AllOff extinguishes every panel LED.
func (p *Panel) AllOff() error { return p.MixColors(0, 0) }

// Effect is a running background light pattern. Stop cancels it, joins
// the task and leaves the panel dark.
type Effect struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Stop cancels the effect and waits for its task to exit.
func (e *Effect) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.done
}

// Flash alternates the given colour mix with darkness on the given
// period until the returned handle is stopped. Attribute write
// failures end the effect.
func (p *Panel) Flash(red, green float64, period time.Duration) *Effect {
	e := &Effect{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		defer p.AllOff()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		lit := false
		for {
			var err error
			if lit {
				err = p.AllOff()
			} else {
				err = p.MixColors(red, green)
			}
			if err != nil {
				return
			}
			lit = !lit

			select {
			case <-e.stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return e
}

package sensor

import "fmt"

// Beacon remote button identifiers.
const (
	RemoteRedUp    = "red_up"
	RemoteRedDown  = "red_down"
	RemoteBlueUp   = "blue_up"
	RemoteBlueDown = "blue_down"
	RemoteBeacon   = "beacon"
)

// remoteCodes decodes the IR-REMOTE value into the set of buttons held
// on the beacon. Codes outside the table read as no buttons.
var remoteCodes = map[int][]string{
	0:  {},
	1:  {RemoteRedUp},
	2:  {RemoteRedDown},
	3:  {RemoteBlueUp},
	4:  {RemoteBlueDown},
	5:  {RemoteRedUp, RemoteBlueUp},
	6:  {RemoteRedUp, RemoteBlueDown},
	7:  {RemoteRedDown, RemoteBlueUp},
	8:  {RemoteRedDown, RemoteBlueDown},
	9:  {RemoteBeacon},
	10: {RemoteRedUp, RemoteRedDown},
	11: {RemoteBlueUp, RemoteBlueDown},
}

// RemoteControl reads the EV3 beacon remote through an infrared sensor
// switched to remote mode.
type RemoteControl struct {
	sensor  *Infrared
	channel int
}

// NewRemoteControl wires a remote on the given beacon channel (1 to 4,
// clamped) and switches the sensor to IR-REMOTE mode.
func NewRemoteControl(ir *Infrared, channel int) (*RemoteControl, error) {
	if channel < 1 {
		channel = 1
	}
	if channel > 4 {
		channel = 4
	}
	if err := ir.SetMode(ModeIRRemote); err != nil {
		return nil, fmt.Errorf("switching to remote mode: %w", err)
	}
	return &RemoteControl{sensor: ir, channel: channel}, nil
}

// Pressed reports the buttons currently held on the beacon.
func (r *RemoteControl) Pressed() ([]string, error) {
	code, err := r.sensor.Value(r.channel - 1)
	if err != nil {
		return nil, err
	}
	buttons, ok := remoteCodes[code]
	if !ok {
		return nil, nil
	}
	return buttons, nil
}

// IsPressed reports whether one named button is currently held.
func (r *RemoteControl) IsPressed(button string) (bool, error) {
	pressed, err := r.Pressed()
	if err != nil {
		return false, err
	}
	for _, b := range pressed {
		if b == button {
			return true, nil
		}
	}
	return false, nil
}

// Package device binds hardware device instances exposed under a
// device-class directory tree.
//
// Each device class (tacho-motor, lego-sensor, leds, power_supply, ...) is
// a directory whose subdirectories are device instances; each instance
// exposes one pseudo-file per attribute. Instance directory names carry a
// driver-assigned index (motor0, sensor1) that is unrelated to the
// physical port, so binding matches on self-describing attributes such as
// driver_name and port_name instead.
//
// # Binding
//
//	dev, err := device.Bind(device.DefaultRoot, "tacho-motor", "motor*",
//	    device.Criteria{"port_name": {"outB"}})
//	if !dev.Connected() {
//	    // no matching hardware; not an error
//	}
//
// Bind keeps the first entry, in listing order, whose name matches the
// glob and whose attributes satisfy every criterion. Binding failure is
// silent by design: callers must check Connected() before use, mirroring
// the filesystem's own "maybe present" semantics. A handle is never
// re-scanned; rebinding means calling Bind again.
//
// Typed accessors delegate to the per-device attribute store and wrap
// failures in *AttributeError carrying the attribute name.
package device

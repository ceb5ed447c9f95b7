// Package sysfs provides cached, typed access to device attribute files.
//
// Hardware devices expose one pseudo-file per attribute under a class
// directory (e.g. /sys/class/tacho-motor/motor0/speed_sp). Attribute files
// are small, fixed-size and kernel-backed: reads return the whole value,
// writes replace it, and no truncation is ever needed.
//
// The Store caches open file handles so that repeated access to the same
// attribute reuses the descriptor instead of re-opening the file on every
// poll tick. Files are opened with the narrowest mode the permission bits
// allow.
//
// # Error Taxonomy
//
//   - ErrPathNotFound: the attribute file does not exist (transient scan
//     or unplug condition)
//   - ErrDeviceGone: a cached handle's backing file vanished (device
//     unplugged after binding)
//   - ErrInvalidArgument: the attribute content fails its type codec
//
// All errors can be checked with errors.Is().
package sysfs

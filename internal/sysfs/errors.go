package sysfs

import "errors"

// Domain errors for attribute file access.
// Use errors.Is() to check for these in calling code.
var (
	// ErrPathNotFound is returned when an attribute file does not exist.
	ErrPathNotFound = errors.New("sysfs: path not found")

	// ErrDeviceGone is returned when the backing file of a cached handle
	// has vanished, typically because the device was unplugged.
	ErrDeviceGone = errors.New("sysfs: device gone")

	// ErrInvalidArgument is returned when an attribute value fails its
	// type codec, e.g. non-decimal content in an integer attribute.
	ErrInvalidArgument = errors.New("sysfs: invalid argument")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("sysfs: store closed")
)

package pilot

import "errors"

var (
	// ErrMissingMotor is returned when a pilot is constructed without
	// both drive motors.
	ErrMissingMotor = errors.New("pilot: both motors are required")

	// ErrBadGeometry is returned for a non-positive wheel diameter or
	// track width.
	ErrBadGeometry = errors.New("pilot: wheel diameter and track width must be positive")

	// ErrZeroRadius is returned by TravelArc, which cannot derive a
	// heading change from a distance along a zero radius arc.
	ErrZeroRadius = errors.New("pilot: zero radius arc has no length")
)

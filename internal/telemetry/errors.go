package telemetry

import "errors"

var (
	// ErrInvalidRecord indicates a motion record missing a required field.
	ErrInvalidRecord = errors.New("invalid motion record")

	// ErrAlreadyRunning indicates Start was called on a running sampler.
	ErrAlreadyRunning = errors.New("sampler already running")
)

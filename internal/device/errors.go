package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
// Check with errors.Is(); *AttributeError additionally carries the
// attribute name and unwraps to the underlying sysfs error.
var (
	// ErrNotConnected is returned when an attribute operation is attempted
	// on an unbound handle. The filesystem is never touched in this case.
	ErrNotConnected = errors.New("device: not connected")

	// ErrWriteOnly is returned when reading a write-only attribute
	// (e.g. a command sink).
	ErrWriteOnly = errors.New("device: attribute is write-only")

	// ErrReadOnly is returned when writing a read-only attribute.
	ErrReadOnly = errors.New("device: attribute is read-only")

	// ErrUnsupported is returned when the concrete device class rejects an
	// operation. The filesystem surfaces the same observable failure
	// whether the kernel rejects the write or the attribute simply does
	// not exist, so callers must know what their device supports.
	ErrUnsupported = errors.New("device: operation not supported")
)

// AttributeError wraps a failed attribute operation with the attribute
// name, giving callers a uniform error surface over the sysfs taxonomy.
type AttributeError struct {
	Attribute string
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("device: attribute %q: %v", e.Attribute, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}

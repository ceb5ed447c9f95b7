package button

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/openbrick/brickd/internal/sysfs"
)

// Key-state buffer layout, matching include/uapi/linux/input.h.
const (
	// KeyMax is the highest key code covered by the bitmask.
	KeyMax = 0x2FF

	// keyBufLen is the byte length of the packed key-state bitmask.
	keyBufLen = (KeyMax + 7) / 8

	// eviocgkey is the EVIOCGKEY ioctl request number for a keyBufLen
	// buffer: _IOC(_IOC_READ, 'E', 0x18, keyBufLen).
	eviocgkey = 2<<30 | keyBufLen<<16 | 'E'<<8 | 0x18
)

// StateReader fills buf with the packed key-state bitmask of one input
// device. Implementations must write exactly len(buf) bytes.
type StateReader interface {
	KeyState(devicePath string, buf []byte) error
}

// EvdevReader reads key state from Linux input event devices with the
// EVIOCGKEY ioctl, reusing cached descriptors from an attribute store.
type EvdevReader struct {
	store *sysfs.Store
}

// NewEvdevReader creates a reader on top of the given store.
func NewEvdevReader(store *sysfs.Store) *EvdevReader {
	return &EvdevReader{store: store}
}

// KeyState performs one bulk EVIOCGKEY read on the device node.
func (r *EvdevReader) KeyState(devicePath string, buf []byte) error {
	f, err := r.store.File(devicePath)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		uintptr(eviocgkey),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		return fmt.Errorf("EVIOCGKEY on %s: %w", devicePath, errno)
	}
	return nil
}

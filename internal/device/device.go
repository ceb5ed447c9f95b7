package device

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/openbrick/brickd/internal/sysfs"
)

// DefaultRoot is the device-class tree root on a running system.
const DefaultRoot = "/sys/class"

// indexPattern extracts the trailing digits of an instance directory name.
var indexPattern = regexp.MustCompile(`(\d+)$`)

// Criteria maps attribute names to accepted values. A candidate matches a
// criterion when its attribute value contains any accepted value as a
// substring (OR within a criterion); all criteria must match (AND across
// attributes).
type Criteria map[string][]string

// Device is a handle on one matched hardware instance.
//
// The zero value is unusable; obtain handles through Bind. An unbound
// handle (Connected() == false) rejects every attribute operation with
// ErrNotConnected without touching the filesystem.
type Device struct {
	classPath string
	connected bool
	index     int // trailing digits of the instance name, -1 when absent
	store     *sysfs.Store
}

// Bind scans the class directory under root and binds the first instance,
// in listing order, whose name matches pattern and whose attributes
// satisfy every criterion.
//
// Listing order is the lexically sorted directory listing; on trees where
// several instances match, which one binds first is a property of the
// instance names, not of plug order.
//
// An exhausted scan (including a missing class directory) returns an
// unbound handle and no error. The error return is reserved for malformed
// glob patterns.
func Bind(root, class, pattern string, criteria Criteria) (*Device, error) {
	// Validate the pattern up front so a bad glob is not silently treated
	// as "no device".
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}

	classDir := filepath.Join(root, class)
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return unbound(), nil
	}

	for _, entry := range entries {
		ok, _ := filepath.Match(pattern, entry.Name())
		if !ok {
			continue
		}

		candidate := &Device{
			classPath: filepath.Join(classDir, entry.Name()),
			connected: true,
			index:     parseIndex(entry.Name()),
			store:     sysfs.NewStore(),
		}
		if candidate.matchesAll(criteria) {
			return candidate, nil
		}
		candidate.store.Close() //nolint:errcheck // Candidate rejected, best effort
	}

	return unbound(), nil
}

func unbound() *Device {
	return &Device{connected: false, index: -1}
}

// parseIndex returns the trailing integer of an instance name, or -1.
func parseIndex(name string) int {
	m := indexPattern.FindStringSubmatch(name)
	if m == nil {
		return -1
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return idx
}

// matchesAll reports whether every criterion is satisfied. An attribute
// that cannot be read disqualifies the candidate rather than failing the
// scan; absent attributes are a normal part of probing mixed trees.
func (d *Device) matchesAll(criteria Criteria) bool {
	for attr, accepted := range criteria {
		value, err := d.store.Read(d.attrPath(attr))
		if err != nil {
			return false
		}
		if !matchesAny(value, accepted) {
			return false
		}
	}
	return true
}

// matchesAny implements substring containment against any accepted value.
func matchesAny(value string, accepted []string) bool {
	for _, want := range accepted {
		if strings.Contains(value, want) {
			return true
		}
	}
	return false
}

// Connected reports whether the handle is bound to a hardware instance.
func (d *Device) Connected() bool {
	return d.connected
}

// Index returns the instance index parsed from the trailing digits of the
// matched directory name. ok is false when the name carries no index or
// the handle is unbound.
func (d *Device) Index() (int, bool) {
	if d.index < 0 {
		return 0, false
	}
	return d.index, true
}

// Path returns the bound instance directory, or "" for unbound handles.
func (d *Device) Path() string {
	return d.classPath
}

// Close releases the cached attribute handles. The device remains
// formally bound but any further attribute operation fails.
func (d *Device) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}

func (d *Device) attrPath(attribute string) string {
	return filepath.Join(d.classPath, attribute)
}

// GetString reads a string attribute.
func (d *Device) GetString(attribute string) (string, error) {
	if !d.connected {
		return "", ErrNotConnected
	}
	value, err := d.store.Read(d.attrPath(attribute))
	if err != nil {
		return "", d.wrap(attribute, err, true)
	}
	return value, nil
}

// SetString writes a string attribute.
func (d *Device) SetString(attribute, value string) error {
	if !d.connected {
		return ErrNotConnected
	}
	if err := d.store.Write(d.attrPath(attribute), value); err != nil {
		return d.wrap(attribute, err, false)
	}
	return nil
}

// GetInt reads a decimal integer attribute.
func (d *Device) GetInt(attribute string) (int, error) {
	if !d.connected {
		return 0, ErrNotConnected
	}
	value, err := d.store.ReadInt(d.attrPath(attribute))
	if err != nil {
		return 0, d.wrap(attribute, err, true)
	}
	return value, nil
}

// SetInt writes a decimal integer attribute.
func (d *Device) SetInt(attribute string, value int) error {
	if !d.connected {
		return ErrNotConnected
	}
	if err := d.store.WriteInt(d.attrPath(attribute), value); err != nil {
		return d.wrap(attribute, err, false)
	}
	return nil
}

// GetSet reads a whitespace-separated token attribute in device order.
func (d *Device) GetSet(attribute string) ([]string, error) {
	if !d.connected {
		return nil, ErrNotConnected
	}
	values, err := d.store.ReadSet(d.attrPath(attribute))
	if err != nil {
		return nil, d.wrap(attribute, err, true)
	}
	return values, nil
}

// ReadBinary reads a fixed-size raw byte block from a binary attribute.
func (d *Device) ReadBinary(attribute string, size int) ([]byte, error) {
	if !d.connected {
		return nil, ErrNotConnected
	}
	data, err := d.store.ReadBinary(d.attrPath(attribute), size)
	if err != nil {
		return nil, d.wrap(attribute, err, true)
	}
	return data, nil
}

// wrap converts a sysfs failure into the device-level taxonomy, carrying
// the attribute name. Direction violations are detected only on the error
// path so the happy path stays a single syscall.
func (d *Device) wrap(attribute string, err error, reading bool) error {
	path := d.attrPath(attribute)

	if reading && isWriteOnly(path) {
		return &AttributeError{Attribute: attribute, Err: ErrWriteOnly}
	}
	if !reading && isReadOnly(path) {
		return &AttributeError{Attribute: attribute, Err: ErrReadOnly}
	}
	if isUnsupported(err) {
		return &AttributeError{Attribute: attribute, Err: ErrUnsupported}
	}
	return &AttributeError{Attribute: attribute, Err: err}
}

// isWriteOnly reports whether path exists but denies read access.
func isWriteOnly(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return unix.Access(path, unix.R_OK) != nil && unix.Access(path, unix.W_OK) == nil
}

// isReadOnly reports whether path exists but denies write access.
func isReadOnly(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return unix.Access(path, unix.W_OK) != nil && unix.Access(path, unix.R_OK) == nil
}

// isUnsupported reports whether err carries the kernel's "operation not
// supported" errno, returned by attributes a given driver does not
// implement.
func isUnsupported(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EOPNOTSUPP
	}
	return false
}

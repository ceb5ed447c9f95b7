package sysfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Store caches open attribute file handles keyed by path.
//
// A Store owns its descriptors exclusively: handles are never shared
// across stores, and Close releases every cached descriptor. All methods
// are safe for concurrent use; the store mutex covers the full
// seek-and-transfer sequence so callers sharing a cached handle never
// observe an interleaved offset.
type Store struct {
	mu      sync.Mutex
	handles map[string]*os.File
	closed  bool
}

// NewStore creates an empty attribute store.
func NewStore() *Store {
	return &Store{
		handles: make(map[string]*os.File),
	}
}

// handle returns the cached file handle for path, opening it on first use.
func (s *Store) handle(path string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleLocked(path)
}

// handleLocked is handle with s.mu already held.
func (s *Store) handleLocked(path string) (*os.File, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if f, ok := s.handles[path]; ok {
		return f, nil
	}

	f, err := openAttribute(path)
	if err != nil {
		return nil, err
	}
	s.handles[path] = f
	return f, nil
}

// openAttribute opens an attribute file with the narrowest sufficient mode:
// read-write when both permission bits are set, write-only for command
// sinks, read-only otherwise. O_TRUNC is never passed; attribute files are
// fixed-size and must not be truncated.
func openAttribute(path string) (*os.File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	readable := unix.Access(path, unix.R_OK) == nil
	writable := unix.Access(path, unix.W_OK) == nil

	var flag int
	switch {
	case readable && writable:
		flag = os.O_RDWR
	case writable:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening attribute %s: %w", path, err)
	}
	return f, nil
}

// File returns the cached handle for path, opening it on first use.
// Callers must not close the handle; the store owns it. Used for device
// nodes that are driven by ioctl rather than read/write.
func (s *Store) File(path string) (*os.File, error) {
	return s.handle(path)
}

// Read returns the attribute value with trailing whitespace stripped.
func (s *Store) Read(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.handleLocked(path)
	if err != nil {
		return "", err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", s.classify(path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", s.classify(path, err)
	}
	return strings.TrimRight(string(data), " \t\r\n\x00"), nil
}

// Write sets the attribute value. The file is not truncated: attribute
// files are fixed-size and kernel-backed, so truncation is neither needed
// nor performed.
func (s *Store) Write(path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.handleLocked(path)
	if err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return s.classify(path, err)
	}
	if _, err := f.WriteString(value); err != nil {
		return s.classify(path, err)
	}
	return nil
}

// ReadInt reads a decimal integer attribute.
func (s *Store) ReadInt(path string) (int, error) {
	raw, err := s.Read(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, raw)
	}
	return v, nil
}

// WriteInt writes a decimal integer attribute.
func (s *Store) WriteInt(path string, value int) error {
	return s.Write(path, strconv.Itoa(value))
}

// ReadSet reads a whitespace-separated token attribute, preserving the
// token order reported by the device (used for attributes enumerating
// legal values, e.g. available modes).
func (s *Store) ReadSet(path string) ([]string, error) {
	raw, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(raw), nil
}

// ReadBinary reads a fixed-size raw byte block from the start of the
// attribute file. The caller computes size once from the device's format
// descriptor and caches it.
func (s *Store) ReadBinary(path string, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: binary read size %d", ErrInvalidArgument, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.handleLocked(path)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, s.classify(path, err)
	}
	return buf, nil
}

// Close releases all cached descriptors. The store rejects further use.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for path, f := range s.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", path, err)
		}
	}
	s.handles = nil
	return firstErr
}

// Forget drops the cached handle for path, closing it if present.
// Used when a bound device disappears and its handles must be released.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.handles[path]; ok {
		f.Close() //nolint:errcheck // Best effort on eviction
		delete(s.handles, path)
	}
}

// classify maps an I/O failure on a cached handle to the domain taxonomy.
// sysfs surfaces ENODEV once a device node is removed; for plain files
// (test trees), the path disappearing is the equivalent signal.
func (s *Store) classify(path string, err error) error {
	if isDeviceGone(err) {
		return fmt.Errorf("%w: %s", ErrDeviceGone, path)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("%w: %s", ErrDeviceGone, path)
	}
	return fmt.Errorf("attribute %s: %w", path, err)
}

// isDeviceGone reports whether err carries the errno of a removed device
// node.
func isDeviceGone(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENODEV || errno == syscall.ENXIO
	}
	return false
}

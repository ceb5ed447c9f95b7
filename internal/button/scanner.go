package button

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Scanning loop parameters.
const (
	// defaultScanInterval is the delay between background scan ticks
	// unless SetScanInterval overrides it.
	defaultScanInterval = 100 * time.Millisecond

	// stopTimeout bounds the wait for the scanning goroutine to exit.
	stopTimeout = 10 * time.Second
)

// Source identifies one button: the input device node carrying its state
// and the key code whose bit to test.
type Source struct {
	Device string
	Code   uint16
}

// Change records one edge observed by Process.
type Change struct {
	Source  string
	Pressed bool
}

// Handler is invoked with the new pressed state of a single source.
type Handler func(pressed bool)

// ChangeHandler is invoked once per Process call with every edge of that
// tick, ordered by source name.
type ChangeHandler func(changes []Change)

// Logger is the minimal logging surface the scanner needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Scanner polls a set of button sources and dispatches edge callbacks.
//
// The previous snapshot is owned exclusively by the scanning goroutine;
// callbacks may read the change list they are handed but must not reach
// back into the scanner's polling state.
type Scanner struct {
	reader  StateReader
	sources map[string]Source

	// buffers holds one bitmask buffer per distinct backing device, so
	// each tick issues exactly one bulk read per device.
	buffers map[string][]byte

	handlerMu sync.RWMutex
	handlers  map[string]Handler
	onChange  ChangeHandler

	state map[string]bool // last snapshot, scanning-task owned

	taskMu   sync.Mutex
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}

	logger Logger
}

// NewScanner creates a scanner over the given sources. Reads go through
// reader, letting tests substitute a fake for the ioctl path.
func NewScanner(reader StateReader, sources map[string]Source) *Scanner {
	buffers := make(map[string][]byte)
	for _, src := range sources {
		if _, ok := buffers[src.Device]; !ok {
			buffers[src.Device] = make([]byte, keyBufLen)
		}
	}
	return &Scanner{
		reader:   reader,
		sources:  sources,
		buffers:  buffers,
		handlers: make(map[string]Handler),
		state:    make(map[string]bool),
		interval: defaultScanInterval,
		logger:   noopLogger{},
	}
}

// SetScanInterval sets the delay between background scan ticks. A
// non-positive interval restores the default. Takes effect on the next
// StartScanning.
func (s *Scanner) SetScanInterval(d time.Duration) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if d <= 0 {
		d = defaultScanInterval
	}
	s.interval = d
}

// SetLogger sets the logger used for failed poll warnings.
func (s *Scanner) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetHandler registers (or clears, with nil) the per-source handler.
// A source with no handler is silently skipped at dispatch time.
func (s *Scanner) SetHandler(source string, h Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	if h == nil {
		delete(s.handlers, source)
		return
	}
	s.handlers[source] = h
}

// SetOnChange registers the aggregate change handler.
func (s *Scanner) SetOnChange(h ChangeHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onChange = h
}

// Pressed returns the set of sources currently asserted.
//
// One bulk read is issued per distinct backing device, then each source's
// bit is tested. Pressed means the bit is clear: these devices report
// "0 = down", and that polarity is preserved as observed.
func (s *Scanner) Pressed() (map[string]bool, error) {
	for dev, buf := range s.buffers {
		if err := s.reader.KeyState(dev, buf); err != nil {
			return nil, fmt.Errorf("reading key state: %w", err)
		}
	}

	pressed := make(map[string]bool)
	for name, src := range s.sources {
		buf := s.buffers[src.Device]
		bit := int(src.Code)
		if buf[bit/8]&(1<<(bit%8)) == 0 {
			pressed[name] = true
		}
	}
	return pressed, nil
}

// Any reports whether any source is currently asserted.
func (s *Scanner) Any() (bool, error) {
	pressed, err := s.Pressed()
	if err != nil {
		return false, err
	}
	return len(pressed) > 0, nil
}

// Process takes one snapshot, diffs it against the previous one, and
// dispatches callbacks for every edge. Individual handlers fire first,
// then the aggregate handler with the full ordered change list. With no
// intervening state change, no callback is invoked.
func (s *Scanner) Process() error {
	newState, err := s.Pressed()
	if err != nil {
		return err
	}
	oldState := s.state
	s.state = newState

	var changed []string
	for name := range newState {
		if !oldState[name] {
			changed = append(changed, name)
		}
	}
	for name := range oldState {
		if !newState[name] {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)

	changes := make([]Change, 0, len(changed))
	for _, name := range changed {
		changes = append(changes, Change{Source: name, Pressed: newState[name]})
	}

	s.handlerMu.RLock()
	handlers := make([]Handler, len(changes))
	for i, ch := range changes {
		handlers[i] = s.handlers[ch.Source]
	}
	onChange := s.onChange
	s.handlerMu.RUnlock()

	for i, ch := range changes {
		if handlers[i] != nil {
			handlers[i](ch.Pressed)
		}
	}
	if onChange != nil {
		onChange(changes)
	}
	return nil
}

// StartScanning launches the background scan loop if not already running.
// Returns false (and does nothing) when the scanner is already active.
func (s *Scanner) StartScanning() bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	if s.stop != nil {
		return false
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.scanLoop(s.interval, s.stop, s.done)
	return true
}

// StopScanning stops the background scan loop, waiting up to 10 seconds
// for it to exit. Returns false when the scanner was not running. After a
// successful stop the task handle is cleared, so a later StartScanning
// creates a fresh loop.
func (s *Scanner) StopScanning() bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	if s.stop == nil {
		return false
	}
	close(s.stop)

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		s.logger.Warn("scan loop did not stop within timeout")
	}

	s.stop = nil
	s.done = nil
	return true
}

// scanLoop processes on a fixed interval until stopped. A failed poll is
// logged and skipped; the loop continues on its next tick.
func (s *Scanner) scanLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Process(); err != nil {
				s.logger.Warn("button scan failed", "error", err)
			}
		}
	}
}

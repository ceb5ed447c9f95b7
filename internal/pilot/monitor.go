package pilot

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openbrick/brickd/internal/sysfs"
)

const (
	pollInterval = 100 * time.Millisecond

	// DefaultWaitTimeout bounds Wait when the caller passes zero.
	DefaultWaitTimeout = 60 * time.Second

	holdingFlag = "holding"
)

// State is the lifecycle of a motion monitor. Running is the only
// non-terminal state.
type State int32

const (
	StateRunning State = iota
	StateCompleted
	StateStalled
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStalled:
		return "stalled"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Callbacks are the optional motion lifecycle hooks. OnStart fires
// before the first poll; OnComplete and OnStalled fire at most once,
// from the monitor task, and are mutually exclusive. Shared state they
// touch must be synchronized by the caller.
type Callbacks struct {
	OnStart    func()
	OnComplete func()
	OnStalled  func()
}

// Monitor tracks one motion request until it settles.
type Monitor interface {
	// Wait blocks until the motion settles or timeout elapses. A zero
	// timeout means DefaultWaitTimeout, a negative one waits
	// unbounded. On timeout the monitor is cancelled so no callback
	// fires later. The settled (or cancelled) state is returned.
	Wait(timeout time.Duration) State
	// Stop cancels the monitor and joins its task.
	Stop()
	// Running reports whether the motion is still being tracked.
	Running() bool
	// Stalled reports whether the motion ended in a stall.
	Stalled() bool
	// State reports the current lifecycle state.
	State() State
}

// motionMonitor polls (state, position) for its motors on a fixed
// interval. All motors holding means the target was reached; a
// position frozen between two polls on a motor that is not holding
// means a stall.
type motionMonitor struct {
	motors []Motor
	cb     Callbacks
	log    Logger

	state      atomic.Int32
	cancelOnce sync.Once
	cancelled  chan struct{}
	done       chan struct{}
}

func newMonitor(motors []Motor, cb *Callbacks, log Logger) *motionMonitor {
	m := &motionMonitor{
		motors:    motors,
		log:       log,
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
	if cb != nil {
		m.cb = *cb
	}
	if m.log == nil {
		m.log = noopLogger{}
	}
	return m
}

// start fires OnStart on the caller and launches the poll task.
func (m *motionMonitor) start() {
	if m.cb.OnStart != nil {
		m.cb.OnStart()
	}
	go m.run()
}

// transition moves Running to a terminal state exactly once. The
// returned flag tells the winner, so a losing path never fires its
// callback.
func (m *motionMonitor) transition(to State) bool {
	return m.state.CompareAndSwap(int32(StateRunning), int32(to))
}

// cancel marks the monitor cancelled before waking the task, so a poll
// racing with cancellation cannot fire a callback afterwards.
func (m *motionMonitor) cancel() {
	m.cancelOnce.Do(func() {
		m.transition(StateCancelled)
		close(m.cancelled)
	})
}

func (m *motionMonitor) State() State { return State(m.state.Load()) }

func (m *motionMonitor) Running() bool { return m.State() == StateRunning }

func (m *motionMonitor) Stalled() bool { return m.State() == StateStalled }

func (m *motionMonitor) Wait(timeout time.Duration) State {
	if timeout == 0 {
		timeout = DefaultWaitTimeout
	}
	if timeout < 0 {
		<-m.done
		return m.State()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-m.done:
	case <-timer.C:
		m.cancel()
	}
	return m.State()
}

func (m *motionMonitor) Stop() {
	m.cancel()
	<-m.done
}

func (m *motionMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	prev := make([]int, len(m.motors))
	havePrev := false

	for {
		positions := make([]int, len(m.motors))
		holding := make([]bool, len(m.motors))
		allHolding := true
		pollOK := true

		for i, mot := range m.motors {
			flags, err := mot.State()
			if err == nil {
				positions[i], err = mot.Position()
			}
			if err != nil {
				if errors.Is(err, sysfs.ErrDeviceGone) {
					// The motor vanished mid-motion; report it the way
					// a stall is reported instead of polling forever.
					if m.transition(StateStalled) && m.cb.OnStalled != nil {
						m.cb.OnStalled()
					}
					return
				}
				m.log.Warn("motion poll failed", "error", err)
				pollOK = false
				break
			}
			holding[i] = hasFlag(flags, holdingFlag)
			if !holding[i] {
				allHolding = false
			}
		}

		if pollOK {
			if allHolding {
				if m.transition(StateCompleted) && m.cb.OnComplete != nil {
					m.cb.OnComplete()
				}
				return
			}
			if havePrev {
				for i := range m.motors {
					if positions[i] == prev[i] && !holding[i] {
						if m.transition(StateStalled) && m.cb.OnStalled != nil {
							m.cb.OnStalled()
						}
						return
					}
				}
			}
			copy(prev, positions)
			havePrev = true
		}

		select {
		case <-m.cancelled:
			return
		case <-ticker.C:
		}
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// NullMonitor stands in for motions that require no movement. It is
// settled from the start and every operation is a no-op.
type NullMonitor struct{}

func (NullMonitor) Wait(time.Duration) State { return StateCompleted }
func (NullMonitor) Stop()                    {}
func (NullMonitor) Running() bool            { return false }
func (NullMonitor) Stalled() bool            { return false }
func (NullMonitor) State() State             { return StateCompleted }

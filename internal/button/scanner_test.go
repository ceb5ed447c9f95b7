package button

import (
	"errors"
	"testing"
	"time"
)

// fakeReader is a scripted StateReader. Sources not marked down read as
// "bit set", matching the hardware's 0-means-pressed convention.
type fakeReader struct {
	down map[uint16]bool // key code -> currently held
	err  error
	// reads counts bulk reads, to assert one read per device per tick.
	reads int
}

func (f *fakeReader) KeyState(_ string, buf []byte) error {
	if f.err != nil {
		return f.err
	}
	f.reads++
	for i := range buf {
		buf[i] = 0xFF
	}
	for code, held := range f.down {
		if held {
			buf[code/8] &^= 1 << (code % 8)
		}
	}
	return nil
}

func testSources() map[string]Source {
	const dev = "/dev/input/by-path/platform-gpio-keys.0-event"
	return map[string]Source{
		"up":    {Device: dev, Code: 103},
		"down":  {Device: dev, Code: 108},
		"enter": {Device: dev, Code: 28},
	}
}

func TestPressed_InvertedPolarity(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{103: true}}
	s := NewScanner(reader, testSources())

	pressed, err := s.Pressed()
	if err != nil {
		t.Fatalf("Pressed() error = %v", err)
	}
	if !pressed["up"] {
		t.Error("up should be pressed (bit clear)")
	}
	if pressed["down"] || pressed["enter"] {
		t.Errorf("unexpected pressed sources: %v", pressed)
	}
	if reader.reads != 1 {
		t.Errorf("bulk reads = %d, want 1 per distinct device", reader.reads)
	}
}

func TestProcess_NoChangeNoCallbacks(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{103: true}}
	s := NewScanner(reader, testSources())

	calls := 0
	s.SetHandler("up", func(bool) { calls++ })
	s.SetOnChange(func([]Change) { calls++ })

	if err := s.Process(); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	first := calls

	if err := s.Process(); err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if calls != first {
		t.Errorf("callbacks fired on unchanged state: %d -> %d", first, calls)
	}
}

func TestProcess_PressEdge(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{}}
	s := NewScanner(reader, testSources())

	var handlerStates []bool
	var aggregate [][]Change
	s.SetHandler("enter", func(pressed bool) { handlerStates = append(handlerStates, pressed) })
	s.SetOnChange(func(changes []Change) {
		cp := make([]Change, len(changes))
		copy(cp, changes)
		aggregate = append(aggregate, cp)
	})

	// Baseline: nothing pressed, no edges, no callbacks.
	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(handlerStates) != 0 || len(aggregate) != 0 {
		t.Fatal("callbacks fired without an edge")
	}

	reader.down[28] = true
	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(handlerStates) != 1 || handlerStates[0] != true {
		t.Errorf("individual handler calls = %v, want [true]", handlerStates)
	}
	if len(aggregate) != 1 {
		t.Fatalf("aggregate handler calls = %d, want 1", len(aggregate))
	}
	want := []Change{{Source: "enter", Pressed: true}}
	if len(aggregate[0]) != 1 || aggregate[0][0] != want[0] {
		t.Errorf("aggregate changes = %v, want %v", aggregate[0], want)
	}
}

func TestProcess_ReleaseEdge(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{108: true}}
	s := NewScanner(reader, testSources())

	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var got []bool
	s.SetHandler("down", func(pressed bool) { got = append(got, pressed) })

	reader.down[108] = false
	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(got) != 1 || got[0] != false {
		t.Errorf("handler calls = %v, want [false]", got)
	}
}

func TestProcess_MissingHandlerIsNoop(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{}}
	s := NewScanner(reader, testSources())

	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	reader.down[103] = true
	// No handler registered for "up"; must not panic or error.
	if err := s.Process(); err != nil {
		t.Fatalf("Process() with missing handler error = %v", err)
	}
}

func TestProcess_ChangesOrderedBySource(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{}}
	s := NewScanner(reader, testSources())

	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var order []string
	s.SetOnChange(func(changes []Change) {
		for _, ch := range changes {
			order = append(order, ch.Source)
		}
	})

	reader.down[103] = true
	reader.down[108] = true
	reader.down[28] = true
	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []string{"down", "enter", "up"}
	if len(order) != len(want) {
		t.Fatalf("change order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("change order = %v, want %v", order, want)
			break
		}
	}
}

func TestProcess_ReadFailure(t *testing.T) {
	reader := &fakeReader{err: errors.New("ioctl failed")}
	s := NewScanner(reader, testSources())

	if err := s.Process(); err == nil {
		t.Error("Process() should surface read failures")
	}
}

func TestStartStopScanning_Idempotent(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{}}
	s := NewScanner(reader, testSources())

	if !s.StartScanning() {
		t.Fatal("StartScanning() = false, want true on first start")
	}
	if s.StartScanning() {
		t.Error("StartScanning() = true on running scanner, want false")
	}
	if !s.StopScanning() {
		t.Error("StopScanning() = false, want true on running scanner")
	}
	if s.StopScanning() {
		t.Error("StopScanning() = true on stopped scanner, want false")
	}

	// A stopped scanner can be started again with a fresh task.
	if !s.StartScanning() {
		t.Error("StartScanning() = false after stop, want true")
	}
	if !s.StopScanning() {
		t.Error("StopScanning() = false after restart, want true")
	}
}

func TestScanLoop_DispatchesOnTick(t *testing.T) {
	reader := &fakeReader{down: map[uint16]bool{}}
	s := NewScanner(reader, testSources())
	s.SetScanInterval(10 * time.Millisecond)

	edge := make(chan bool, 1)
	s.SetHandler("up", func(pressed bool) {
		select {
		case edge <- pressed:
		default:
		}
	})

	// Seed the baseline before the loop starts; the press below is then
	// picked up by a background tick.
	if err := s.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	reader.down[103] = true

	if !s.StartScanning() {
		t.Fatal("StartScanning() failed")
	}
	defer s.StopScanning()

	select {
	case pressed := <-edge:
		if !pressed {
			t.Error("edge = release, want press")
		}
	case <-time.After(2 * time.Second):
		t.Error("background scanner never dispatched the edge")
	}
}

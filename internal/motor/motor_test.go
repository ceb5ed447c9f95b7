package motor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeInstance(t *testing.T, root, class, name string, attrs map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, class, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for attr, value := range attrs {
		if err := os.WriteFile(filepath.Join(dir, attr), []byte(value+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readAttr(t *testing.T, dir, attr string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		t.Fatal(err)
	}
	// Attribute writes do not truncate, so strip what a fresh read
	// through the store would strip.
	out := string(b)
	for len(out) > 0 {
		last := out[len(out)-1]
		if last != '\n' && last != ' ' && last != '\t' {
			break
		}
		out = out[:len(out)-1]
	}
	return out
}

func tachoAttrs(port, driver string) map[string]string {
	return map[string]string{
		"port_name":     port,
		"driver_name":   driver,
		"command":       "",
		"commands":      "run-forever run-timed run-to-abs-pos run-to-rel-pos run-direct stop reset",
		"state":         "",
		"polarity":      "normal",
		"position":      "0",
		"position_sp":   "0",
		"speed":         "0",
		"speed_sp":      "0",
		"speed_regulation": "off",
		"count_per_rot": "360",
		"duty_cycle":    "0",
		"duty_cycle_sp": "0",
		"ramp_up_sp":    "0",
		"ramp_down_sp":  "0",
		"time_sp":       "0",
		"stop_command":  "coast",
		"stop_commands": "coast brake hold",
	}
}

func TestNewTacho_BindsByPortAndDriver(t *testing.T) {
	root := t.TempDir()
	writeInstance(t, root, ClassTacho, "motor0", tachoAttrs("outA", DriverMediumMotor))
	writeInstance(t, root, ClassTacho, "motor1", tachoAttrs("outB", DriverLargeMotor))

	m, err := NewLargeMotor(root, "outB")
	if err != nil {
		t.Fatalf("NewLargeMotor() error = %v", err)
	}
	defer m.Device().Close()

	if idx, ok := m.Device().Index(); !ok || idx != 1 {
		t.Errorf("Index() = %d, %v, want 1, true", idx, ok)
	}
	if cpr, err := m.CountPerRot(); err != nil || cpr != 360 {
		t.Errorf("CountPerRot() = %d, %v, want 360", cpr, err)
	}
}

func TestNewTacho_NotFound(t *testing.T) {
	root := t.TempDir()
	writeInstance(t, root, ClassTacho, "motor0", tachoAttrs("outA", DriverLargeMotor))

	if _, err := NewMediumMotor(root, "outA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewMediumMotor() error = %v, want ErrNotFound", err)
	}
	if _, err := NewLargeMotor(root, "outD"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewLargeMotor(outD) error = %v, want ErrNotFound", err)
	}
}

func TestTacho_RunToRelPos(t *testing.T) {
	root := t.TempDir()
	dir := writeInstance(t, root, ClassTacho, "motor0", tachoAttrs("outA", DriverLargeMotor))

	m, err := NewTacho(root, "outA")
	if err != nil {
		t.Fatalf("NewTacho() error = %v", err)
	}
	defer m.Device().Close()

	if err := m.RunToRelPos(531); err != nil {
		t.Fatalf("RunToRelPos() error = %v", err)
	}
	if got := readAttr(t, dir, "position_sp"); got != "531" {
		t.Errorf("position_sp = %q, want 531", got)
	}
	if got := readAttr(t, dir, "command"); got != CommandRunToRelPos {
		t.Errorf("command = %q, want %q", got, CommandRunToRelPos)
	}
}

func TestTacho_StopOverridesStopCommand(t *testing.T) {
	root := t.TempDir()
	attrs := tachoAttrs("outA", DriverLargeMotor)
	// Seeded empty so the non-truncating write leaves no tail bytes in
	// the regular file standing in for the kernel attribute.
	attrs["stop_command"] = ""
	dir := writeInstance(t, root, ClassTacho, "motor0", attrs)

	m, err := NewTacho(root, "outA")
	if err != nil {
		t.Fatalf("NewTacho() error = %v", err)
	}
	defer m.Device().Close()

	if err := m.Stop(StopCommandHold); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := readAttr(t, dir, "stop_command"); got != StopCommandHold {
		t.Errorf("stop_command = %q, want hold", got)
	}
	if got := readAttr(t, dir, "command"); got != CommandStop {
		t.Errorf("command = %q, want stop", got)
	}

	// Without an override the configured behaviour is left alone.
	if err := m.Stop(""); err != nil {
		t.Fatalf("Stop(\"\") error = %v", err)
	}
	if got := readAttr(t, dir, "stop_command"); got != StopCommandHold {
		t.Errorf("stop_command = %q, want unchanged hold", got)
	}
}

func TestTacho_StateFlags(t *testing.T) {
	root := t.TempDir()
	attrs := tachoAttrs("outA", DriverLargeMotor)
	attrs["state"] = "running ramping"
	writeInstance(t, root, ClassTacho, "motor0", attrs)

	m, err := NewTacho(root, "outA")
	if err != nil {
		t.Fatalf("NewTacho() error = %v", err)
	}
	defer m.Device().Close()

	state, err := m.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if len(state) != 2 || state[0] != "running" || state[1] != "ramping" {
		t.Errorf("State() = %v, want [running ramping]", state)
	}
}

func TestDC_RunTimed(t *testing.T) {
	root := t.TempDir()
	dir := writeInstance(t, root, ClassDC, "motor0", map[string]string{
		"port_name":     "outC",
		"driver_name":   "rcx-motor",
		"command":       "",
		"commands":      "run-forever run-timed run-direct stop",
		"state":         "",
		"polarity":      "normal",
		"duty_cycle":    "0",
		"duty_cycle_sp": "0",
		"ramp_up_sp":    "0",
		"ramp_down_sp":  "0",
		"time_sp":       "0",
		"stop_command":  "coast",
		"stop_commands": "coast brake",
	})

	m, err := NewDC(root, "outC")
	if err != nil {
		t.Fatalf("NewDC() error = %v", err)
	}
	defer m.Device().Close()

	if err := m.RunTimed(1500); err != nil {
		t.Fatalf("RunTimed() error = %v", err)
	}
	if got := readAttr(t, dir, "time_sp"); got != "1500" {
		t.Errorf("time_sp = %q, want 1500", got)
	}
	if got := readAttr(t, dir, "command"); got != CommandRunTimed {
		t.Errorf("command = %q, want run-timed", got)
	}
}

func TestServo_RunWritesPositionThenCommand(t *testing.T) {
	root := t.TempDir()
	dir := writeInstance(t, root, ClassServo, "motor0", map[string]string{
		"port_name":    "in1",
		"driver_name":  "servo",
		"command":      "",
		"state":        "",
		"polarity":     "normal",
		"position_sp":  "0",
		"min_pulse_sp": "600",
		"mid_pulse_sp": "1500",
		"max_pulse_sp": "2400",
		"rate_sp":      "0",
	})

	s, err := NewServo(root, "in1")
	if err != nil {
		t.Fatalf("NewServo() error = %v", err)
	}
	defer s.Device().Close()

	if err := s.SetPositionSetpoint(-100); err != nil {
		t.Fatalf("SetPositionSetpoint() error = %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := readAttr(t, dir, "position_sp"); got != "-100" {
		t.Errorf("position_sp = %q, want -100", got)
	}
	if got := readAttr(t, dir, "command"); got != "run" {
		t.Errorf("command = %q, want run", got)
	}
}

package sound

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeTool writes a shell script that records its arguments, so tests
// can assert the exact command line without audio hardware.
func fakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func recordedArgs(t *testing.T, file string) string {
	t.Helper()
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func TestToneSequence_BeepArgs(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	p := NewPlayer()
	p.BeepPath = fakeTool(t, dir, "beep", `echo "$@" > `+argsFile)

	h, err := p.ToneSequence(context.Background(), []Note{
		{Frequency: 392, Duration: 350, Delay: 100},
		{Frequency: 440, Duration: 700},
	})
	if err != nil {
		t.Fatalf("ToneSequence() error = %v", err)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := "-f 392 -l 350 -D 100 -n -f 440 -l 700"
	if got := recordedArgs(t, argsFile); got != want {
		t.Errorf("beep args = %q, want %q", got, want)
	}
}

func TestToneSequence_Empty(t *testing.T) {
	p := NewPlayer()
	if _, err := p.ToneSequence(context.Background(), nil); err == nil {
		t.Error("empty sequence should fail")
	}
}

func TestPlay_InvokesAplay(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	p := NewPlayer()
	p.AplayPath = fakeTool(t, dir, "aplay", `echo "$@" > `+argsFile)

	h, err := p.Play(context.Background(), "/sounds/bark.wav")
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := recordedArgs(t, argsFile); got != "-q /sounds/bark.wav" {
		t.Errorf("aplay args = %q", got)
	}
}

func TestSpeak_PipesThroughAplay(t *testing.T) {
	dir := t.TempDir()
	heardFile := filepath.Join(dir, "heard")
	p := NewPlayer()
	p.EspeakPath = fakeTool(t, dir, "espeak", `shift 3; echo "speech:$1"`)
	p.AplayPath = fakeTool(t, dir, "aplay", `cat > `+heardFile)

	h, err := p.Speak(context.Background(), "hello robot")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := recordedArgs(t, heardFile); got != "speech:hello robot" {
		t.Errorf("piped speech = %q, want %q", got, "speech:hello robot")
	}
}

func TestHandle_StopKillsPlayback(t *testing.T) {
	dir := t.TempDir()
	p := NewPlayer()
	p.AplayPath = fakeTool(t, dir, "aplay", "sleep 30")

	h, err := p.Play(context.Background(), "x.wav")
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	start := time.Now()
	h.Stop()
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Stop() took %v", elapsed)
	}

	// The handle is settled afterwards; Wait returns the kill error
	// immediately and a second Stop is a no-op.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = h.Wait(ctx)
	h.Stop()
}

func TestWait_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	p := NewPlayer()
	p.AplayPath = fakeTool(t, dir, "aplay", "sleep 30")

	h, err := p.Play(context.Background(), "x.wav")
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the context expires first")
	}
}

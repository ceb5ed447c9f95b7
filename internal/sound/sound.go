// Package sound plays beeps, tone sequences, WAV files and speech by
// spawning the system audio tools. Playback is asynchronous: every
// call returns a Handle the caller can wait on or stop.
package sound

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Default tool locations on the brick.
const (
	DefaultBeepPath   = "/usr/bin/beep"
	DefaultAplayPath  = "/usr/bin/aplay"
	DefaultEspeakPath = "/usr/bin/espeak"
)

// killTimeout bounds how long Stop waits after SIGTERM before SIGKILL.
const killTimeout = 2 * time.Second

// Logger is the logging surface the player uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Note is one element of a tone sequence: a frequency, how long to
// hold it and the gap before the next note, both in milliseconds.
type Note struct {
	Frequency float64
	Duration  int
	Delay     int
}

// Player spawns the audio tools. The zero value uses the default tool
// paths and logs nowhere.
type Player struct {
	BeepPath   string
	AplayPath  string
	EspeakPath string

	log Logger
}

// NewPlayer returns a Player with the default tool paths.
func NewPlayer() *Player {
	return &Player{
		BeepPath:   DefaultBeepPath,
		AplayPath:  DefaultAplayPath,
		EspeakPath: DefaultEspeakPath,
		log:        noopLogger{},
	}
}

// SetLogger routes spawn and exit logging.
func (p *Player) SetLogger(log Logger) {
	if log != nil {
		p.log = log
	}
}

func (p *Player) logger() Logger {
	if p.log == nil {
		return noopLogger{}
	}
	return p.log
}

func (p *Player) beepPath() string {
	if p.BeepPath != "" {
		return p.BeepPath
	}
	return DefaultBeepPath
}

func (p *Player) aplayPath() string {
	if p.AplayPath != "" {
		return p.AplayPath
	}
	return DefaultAplayPath
}

func (p *Player) espeakPath() string {
	if p.EspeakPath != "" {
		return p.EspeakPath
	}
	return DefaultEspeakPath
}

// Handle tracks one spawned playback. It owns the process group, so
// Stop also reaches children of piped commands.
type Handle struct {
	cmds []*exec.Cmd
	pid  int

	done chan struct{}

	mu  sync.Mutex
	err error
}

// Wait blocks until playback finishes or ctx is cancelled. On
// cancellation the playback keeps running; use Stop to end it.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop terminates the playback process group and waits for it to exit.
func (h *Handle) Stop() {
	select {
	case <-h.done:
		return
	default:
	}
	// Negative pid signals the whole group.
	if err := syscall.Kill(-h.pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = syscall.Kill(-h.pid, syscall.SIGKILL)
	}
	select {
	case <-h.done:
	case <-time.After(killTimeout):
		_ = syscall.Kill(-h.pid, syscall.SIGKILL)
		<-h.done
	}
}

// spawn starts the given pipeline (one or two commands) in a fresh
// process group and reaps it in the background.
func (p *Player) spawn(cmds ...*exec.Cmd) (*Handle, error) {
	for _, c := range cmds {
		c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	for i, c := range cmds {
		if err := c.Start(); err != nil {
			for _, started := range cmds[:i] {
				_ = started.Process.Kill()
				_ = started.Wait()
			}
			return nil, fmt.Errorf("starting %s: %w", c.Path, err)
		}
	}

	h := &Handle{
		cmds: cmds,
		pid:  cmds[0].Process.Pid,
		done: make(chan struct{}),
	}
	log := p.logger()
	log.Debug("playback started", "command", cmds[0].Path, "pid", h.pid)

	go func() {
		defer close(h.done)
		var firstErr error
		for _, c := range cmds {
			if err := c.Wait(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			log.Warn("playback exited with error", "command", cmds[0].Path, "error", firstErr)
		}
		h.mu.Lock()
		h.err = firstErr
		h.mu.Unlock()
	}()
	return h, nil
}

// Beep invokes the beep tool with raw arguments.
func (p *Player) Beep(ctx context.Context, args ...string) (*Handle, error) {
	return p.spawn(exec.CommandContext(ctx, p.beepPath(), args...))
}

// Tone plays a single tone of the given frequency for the given
// duration in milliseconds.
func (p *Player) Tone(ctx context.Context, frequency float64, durationMS int) (*Handle, error) {
	return p.ToneSequence(ctx, []Note{{Frequency: frequency, Duration: durationMS}})
}

// ToneSequence plays the notes back to back as one beep invocation.
func (p *Player) ToneSequence(ctx context.Context, notes []Note) (*Handle, error) {
	if len(notes) == 0 {
		return nil, errors.New("sound: empty tone sequence")
	}
	var args []string
	for i, n := range notes {
		if i > 0 {
			args = append(args, "-n")
		}
		args = append(args, "-f", strconv.FormatFloat(n.Frequency, 'f', -1, 64))
		if n.Duration > 0 {
			args = append(args, "-l", strconv.Itoa(n.Duration))
		}
		if n.Delay > 0 {
			args = append(args, "-D", strconv.Itoa(n.Delay))
		}
	}
	return p.Beep(ctx, args...)
}

// Play plays a WAV file. LEGO RSF sound files work as well.
func (p *Player) Play(ctx context.Context, wavFile string) (*Handle, error) {
	return p.spawn(exec.CommandContext(ctx, p.aplayPath(), "-q", wavFile))
}

// Speak converts the text to speech and plays it, piping the speech
// synthesizer into the audio player.
func (p *Player) Speak(ctx context.Context, text string) (*Handle, error) {
	espeak := exec.CommandContext(ctx, p.espeakPath(), "-a", "200", "--stdout", text)
	aplay := exec.CommandContext(ctx, p.aplayPath(), "-q")

	pipe, err := espeak.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating speech pipe: %w", err)
	}
	aplay.Stdin = pipe

	return p.spawn(espeak, aplay)
}

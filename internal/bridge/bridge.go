package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openbrick/brickd/internal/infrastructure/mqtt"
	"github.com/openbrick/brickd/internal/pilot"
	"github.com/openbrick/brickd/internal/sound"
	"github.com/openbrick/brickd/internal/telemetry"
)

// Bridge routes MQTT command messages to the robot and publishes
// motion and button events back. It owns the single active motion: a
// new pilot command preempts whatever is running, and the preempted
// motion is reported as cancelled.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	robotID string
	qos     byte
	topics  mqtt.Topics

	mqtt    MQTTClient
	pilot   Pilot
	sound   SoundPlayer      // optional
	leds    LedPanel         // optional
	history HistoryRecorder  // optional

	// Single active motion
	motionMu sync.Mutex
	active   *motionTask

	// Single active playback
	soundMu     sync.Mutex
	activeSound *sound.Handle

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the broker surface the bridge needs. Satisfied by
// *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Pilot is the drive surface the bridge needs. Satisfied by
// *pilot.Differential.
type Pilot interface {
	Travel(distance, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error)
	Rotate(angle, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error)
	Arc(radius, angle, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error)
	TravelArc(radius, distance, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error)
	Drive(speed float64) error
	Forward(speed float64) error
	Backward(speed float64) error
	Steer(turnRate, speed float64) error
	RotateForever(speed float64) error
	Stop(stopCommand string) error
}

// SoundPlayer is the playback surface the bridge needs. Satisfied by
// *sound.Player.
type SoundPlayer interface {
	Beep(ctx context.Context, args ...string) (*sound.Handle, error)
	Tone(ctx context.Context, frequency float64, durationMS int) (*sound.Handle, error)
	Speak(ctx context.Context, text string) (*sound.Handle, error)
	Play(ctx context.Context, wavFile string) (*sound.Handle, error)
}

// LedPanel is the status light surface the bridge needs. Satisfied by
// *led.Panel.
type LedPanel interface {
	MixColors(red, green float64) error
}

// HistoryRecorder persists terminal motion outcomes. Satisfied by
// *telemetry.History.
type HistoryRecorder interface {
	Insert(ctx context.Context, rec telemetry.MotionRecord) error
}

// Logger is optional structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// RobotID scopes the command and event topics.
	RobotID string

	// QoS applies to every subscription and publication.
	QoS byte

	// MQTTClient is required.
	MQTTClient MQTTClient

	// Pilot is required.
	Pilot Pilot

	// Sound is optional. If nil, sound commands are rejected.
	Sound SoundPlayer

	// Leds is optional. If nil, led commands are rejected.
	Leds LedPanel

	// History is optional. If nil, motion outcomes are not persisted.
	History HistoryRecorder

	// Logger is optional.
	Logger Logger
}

// motionTask tracks one motion from command to terminal state. The
// monitor is nil for continuous motions (drive, steer and friends),
// which only end by preemption or an explicit stop. finishOnce
// guarantees exactly one terminal event and history row per task.
type motionTask struct {
	id         string
	kind       string
	cmd        PilotCommand
	started    time.Time
	monitor    pilot.Monitor
	finishOnce sync.Once
}

// New creates a bridge. Call Start to subscribe to command topics.
func New(opts Options) (*Bridge, error) {
	if opts.RobotID == "" {
		return nil, fmt.Errorf("robot ID is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Pilot == nil {
		return nil, fmt.Errorf("pilot is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	return &Bridge{
		robotID:   opts.RobotID,
		qos:       opts.QoS,
		topics:    mqtt.Topics{Robot: opts.RobotID},
		mqtt:      opts.MQTTClient,
		pilot:     opts.Pilot,
		sound:     opts.Sound,
		leds:      opts.Leds,
		history:   opts.History,
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}, nil
}

// Start subscribes to the robot's command topics.
func (b *Bridge) Start(ctx context.Context) error {
	pilotTopic := b.topics.AllPilotCommands()
	if err := b.mqtt.Subscribe(pilotTopic, b.qos, b.handlePilotMessage); err != nil {
		return fmt.Errorf("subscribing to pilot commands: %w", err)
	}
	b.logInfo("subscribed to pilot commands", "topic", pilotTopic)

	if b.sound != nil {
		soundTopic := b.topics.AllSoundCommands()
		if err := b.mqtt.Subscribe(soundTopic, b.qos, b.handleSoundMessage); err != nil {
			return fmt.Errorf("subscribing to sound commands: %w", err)
		}
		b.logInfo("subscribed to sound commands", "topic", soundTopic)
	}

	if b.leds != nil {
		ledTopic := b.topics.LedCommand()
		if err := b.mqtt.Subscribe(ledTopic, b.qos, b.handleLedMessage); err != nil {
			return fmt.Errorf("subscribing to led commands: %w", err)
		}
		b.logInfo("subscribed to led commands", "topic", ledTopic)
	}

	b.logInfo("bridge started", "robot_id", b.robotID)
	return nil
}

// Stop cancels the active motion and playback and halts the motors.
// Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.motionMu.Lock()
		b.preemptLocked()
		b.motionMu.Unlock()

		if err := b.pilot.Stop(""); err != nil {
			b.logError("stopping motors on shutdown", err)
		}

		b.soundMu.Lock()
		if b.activeSound != nil {
			b.activeSound.Stop()
			b.activeSound = nil
		}
		b.soundMu.Unlock()

		b.ctxCancel()
		b.logInfo("bridge stopped")
	})
}

// HandleButtonChange publishes a button event. Wire it to the button
// scanner's change handler.
func (b *Bridge) HandleButtonChange(name string, pressed bool) {
	event := ButtonEvent{
		Name:      name,
		Pressed:   pressed,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logError("marshalling button event", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.ButtonEvent(name), data, b.qos, false); err != nil {
		b.logError("publishing button event", err)
	}
}

// handlePilotMessage dispatches one pilot command. The action is the
// trailing topic segment.
func (b *Bridge) handlePilotMessage(topic string, payload []byte) error {
	action := topicAction(topic)

	var cmd PilotCommand
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.publishRejected("", action, err)
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}

	b.logDebug("pilot command", "action", action, "id", cmd.ID)

	switch action {
	case ActionTravel:
		return b.startMonitored(cmd, action, func(cb *pilot.Callbacks) (pilot.Monitor, error) {
			return b.pilot.Travel(cmd.Distance, cmd.Speed, cb)
		})
	case ActionRotate:
		return b.startMonitored(cmd, action, func(cb *pilot.Callbacks) (pilot.Monitor, error) {
			return b.pilot.Rotate(cmd.Angle, cmd.Speed, cb)
		})
	case ActionArc:
		return b.startMonitored(cmd, action, func(cb *pilot.Callbacks) (pilot.Monitor, error) {
			return b.pilot.Arc(cmd.Radius, cmd.Angle, cmd.Speed, cb)
		})
	case ActionTravelArc:
		return b.startMonitored(cmd, action, func(cb *pilot.Callbacks) (pilot.Monitor, error) {
			return b.pilot.TravelArc(cmd.Radius, cmd.Distance, cmd.Speed, cb)
		})
	case ActionDrive:
		return b.startContinuous(cmd, action, func() error { return b.pilot.Drive(cmd.Speed) })
	case ActionForward:
		return b.startContinuous(cmd, action, func() error { return b.pilot.Forward(cmd.Speed) })
	case ActionBackward:
		return b.startContinuous(cmd, action, func() error { return b.pilot.Backward(cmd.Speed) })
	case ActionSteer:
		return b.startContinuous(cmd, action, func() error { return b.pilot.Steer(cmd.TurnRate, cmd.Speed) })
	case ActionRotateForever:
		return b.startContinuous(cmd, action, func() error { return b.pilot.RotateForever(cmd.Speed) })
	case ActionStop:
		return b.stopMotion(cmd)
	default:
		b.publishRejected(cmd.ID, action, ErrUnknownAction)
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// startMonitored begins a bounded motion. The previous motion, if any,
// is cancelled first. A motion that settles before its first poll (a
// zero-distance travel) is reported started and completed back to
// back.
func (b *Bridge) startMonitored(cmd PilotCommand, kind string, begin func(cb *pilot.Callbacks) (pilot.Monitor, error)) error {
	b.motionMu.Lock()
	defer b.motionMu.Unlock()
	b.preemptLocked()

	task := &motionTask{id: cmd.ID, kind: kind, cmd: cmd, started: time.Now().UTC()}
	cb := &pilot.Callbacks{
		OnComplete: func() { b.finishTask(task, MotionCompleted) },
		OnStalled:  func() { b.finishTask(task, MotionStalled) },
	}

	mon, err := begin(cb)
	if err != nil {
		b.publishRejected(cmd.ID, kind, err)
		return fmt.Errorf("starting %s: %w", kind, err)
	}
	task.monitor = mon

	b.publishMotionEvent(cmd.ID, kind, MotionStarted, "")
	if !mon.Running() {
		b.finishTask(task, MotionCompleted)
		return nil
	}
	b.active = task
	return nil
}

// startContinuous begins an unbounded motion. It only ends by
// preemption, an explicit stop, or shutdown.
func (b *Bridge) startContinuous(cmd PilotCommand, kind string, begin func() error) error {
	b.motionMu.Lock()
	defer b.motionMu.Unlock()
	b.preemptLocked()

	if err := begin(); err != nil {
		b.publishRejected(cmd.ID, kind, err)
		return fmt.Errorf("starting %s: %w", kind, err)
	}
	b.active = &motionTask{id: cmd.ID, kind: kind, cmd: cmd, started: time.Now().UTC()}
	b.publishMotionEvent(cmd.ID, kind, MotionStarted, "")
	return nil
}

func (b *Bridge) stopMotion(cmd PilotCommand) error {
	b.motionMu.Lock()
	defer b.motionMu.Unlock()
	b.preemptLocked()

	if err := b.pilot.Stop(cmd.StopCommand); err != nil {
		b.publishRejected(cmd.ID, ActionStop, err)
		return fmt.Errorf("stopping motors: %w", err)
	}
	return nil
}

// preemptLocked cancels the active motion. Caller holds motionMu.
// Monitor callbacks never take motionMu, so joining the monitor task
// here cannot deadlock.
func (b *Bridge) preemptLocked() {
	task := b.active
	if task == nil {
		return
	}
	b.active = nil
	if task.monitor != nil {
		task.monitor.Stop()
	}
	b.finishTask(task, MotionCancelled)
}

// finishTask reports a motion's terminal state exactly once, on
// whichever path gets there first.
func (b *Bridge) finishTask(task *motionTask, outcome string) {
	task.finishOnce.Do(func() {
		b.publishMotionEvent(task.id, task.kind, outcome, "")

		if b.history == nil {
			return
		}
		rec := telemetry.MotionRecord{
			RobotID:    b.robotID,
			Kind:       task.kind,
			Speed:      task.cmd.Speed,
			Outcome:    outcome,
			StartedAt:  task.started,
			FinishedAt: time.Now().UTC(),
		}
		switch task.kind {
		case ActionTravel:
			rec.Distance = &task.cmd.Distance
		case ActionRotate:
			rec.Angle = &task.cmd.Angle
		case ActionArc:
			rec.Radius = &task.cmd.Radius
			rec.Angle = &task.cmd.Angle
		case ActionTravelArc:
			rec.Radius = &task.cmd.Radius
			rec.Distance = &task.cmd.Distance
		}
		if err := b.history.Insert(b.ctx, rec); err != nil {
			b.logError("recording motion history", err)
		}
	})
}

// handleSoundMessage dispatches one sound command. A new playback
// stops the previous one first.
func (b *Bridge) handleSoundMessage(topic string, payload []byte) error {
	if b.sound == nil {
		return ErrSoundUnavailable
	}
	action := topicAction(topic)

	var cmd SoundCommand
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}

	b.soundMu.Lock()
	defer b.soundMu.Unlock()
	if b.activeSound != nil {
		b.activeSound.Stop()
		b.activeSound = nil
	}

	var handle *sound.Handle
	var err error
	switch action {
	case SoundBeep:
		handle, err = b.sound.Beep(b.ctx)
	case SoundTone:
		if cmd.Frequency <= 0 || cmd.DurationMS <= 0 {
			return fmt.Errorf("%w: tone needs frequency and duration_ms", ErrBadPayload)
		}
		handle, err = b.sound.Tone(b.ctx, cmd.Frequency, cmd.DurationMS)
	case SoundSpeak:
		if cmd.Text == "" {
			return fmt.Errorf("%w: speak needs text", ErrBadPayload)
		}
		handle, err = b.sound.Speak(b.ctx, cmd.Text)
	case SoundPlay:
		if cmd.File == "" {
			return fmt.Errorf("%w: play needs file", ErrBadPayload)
		}
		handle, err = b.sound.Play(b.ctx, cmd.File)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return fmt.Errorf("starting %s: %w", action, err)
	}
	b.activeSound = handle
	b.logDebug("playback started", "action", action)
	return nil
}

// handleLedMessage applies one led command to the panel.
func (b *Bridge) handleLedMessage(_ string, payload []byte) error {
	if b.leds == nil {
		return ErrLedUnavailable
	}

	var cmd LedCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	red, green, ok := colorMix(cmd.Color)
	if !ok {
		return fmt.Errorf("%w: unknown color %q", ErrBadPayload, cmd.Color)
	}
	brightness := cmd.Brightness
	if brightness == 0 {
		brightness = 1
	}
	if err := b.leds.MixColors(red*brightness, green*brightness); err != nil {
		return fmt.Errorf("setting leds: %w", err)
	}
	return nil
}

// colorMix maps a color name to red and green channel fractions.
func colorMix(color string) (red, green float64, ok bool) {
	switch color {
	case "red":
		return 1, 0, true
	case "green":
		return 0, 1, true
	case "amber":
		return 1, 1, true
	case "orange":
		return 1, 0.5, true
	case "yellow":
		return 0.5, 1, true
	case "off":
		return 0, 0, true
	default:
		return 0, 0, false
	}
}

func (b *Bridge) publishMotionEvent(id, kind, state, errMsg string) {
	event := MotionEvent{
		ID:        id,
		Kind:      kind,
		State:     state,
		Error:     errMsg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logError("marshalling motion event", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.MotionEvent(), data, b.qos, false); err != nil {
		b.logError("publishing motion event", err)
	}
}

func (b *Bridge) publishRejected(id, kind string, cause error) {
	b.publishMotionEvent(id, kind, MotionRejected, cause.Error())
}

// topicAction returns the trailing topic segment.
func topicAction(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// SetLogger sets the logger. Safe to call at any time.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	defer b.loggerMu.Unlock()
	b.logger = logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}

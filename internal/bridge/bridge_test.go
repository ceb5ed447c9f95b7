package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openbrick/brickd/internal/infrastructure/mqtt"
	"github.com/openbrick/brickd/internal/pilot"
	"github.com/openbrick/brickd/internal/sound"
	"github.com/openbrick/brickd/internal/telemetry"
)

type publishedMsg struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu         sync.Mutex
	published  []publishedMsg
	subscribed []string
	publishErr error
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic, payload})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeMQTT) IsConnected() bool { return true }

// motionStates returns the states of all motion events published so
// far, in order.
func (f *fakeMQTT) motionStates(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var states []string
	for _, msg := range f.published {
		if !strings.HasSuffix(msg.topic, "/event/motion") {
			continue
		}
		var event MotionEvent
		if err := json.Unmarshal(msg.payload, &event); err != nil {
			t.Fatalf("unmarshalling motion event: %v", err)
		}
		states = append(states, event.State)
	}
	return states
}

type fakeMonitor struct {
	mu      sync.Mutex
	running bool
	stopped bool
}

func (m *fakeMonitor) Wait(time.Duration) pilot.State { return pilot.StateCompleted }

func (m *fakeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.running = false
}

func (m *fakeMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *fakeMonitor) Stalled() bool      { return false }
func (m *fakeMonitor) State() pilot.State { return pilot.StateRunning }

func (m *fakeMonitor) wasStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type fakePilot struct {
	mu           sync.Mutex
	calls        []string
	lastCallback *pilot.Callbacks
	lastMonitor  *fakeMonitor
	monitorIdle  bool // hand out already-settled monitors
	err          error
	stopCommands []string
}

func (p *fakePilot) begin(call string, cb *pilot.Callbacks) (pilot.Monitor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if p.err != nil {
		return nil, p.err
	}
	p.lastCallback = cb
	p.lastMonitor = &fakeMonitor{running: !p.monitorIdle}
	return p.lastMonitor, nil
}

func (p *fakePilot) beginContinuous(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePilot) Travel(distance, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error) {
	return p.begin(fmt.Sprintf("travel(%v,%v)", distance, speed), cb)
}

func (p *fakePilot) Rotate(angle, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error) {
	return p.begin(fmt.Sprintf("rotate(%v,%v)", angle, speed), cb)
}

func (p *fakePilot) Arc(radius, angle, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error) {
	return p.begin(fmt.Sprintf("arc(%v,%v,%v)", radius, angle, speed), cb)
}

func (p *fakePilot) TravelArc(radius, distance, speed float64, cb *pilot.Callbacks) (pilot.Monitor, error) {
	return p.begin(fmt.Sprintf("travel_arc(%v,%v,%v)", radius, distance, speed), cb)
}

func (p *fakePilot) Drive(speed float64) error { return p.beginContinuous(fmt.Sprintf("drive(%v)", speed)) }

func (p *fakePilot) Forward(speed float64) error {
	return p.beginContinuous(fmt.Sprintf("forward(%v)", speed))
}

func (p *fakePilot) Backward(speed float64) error {
	return p.beginContinuous(fmt.Sprintf("backward(%v)", speed))
}

func (p *fakePilot) Steer(turnRate, speed float64) error {
	return p.beginContinuous(fmt.Sprintf("steer(%v,%v)", turnRate, speed))
}

func (p *fakePilot) RotateForever(speed float64) error {
	return p.beginContinuous(fmt.Sprintf("rotate_forever(%v)", speed))
}

func (p *fakePilot) Stop(stopCommand string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCommands = append(p.stopCommands, stopCommand)
	return nil
}

func (p *fakePilot) callList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePilot) callback() *pilot.Callbacks {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCallback
}

func (p *fakePilot) monitor() *fakeMonitor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMonitor
}

type fakeSound struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSound) record(call string) (*sound.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil, f.err
}

func (f *fakeSound) Beep(_ context.Context, _ ...string) (*sound.Handle, error) {
	return f.record("beep")
}

func (f *fakeSound) Tone(_ context.Context, frequency float64, durationMS int) (*sound.Handle, error) {
	return f.record(fmt.Sprintf("tone(%v,%d)", frequency, durationMS))
}

func (f *fakeSound) Speak(_ context.Context, text string) (*sound.Handle, error) {
	return f.record("speak(" + text + ")")
}

func (f *fakeSound) Play(_ context.Context, wavFile string) (*sound.Handle, error) {
	return f.record("play(" + wavFile + ")")
}

func (f *fakeSound) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeLeds struct {
	mu         sync.Mutex
	red, green float64
	calls      int
}

func (f *fakeLeds) MixColors(red, green float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.red, f.green = red, green
	f.calls++
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []telemetry.MotionRecord
}

func (f *fakeHistory) Insert(_ context.Context, rec telemetry.MotionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) recorded() []telemetry.MotionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telemetry.MotionRecord(nil), f.records...)
}

func newTestBridge(t *testing.T, opts Options) (*Bridge, *fakeMQTT, *fakePilot) {
	t.Helper()
	client := &fakeMQTT{}
	p := &fakePilot{}
	opts.RobotID = "brick-001"
	opts.QoS = 1
	opts.MQTTClient = client
	opts.Pilot = p
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b, client, p
}

func TestNew_Validation(t *testing.T) {
	client := &fakeMQTT{}
	p := &fakePilot{}

	if _, err := New(Options{MQTTClient: client, Pilot: p}); err == nil {
		t.Error("expected error for missing robot ID")
	}
	if _, err := New(Options{RobotID: "brick-001", Pilot: p}); err == nil {
		t.Error("expected error for missing MQTT client")
	}
	if _, err := New(Options{RobotID: "brick-001", MQTTClient: client}); err == nil {
		t.Error("expected error for missing pilot")
	}
}

func TestStart_SubscribesPilotOnly(t *testing.T) {
	b, client, _ := newTestBridge(t, Options{})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := []string{"brickd/brick-001/command/pilot/+"}
	if len(client.subscribed) != 1 || client.subscribed[0] != want[0] {
		t.Errorf("subscribed = %v, want %v", client.subscribed, want)
	}
}

func TestStart_SubscribesAllSurfaces(t *testing.T) {
	b, client, _ := newTestBridge(t, Options{Sound: &fakeSound{}, Leds: &fakeLeds{}})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(client.subscribed) != 3 {
		t.Fatalf("subscribed to %d topics, want 3: %v", len(client.subscribed), client.subscribed)
	}
	want := map[string]bool{
		"brickd/brick-001/command/pilot/+": true,
		"brickd/brick-001/command/sound/+": true,
		"brickd/brick-001/command/led":     true,
	}
	for _, topic := range client.subscribed {
		if !want[topic] {
			t.Errorf("unexpected subscription %q", topic)
		}
	}
}

func TestTravel_StartsAndCompletes(t *testing.T) {
	history := &fakeHistory{}
	b, client, p := newTestBridge(t, Options{History: history})

	payload := []byte(`{"id":"m1","distance":250,"speed":150}`)
	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", payload); err != nil {
		t.Fatalf("handlePilotMessage() error = %v", err)
	}

	calls := p.callList()
	if len(calls) != 1 || calls[0] != "travel(250,150)" {
		t.Fatalf("pilot calls = %v, want [travel(250,150)]", calls)
	}
	if got := client.motionStates(t); len(got) != 1 || got[0] != MotionStarted {
		t.Fatalf("motion states = %v, want [started]", got)
	}

	// Simulate the monitor reaching its target.
	p.monitor().Stop()
	p.callback().OnComplete()

	if got := client.motionStates(t); len(got) != 2 || got[1] != MotionCompleted {
		t.Fatalf("motion states = %v, want [started completed]", got)
	}

	records := history.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d motions, want 1", len(records))
	}
	rec := records[0]
	if rec.RobotID != "brick-001" || rec.Kind != "travel" || rec.Outcome != "completed" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Distance == nil || *rec.Distance != 250 {
		t.Errorf("Distance = %v, want 250", rec.Distance)
	}
	if rec.Angle != nil {
		t.Errorf("Angle = %v, want nil", rec.Angle)
	}
}

func TestRotate_StallReported(t *testing.T) {
	history := &fakeHistory{}
	b, client, p := newTestBridge(t, Options{History: history})

	payload := []byte(`{"angle":90,"speed":45}`)
	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/rotate", payload); err != nil {
		t.Fatalf("handlePilotMessage() error = %v", err)
	}

	p.monitor().Stop()
	p.callback().OnStalled()

	if got := client.motionStates(t); len(got) != 2 || got[1] != MotionStalled {
		t.Fatalf("motion states = %v, want [started stalled]", got)
	}
	records := history.recorded()
	if len(records) != 1 || records[0].Outcome != "stalled" {
		t.Fatalf("records = %+v, want one stalled rotate", records)
	}
	if records[0].Angle == nil || *records[0].Angle != 90 {
		t.Errorf("Angle = %v, want 90", records[0].Angle)
	}
}

func TestNewCommand_PreemptsActive(t *testing.T) {
	history := &fakeHistory{}
	b, client, p := newTestBridge(t, Options{History: history})

	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", []byte(`{"distance":500}`)); err != nil {
		t.Fatalf("travel error = %v", err)
	}
	first := p.monitor()

	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/rotate", []byte(`{"angle":180}`)); err != nil {
		t.Fatalf("rotate error = %v", err)
	}

	if !first.wasStopped() {
		t.Error("first monitor was not stopped on preemption")
	}
	want := []string{MotionStarted, MotionCancelled, MotionStarted}
	if got := client.motionStates(t); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("motion states = %v, want %v", got, want)
	}
	records := history.recorded()
	if len(records) != 1 || records[0].Kind != "travel" || records[0].Outcome != "cancelled" {
		t.Errorf("records = %+v, want one cancelled travel", records)
	}
}

func TestStop_CancelsContinuousMotion(t *testing.T) {
	history := &fakeHistory{}
	b, client, p := newTestBridge(t, Options{History: history})

	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/drive", []byte(`{"speed":100}`)); err != nil {
		t.Fatalf("drive error = %v", err)
	}
	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/stop", []byte(`{"stop_command":"brake"}`)); err != nil {
		t.Fatalf("stop error = %v", err)
	}

	p.mu.Lock()
	stops := append([]string(nil), p.stopCommands...)
	p.mu.Unlock()
	if len(stops) != 1 || stops[0] != "brake" {
		t.Errorf("stop commands = %v, want [brake]", stops)
	}

	want := []string{MotionStarted, MotionCancelled}
	if got := client.motionStates(t); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("motion states = %v, want %v", got, want)
	}
	records := history.recorded()
	if len(records) != 1 || records[0].Kind != "drive" || records[0].Outcome != "cancelled" {
		t.Errorf("records = %+v, want one cancelled drive", records)
	}
}

func TestSettledMonitor_CompletesImmediately(t *testing.T) {
	b, client, p := newTestBridge(t, Options{})
	p.monitorIdle = true

	// Zero distance rounds to zero pulses; the pilot hands back an
	// already settled monitor.
	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", []byte(`{"distance":0}`)); err != nil {
		t.Fatalf("handlePilotMessage() error = %v", err)
	}

	want := []string{MotionStarted, MotionCompleted}
	if got := client.motionStates(t); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("motion states = %v, want %v", got, want)
	}
}

func TestUnknownAction_Rejected(t *testing.T) {
	b, client, _ := newTestBridge(t, Options{})

	err := b.handlePilotMessage("brickd/brick-001/command/pilot/teleport", nil)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("error = %v, want ErrUnknownAction", err)
	}
	if got := client.motionStates(t); len(got) != 1 || got[0] != MotionRejected {
		t.Errorf("motion states = %v, want [rejected]", got)
	}
}

func TestBadPayload_Rejected(t *testing.T) {
	b, _, p := newTestBridge(t, Options{})

	err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", []byte(`{"distance":`))
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("error = %v, want ErrBadPayload", err)
	}
	if calls := p.callList(); len(calls) != 0 {
		t.Errorf("pilot was called on bad payload: %v", calls)
	}
}

func TestPilotError_Rejected(t *testing.T) {
	b, client, p := newTestBridge(t, Options{})
	p.err = errors.New("device gone")

	err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", []byte(`{"distance":100}`))
	if err == nil {
		t.Fatal("expected error from failing pilot")
	}
	if got := client.motionStates(t); len(got) != 1 || got[0] != MotionRejected {
		t.Errorf("motion states = %v, want [rejected]", got)
	}
}

func TestSoundCommands(t *testing.T) {
	player := &fakeSound{}
	b, _, _ := newTestBridge(t, Options{Sound: player})

	tests := []struct {
		name    string
		topic   string
		payload string
		want    string
		wantErr error
	}{
		{"beep", "brickd/brick-001/command/sound/beep", "", "beep", nil},
		{"tone", "brickd/brick-001/command/sound/tone", `{"frequency":440,"duration_ms":500}`, "tone(440,500)", nil},
		{"speak", "brickd/brick-001/command/sound/speak", `{"text":"hello"}`, "speak(hello)", nil},
		{"play", "brickd/brick-001/command/sound/play", `{"file":"/home/robot/hi.wav"}`, "play(/home/robot/hi.wav)", nil},
		{"tone missing frequency", "brickd/brick-001/command/sound/tone", `{"duration_ms":500}`, "", ErrBadPayload},
		{"speak missing text", "brickd/brick-001/command/sound/speak", `{}`, "", ErrBadPayload},
		{"unknown action", "brickd/brick-001/command/sound/yodel", "", "", ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(player.callList())
			err := b.handleSoundMessage(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("handleSoundMessage() error = %v", err)
			}
			calls := player.callList()
			if len(calls) != before+1 || calls[len(calls)-1] != tt.want {
				t.Errorf("player calls = %v, want last %q", calls, tt.want)
			}
		})
	}
}

func TestSound_Unconfigured(t *testing.T) {
	b, _, _ := newTestBridge(t, Options{})

	err := b.handleSoundMessage("brickd/brick-001/command/sound/beep", nil)
	if !errors.Is(err, ErrSoundUnavailable) {
		t.Errorf("error = %v, want ErrSoundUnavailable", err)
	}
}

func TestLedCommands(t *testing.T) {
	leds := &fakeLeds{}
	b, _, _ := newTestBridge(t, Options{Leds: leds})

	tests := []struct {
		name               string
		payload            string
		wantRed, wantGreen float64
	}{
		{"green full", `{"color":"green"}`, 0, 1},
		{"red dim", `{"color":"red","brightness":0.3}`, 0.3, 0},
		{"amber", `{"color":"amber","brightness":0.5}`, 0.5, 0.5},
		{"off", `{"color":"off"}`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.handleLedMessage("brickd/brick-001/command/led", []byte(tt.payload)); err != nil {
				t.Fatalf("handleLedMessage() error = %v", err)
			}
			leds.mu.Lock()
			red, green := leds.red, leds.green
			leds.mu.Unlock()
			if red != tt.wantRed || green != tt.wantGreen {
				t.Errorf("mix = (%v, %v), want (%v, %v)", red, green, tt.wantRed, tt.wantGreen)
			}
		})
	}

	if err := b.handleLedMessage("brickd/brick-001/command/led", []byte(`{"color":"ultraviolet"}`)); !errors.Is(err, ErrBadPayload) {
		t.Errorf("error = %v, want ErrBadPayload for unknown color", err)
	}
}

func TestHandleButtonChange(t *testing.T) {
	b, client, _ := newTestBridge(t, Options{})

	b.HandleButtonChange("enter", true)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "brickd/brick-001/event/button/enter" {
		t.Errorf("topic = %q", msg.topic)
	}
	var event ButtonEvent
	if err := json.Unmarshal(msg.payload, &event); err != nil {
		t.Fatalf("unmarshalling button event: %v", err)
	}
	if event.Name != "enter" || !event.Pressed {
		t.Errorf("event = %+v", event)
	}
	if event.Timestamp == "" {
		t.Error("missing timestamp")
	}
}

func TestStop_HaltsEverything(t *testing.T) {
	history := &fakeHistory{}
	b, client, p := newTestBridge(t, Options{History: history})

	if err := b.handlePilotMessage("brickd/brick-001/command/pilot/travel", []byte(`{"distance":500}`)); err != nil {
		t.Fatalf("travel error = %v", err)
	}

	b.Stop()
	b.Stop() // second call is a no-op

	if !p.monitor().wasStopped() {
		t.Error("monitor was not stopped on shutdown")
	}
	p.mu.Lock()
	stops := len(p.stopCommands)
	p.mu.Unlock()
	if stops != 1 {
		t.Errorf("pilot.Stop called %d times, want 1", stops)
	}
	if got := client.motionStates(t); len(got) != 2 || got[1] != MotionCancelled {
		t.Errorf("motion states = %v, want [started cancelled]", got)
	}
}

func TestTopicAction(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"brickd/brick-001/command/pilot/travel", "travel"},
		{"brickd/brick-001/command/led", "led"},
		{"noslash", "noslash"},
	}
	for _, tt := range tests {
		if got := topicAction(tt.topic); got != tt.want {
			t.Errorf("topicAction(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

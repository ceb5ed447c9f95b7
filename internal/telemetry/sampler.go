package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultSampleInterval is used when the configured interval is zero.
const defaultSampleInterval = 5 * time.Second

// PowerSource reads the battery supply.
type PowerSource interface {
	Volts() (float64, error)
	Amps() (float64, error)
}

// MotorReader reads one motor's live attributes.
type MotorReader interface {
	Position() (int, error)
	Speed() (int, error)
	DutyCycle() (int, error)
}

// SensorReader reads one sensor's current mode and primary value.
type SensorReader interface {
	Mode() (string, error)
	ScaledValue(n int) (float64, error)
}

// MetricsWriter receives sampled values. Writes must not block; the
// InfluxDB client batches internally and surfaces errors on its own
// channel.
type MetricsWriter interface {
	WriteBatteryMetric(robotID string, volts, amps float64)
	WriteMotorMetric(robotID, side string, position, speed, dutyCycle int)
	WriteSensorMetric(robotID, port, mode string, value float64)
}

// MultiWriter returns a MetricsWriter that forwards each sample to every
// writer in order. The daemon uses it to feed InfluxDB and the MQTT
// telemetry mirror from one sampler.
func MultiWriter(writers ...MetricsWriter) MetricsWriter {
	return multiWriter(writers)
}

type multiWriter []MetricsWriter

func (m multiWriter) WriteBatteryMetric(robotID string, volts, amps float64) {
	for _, w := range m {
		w.WriteBatteryMetric(robotID, volts, amps)
	}
}

func (m multiWriter) WriteMotorMetric(robotID, side string, position, speed, dutyCycle int) {
	for _, w := range m {
		w.WriteMotorMetric(robotID, side, position, speed, dutyCycle)
	}
}

func (m multiWriter) WriteSensorMetric(robotID, port, mode string, value float64) {
	for _, w := range m {
		w.WriteSensorMetric(robotID, port, mode, value)
	}
}

// Logger is the minimal logging surface the sampler needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// SamplerOptions holds configuration for creating a sampler.
type SamplerOptions struct {
	// RobotID tags every written metric.
	RobotID string

	// Power is the battery supply. May be nil; battery sampling is
	// then skipped.
	Power PowerSource

	// Motors maps a side label ("left", "right") to its motor.
	Motors map[string]MotorReader

	// Sensors maps an input port to its sensor.
	Sensors map[string]SensorReader

	// Metrics receives the sampled values.
	Metrics MetricsWriter

	// Interval between samples. Zero selects the default.
	Interval time.Duration

	// Logger is optional.
	Logger Logger
}

// Sampler polls the battery and motors on a fixed interval and hands
// each reading to a MetricsWriter. A failed read is logged and skipped;
// the next tick retries.
type Sampler struct {
	robotID  string
	power    PowerSource
	motors   map[string]MotorReader
	sensors  map[string]SensorReader
	metrics  MetricsWriter
	interval time.Duration
	log      Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSampler creates a sampler. Call Start to begin polling.
func NewSampler(opts SamplerOptions) (*Sampler, error) {
	if opts.RobotID == "" {
		return nil, fmt.Errorf("robot ID is required")
	}
	if opts.Metrics == nil {
		return nil, fmt.Errorf("metrics writer is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSampleInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Sampler{
		robotID:  opts.RobotID,
		power:    opts.Power,
		motors:   opts.Motors,
		sensors:  opts.Sensors,
		metrics:  opts.Metrics,
		interval: opts.Interval,
		log:      opts.Logger,
	}, nil
}

// Start launches the poll task. It samples once immediately so a
// short-lived process still produces data.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx, s.done)
	return nil
}

// Stop halts polling and joins the poll task. Safe to call more than
// once and before Start.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sampler) run(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ticker.C:
			s.sampleOnce()
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sampler) sampleOnce() {
	if s.power != nil {
		volts, err := s.power.Volts()
		if err != nil {
			s.log.Warn("reading battery voltage failed", "error", err)
		} else {
			// Current draw is absent on some supplies; report zero amps
			// rather than dropping the voltage sample.
			amps, err := s.power.Amps()
			if err != nil {
				s.log.Warn("reading battery current failed", "error", err)
				amps = 0
			}
			s.metrics.WriteBatteryMetric(s.robotID, volts, amps)
		}
	}

	for side, m := range s.motors {
		position, err := m.Position()
		if err != nil {
			s.log.Warn("reading motor position failed", "side", side, "error", err)
			continue
		}
		speed, err := m.Speed()
		if err != nil {
			s.log.Warn("reading motor speed failed", "side", side, "error", err)
			continue
		}
		duty, err := m.DutyCycle()
		if err != nil {
			s.log.Warn("reading motor duty cycle failed", "side", side, "error", err)
			continue
		}
		s.metrics.WriteMotorMetric(s.robotID, side, position, speed, duty)
	}

	for port, sensor := range s.sensors {
		mode, err := sensor.Mode()
		if err != nil {
			s.log.Warn("reading sensor mode failed", "port", port, "error", err)
			continue
		}
		value, err := sensor.ScaledValue(0)
		if err != nil {
			s.log.Warn("reading sensor value failed", "port", port, "error", err)
			continue
		}
		s.metrics.WriteSensorMetric(s.robotID, port, mode, value)
	}
}

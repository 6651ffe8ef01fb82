// Package monitor runs the frame loop: it reads the camera, feeds the
// detection cycle and the relay controller, and publishes annotated frames.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-roomwatch/internal/clock"
	"github.com/teslashibe/go-roomwatch/pkg/camera"
	"github.com/teslashibe/go-roomwatch/pkg/detection"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

// FrameSink receives every encoded frame, e.g. a websocket hub.
type FrameSink interface {
	BroadcastBinary(data []byte)
}

// Reopener is implemented by sources that can recover a lost device.
type Reopener interface {
	Reopen() error
}

// Options configures a Monitor. Source and Cycle may be nil: the loop then
// runs degraded, without frames or without detection.
type Options struct {
	Source camera.Source
	Cycle  *detection.Cycle
	Relay  *relay.Controller
	Frames *FrameBuffer
	Sink   FrameSink

	// Camera, if set, supplies the live JPEG quality so runtime updates
	// apply from the next frame. Quality is used otherwise.
	Camera *camera.Manager

	Quality       int           // JPEG quality, default 80
	RetryDelay    time.Duration // first backoff after a failed read, default 100ms
	MaxRetryDelay time.Duration // backoff cap, default 5s
	ReopenAfter   int           // consecutive failures before Reopen, default 20

	Clock  clock.Clock
	Logger *slog.Logger
}

// Health describes the frame loop for status endpoints.
type Health struct {
	CameraAvailable  bool                  `json:"camera_available"`
	DetectionEnabled bool                  `json:"detection_enabled"`
	Frames           uint64                `json:"frames"`
	ReadFailures     uint64                `json:"read_failures"`
	LastFrame        time.Time             `json:"last_frame"`
	Detection        *detection.CycleStats `json:"detection,omitempty"`
}

// Monitor is the frame loop.
type Monitor struct {
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	health Health
}

// New creates a monitor. Relay and Frames are required.
func New(opts Options) (*Monitor, error) {
	if opts.Relay == nil {
		return nil, fmt.Errorf("monitor: relay controller is required")
	}
	if opts.Frames == nil {
		return nil, fmt.Errorf("monitor: frame buffer is required")
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.MaxRetryDelay < opts.RetryDelay {
		opts.MaxRetryDelay = 5 * time.Second
	}
	if opts.ReopenAfter <= 0 {
		opts.ReopenAfter = 20
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Monitor{
		opts:   opts,
		logger: opts.Logger,
		health: Health{
			CameraAvailable:  opts.Source != nil,
			DetectionEnabled: opts.Cycle != nil,
		},
	}, nil
}

// Health returns a copy of the loop's health.
func (m *Monitor) Health() Health {
	m.mu.RLock()
	h := m.health
	m.mu.RUnlock()

	if m.opts.Cycle != nil {
		stats := m.opts.Cycle.Stats()
		h.Detection = &stats
	}
	return h
}

// Run reads frames until ctx is done. Without a source it only waits.
func (m *Monitor) Run(ctx context.Context) error {
	if m.opts.Source == nil {
		m.logger.Warn("no camera, frame loop idle")
		<-ctx.Done()
		return ctx.Err()
	}
	if m.opts.Cycle == nil {
		m.logger.Warn("detection disabled, streaming frames only")
	}

	frame := gocv.NewMat()
	defer frame.Close()

	delay := m.opts.RetryDelay
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !m.opts.Source.Read(&frame) || frame.Empty() {
			failures++
			m.readFailed(failures)
			if failures%m.opts.ReopenAfter == 0 {
				m.reopen()
			}
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, m.opts.MaxRetryDelay)
			continue
		}

		if failures > 0 {
			m.logger.Info("camera recovered", "failed_reads", failures)
			failures = 0
			delay = m.opts.RetryDelay
		}

		if err := m.process(frame); err != nil {
			m.logger.Warn("frame processing failed", "error", err)
		}
	}
}

func (m *Monitor) readFailed(consecutive int) {
	m.mu.Lock()
	m.health.ReadFailures++
	wasAvailable := m.health.CameraAvailable
	m.health.CameraAvailable = false
	m.mu.Unlock()

	if consecutive == 1 && wasAvailable {
		m.logger.Warn("camera read failed, device lost")
	}
}

func (m *Monitor) reopen() {
	r, ok := m.opts.Source.(Reopener)
	if !ok {
		return
	}
	if err := r.Reopen(); err != nil {
		m.logger.Debug("camera reopen failed", "error", err)
		return
	}
	m.logger.Info("camera reopened")
}

// process runs one frame through detection, the relay and the encoder.
func (m *Monitor) process(frame gocv.Mat) error {
	var snap detection.Snapshot
	if m.opts.Cycle != nil {
		s, ran := m.opts.Cycle.Evaluate(frame)
		if ran {
			m.opts.Relay.Apply(relay.Reading{Detected: s.Detected, Confidence: s.MaxConfidence, Took: s.Took})
		}
		snap = s
	}
	st := m.opts.Relay.Status()

	display := frame.Clone()
	defer display.Close()
	if err := Annotate(&display, snap, st); err != nil {
		return err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, display, []int{gocv.IMWriteJpegQuality, m.quality()})
	if err != nil {
		return fmt.Errorf("monitor: encode jpeg: %w", err)
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	now := m.opts.Clock.Now()
	m.opts.Frames.Publish(data, now)
	if m.opts.Sink != nil {
		m.opts.Sink.BroadcastBinary(data)
	}

	m.mu.Lock()
	m.health.CameraAvailable = true
	m.health.Frames++
	m.health.LastFrame = now
	m.mu.Unlock()
	return nil
}

func (m *Monitor) quality() int {
	if m.opts.Camera != nil {
		if q := m.opts.Camera.GetConfig().Quality; q > 0 && q <= 100 {
			return q
		}
	}
	return m.opts.Quality
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

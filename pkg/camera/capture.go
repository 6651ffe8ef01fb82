package camera

import (
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// Source yields BGR frames.
type Source interface {
	// Read fills dst with the next frame and reports success.
	Read(dst *gocv.Mat) bool
	Close() error
}

// Capture is a Source backed by an OpenCV VideoCapture. Apply may be called
// from another goroutine while Read runs in the frame loop.
type Capture struct {
	logger *slog.Logger

	mu     sync.Mutex
	cfg    Config
	vc     *gocv.VideoCapture
	closed bool
}

// Open opens the device named in cfg and applies its settings.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	c := &Capture{cfg: cfg, logger: logger}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Capture) open() error {
	vc, err := gocv.OpenVideoCapture(c.cfg.deviceID())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, c.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, c.cfg.Device)
	}
	c.vc = vc
	c.set(c.cfg)
	c.logger.Info("camera opened",
		"device", c.cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS))
	return nil
}

// set pushes settings to the driver. Drivers silently ignore what they do
// not support. Callers hold mu.
func (c *Capture) set(cfg Config) {
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	c.vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	if cfg.BufferSize > 0 {
		c.vc.Set(gocv.VideoCaptureBufferSize, float64(cfg.BufferSize))
	}
	if cfg.Brightness != 0 {
		c.vc.Set(gocv.VideoCaptureBrightness, cfg.Brightness)
	}
	if cfg.Exposure != 0 {
		c.vc.Set(gocv.VideoCaptureExposure, cfg.Exposure)
	}
	if cfg.Gain != 0 {
		c.vc.Set(gocv.VideoCaptureGain, cfg.Gain)
	}
}

// Read implements Source.
func (c *Capture) Read(dst *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.vc == nil {
		return false
	}
	return c.vc.Read(dst)
}

// Apply switches to cfg. A device change reopens the capture; anything else
// is set on the running one.
func (c *Capture) Apply(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if cfg.Device != c.cfg.Device || c.vc == nil {
		prev := c.vc
		c.cfg = cfg
		if err := c.open(); err != nil {
			c.vc = prev
			return err
		}
		if prev != nil {
			prev.Close()
		}
		return nil
	}

	c.cfg = cfg
	c.set(cfg)
	return nil
}

// Reopen closes and reopens the current device, for recovering from a
// device that stopped delivering frames.
func (c *Capture) Reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.vc != nil {
		c.vc.Close()
		c.vc = nil
	}
	return c.open()
}

// Config returns the settings last applied.
func (c *Capture) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.vc == nil {
		return nil
	}
	return c.vc.Close()
}

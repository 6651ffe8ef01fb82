package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-roomwatch/internal/clock"
	"github.com/teslashibe/go-roomwatch/internal/config"
	"github.com/teslashibe/go-roomwatch/internal/log"
	"github.com/teslashibe/go-roomwatch/pkg/camera"
	"github.com/teslashibe/go-roomwatch/pkg/detection"
	"github.com/teslashibe/go-roomwatch/pkg/events"
	"github.com/teslashibe/go-roomwatch/pkg/hub"
	"github.com/teslashibe/go-roomwatch/pkg/monitor"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
	"github.com/teslashibe/go-roomwatch/pkg/web"
)

const (
	// tickInterval drives timer decay when no frames arrive.
	tickInterval = 500 * time.Millisecond
	// reconcileInterval re-sends the relay state to the hardware.
	reconcileInterval = 5 * time.Second
)

// app owns every long-running component.
type app struct {
	logger *slog.Logger

	capture   *camera.Capture
	relay     *relay.Controller
	actuator  *relay.Actuator
	forwarder *events.Forwarder
	monitor   *monitor.Monitor
	server    *web.Server
}

// newApp wires the components. Missing model files, a missing camera or a
// missing relay port degrade the app instead of failing it.
func newApp(cfg config.Config, addr string) (*app, error) {
	a := &app{logger: log.Component("app")}
	if addr == "" {
		addr = cfg.Addr()
	}

	detCfg := detection.DefaultConfig()
	detCfg.ModelPath = cfg.ModelPath
	detCfg.ScalerPath = cfg.ScalerPath
	detCfg.ProbThreshold = cfg.ProbThreshold
	detCfg.DarkThreshold = cfg.DarkThreshold
	detCfg.Interval = cfg.DetectionInterval
	if err := detCfg.Validate(); err != nil {
		return nil, err
	}

	var cycle *detection.Cycle
	classifier, err := detection.LoadClassifier(detCfg.ScalerPath, detCfg.ModelPath)
	if err != nil {
		a.logger.Warn("model not loaded, detection disabled", "error", err)
	} else {
		cycle = detection.NewCycle(detCfg, classifier, clock.Real{}, log.Component("detection"))
	}

	camCfg := camera.DefaultConfig()
	if cfg.CameraPreset != "" {
		preset := camera.GetPreset(cfg.CameraPreset)
		if preset == nil {
			return nil, fmt.Errorf("unknown camera preset %q (have %v)", cfg.CameraPreset, camera.PresetNames())
		}
		camCfg = *preset
	}
	camCfg.Device = cfg.CameraDevice

	var source camera.Source
	var camManager *camera.Manager
	capture, err := camera.Open(camCfg, log.Component("camera"))
	if err != nil {
		a.logger.Warn("camera unavailable, running without video", "device", camCfg.Device, "error", err)
	} else {
		a.capture = capture
		source = capture
		camManager = camera.NewManager(camCfg)
		camManager.OnConfigChange = capture.Apply
	}

	relayCfg := relay.DefaultConfig()
	relayCfg.Duration = cfg.TimerDuration
	relayCfg.StaleAfter = max(relayCfg.StaleAfter, 2*cfg.DetectionInterval)
	if err := relayCfg.Validate(); err != nil {
		return nil, err
	}
	a.relay = relay.New(relayCfg, clock.Real{}, log.Component("relay"))

	var sw relay.Switch = relay.NopSwitch{}
	if cfg.RelaySerialPort != "" {
		serialSwitch, err := relay.OpenSerialSwitch(cfg.RelaySerialPort, relay.PortOptions{BaudRate: cfg.RelayBaudRate}, cfg.RelayChannel)
		if err != nil {
			a.logger.Warn("relay hardware unavailable, state is virtual", "port", cfg.RelaySerialPort, "error", err)
		} else {
			sw = serialSwitch
			a.logger.Info("relay hardware attached", "port", cfg.RelaySerialPort, "channel", cfg.RelayChannel)
		}
	}
	a.actuator = relay.NewActuator(a.relay, sw, reconcileInterval, log.Component("actuator"))

	if kcfg := events.NewKafkaConfig(); kcfg.Enabled() {
		pub, err := events.NewKafkaPublisher(kcfg, log.Component("events"))
		if err != nil {
			a.logger.Warn("event publishing disabled", "error", err)
		} else {
			a.forwarder = events.NewForwarder(a.relay, pub, cfg.RoomID, log.Component("events"))
		}
	}

	frames := monitor.NewFrameBuffer()
	cameraHub := hub.New("camera", log.Component("hub"))

	a.monitor, err = monitor.New(monitor.Options{
		Source:  source,
		Cycle:   cycle,
		Relay:   a.relay,
		Frames:  frames,
		Sink:    cameraHub,
		Camera:  camManager,
		Quality: camCfg.Quality,
		Logger:  log.Component("monitor"),
	})
	if err != nil {
		return nil, err
	}

	a.server, err = web.NewServer(web.Options{
		AppName:   cfg.AppName,
		Addr:      addr,
		Relay:     a.relay,
		Health:    a.monitor,
		Frames:    frames,
		Camera:    camManager,
		CameraHub: cameraHub,
		Logger:    log.Component("web"),
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("roomwatch initialized",
		"addr", addr,
		"timer", cfg.TimerDuration,
		"detection", cycle != nil,
		"camera", source != nil,
		"events", a.forwarder != nil,
	)
	return a, nil
}

// Run starts every background loop and serves until ctx is done.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("component stopped", "component", name, "error", err)
			}
		}()
	}

	start("timer", func(ctx context.Context) error {
		a.relay.Run(ctx, tickInterval)
		return nil
	})
	start("actuator", a.actuator.Run)
	start("monitor", a.monitor.Run)
	if a.forwarder != nil {
		start("events", a.forwarder.Run)
	}

	err := a.server.Run(ctx)
	cancel()
	wg.Wait()
	a.logger.Info("roomwatch stopped")
	return err
}

// Close releases the camera.
func (a *app) Close() {
	if a.capture != nil {
		if err := a.capture.Close(); err != nil {
			a.logger.Warn("camera close failed", "error", err)
		}
	}
}

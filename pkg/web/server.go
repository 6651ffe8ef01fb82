// Package web serves the room dashboard, the status and control API, and
// the live camera stream.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-roomwatch/pkg/camera"
	"github.com/teslashibe/go-roomwatch/pkg/hub"
	"github.com/teslashibe/go-roomwatch/pkg/monitor"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

//go:embed static/index.html
var indexHTML []byte

// Controller is the relay surface the API drives.
type Controller interface {
	Status() relay.Status
	Reset() relay.Status
	Toggle() relay.Status
	Subscribe(buf int) (<-chan relay.Transition, func())
}

// HealthReporter reports frame loop health.
type HealthReporter interface {
	Health() monitor.Health
}

// Options configures a Server. Relay and Frames are required; Health and
// Camera may be nil when running without a camera.
type Options struct {
	AppName string
	Addr    string

	Relay  Controller
	Health HealthReporter
	Frames *monitor.FrameBuffer
	Camera *camera.Manager

	// CameraHub carries JPEG frames to /ws/camera clients. Created when nil.
	CameraHub *hub.Hub

	// StatusInterval is how often /ws/status clients get a status push
	// besides every transition. Default 1s.
	StatusInterval time.Duration

	Logger *slog.Logger
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	cameraHub *hub.Hub

	// Stream context, cancelled on shutdown so MJPEG writers return.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates the server and registers all routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Relay == nil {
		return nil, errors.New("web: relay controller is required")
	}
	if opts.Frames == nil {
		return nil, errors.New("web: frame buffer is required")
	}
	if opts.AppName == "" {
		opts.AppName = "Room Control System"
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:      opts,
		logger:    opts.Logger,
		statusHub: hub.New("status", opts.Logger),
		cameraHub: opts.CameraHub,
	}
	if s.cameraHub == nil {
		s.cameraHub = hub.New("camera", opts.Logger)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// Dashboard may be opened from anywhere on the LAN
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/video_feed", s.handleVideoFeed)

	// Flat routes used by existing dashboards
	app.Get("/stats", s.handleStats)
	app.Post("/reset_timer", s.handleReset)
	app.Post("/toggle_relay", s.handleToggle)

	api := app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/status", s.handleStatus)
	api.Post("/reset_timer", s.handleReset)
	api.Post("/toggle_relay", s.handleToggle)
	api.Get("/health", s.handleHealth)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s, nil
}

// Run starts the hubs and the listener and blocks until ctx is done or the
// listener fails. On ctx done it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(s.ctx)
	go s.cameraHub.Run(s.ctx)
	transitions, unsubscribe := s.opts.Relay.Subscribe(16)
	go s.pumpStatus(s.ctx, transitions, unsubscribe)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web dashboard listening", "addr", s.opts.Addr)
		errc <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case err := <-errc:
		s.cancel()
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops streams and hubs, then the listener.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// pumpStatus pushes the status to /ws/status on every transition and on a
// fixed interval so countdowns stay live.
func (s *Server) pumpStatus(ctx context.Context, transitions <-chan relay.Transition, unsubscribe func()) {
	defer unsubscribe()

	ticker := time.NewTicker(s.opts.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-transitions:
			if !ok {
				return
			}
		case <-ticker.C:
		}
		if err := s.statusHub.BroadcastJSON(StatsFrom(s.opts.Relay.Status())); err != nil {
			s.logger.Warn("status broadcast failed", "error", err)
		}
	}
}

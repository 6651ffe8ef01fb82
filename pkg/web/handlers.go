package web

import (
	"bufio"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-roomwatch/pkg/camera"
	"github.com/teslashibe/go-roomwatch/pkg/hub"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

// Stats is the status query response.
type Stats struct {
	ProbPerson       float64 `json:"prob_person"` // 0-100
	ProbEmpty        float64 `json:"prob_empty"`  // 100 - ProbPerson
	Status           string  `json:"status"`
	Relay            string  `json:"relay"`
	RemainingSeconds int     `json:"remaining_seconds"`
}

// StatsFrom builds the status query response.
func StatsFrom(st relay.Status) Stats {
	return Stats{
		ProbPerson:       st.PersonPercent,
		ProbEmpty:        st.EmptyPercent,
		Status:           st.Occupancy.String(),
		Relay:            st.Relay.String(),
		RemainingSeconds: st.RemainingSeconds,
	}
}

// mjpegBoundary separates parts of the /video_feed stream.
const mjpegBoundary = "frame"

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// handleStats returns the compact status query
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(StatsFrom(s.opts.Relay.Status()))
}

// handleStatus returns the full controller status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.opts.Relay.Status())
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	st := s.opts.Relay.Reset()
	return c.JSON(fiber.Map{
		"message":           "timer reset",
		"status":            "success",
		"remaining_seconds": st.RemainingSeconds,
	})
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	st := s.opts.Relay.Toggle()
	return c.JSON(fiber.Map{"relay_status": st.Relay.String()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status": "ok",
		"relay":  StatsFrom(s.opts.Relay.Status()),
		"clients": fiber.Map{
			"status": s.statusHub.ClientCount(),
			"camera": s.cameraHub.ClientCount(),
		},
	}
	if s.opts.Health == nil {
		resp["status"] = "degraded"
		return c.JSON(resp)
	}

	h := s.opts.Health.Health()
	resp["monitor"] = h
	if !h.CameraAvailable || !h.DetectionEnabled {
		resp["status"] = "degraded"
	}
	return c.JSON(resp)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.opts.Camera == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, camera.ErrDeviceUnavailable.Error())
	}
	return c.JSON(fiber.Map{
		"config":  s.opts.Camera.GetConfig(),
		"presets": camera.Presets(),
	})
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.opts.Camera == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, camera.ErrDeviceUnavailable.Error())
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := s.opts.Camera.UpdateConfig(params); err != nil {
		if errors.Is(err, camera.ErrInvalidConfig) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"config": s.opts.Camera.GetConfig()})
}

// handleVideoFeed streams annotated frames as multipart MJPEG.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	if _, ok := s.opts.Frames.Latest(); !ok && s.opts.Health != nil && !s.opts.Health.Health().CameraAvailable {
		return fiber.NewError(fiber.StatusServiceUnavailable, camera.ErrDeviceUnavailable.Error())
	}

	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	ctx := s.ctx
	frames := s.opts.Frames
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		var seq uint64
		for {
			f, err := frames.Next(ctx, seq)
			if err != nil {
				return
			}
			seq = f.Seq
			if err := writePart(w, f.Data); err != nil {
				return
			}
		}
	})
	return nil
}

// writePart writes one JPEG part of the MJPEG stream and flushes it.
func writePart(w *bufio.Writer, jpeg []byte) error {
	w.WriteString("--" + mjpegBoundary + "\r\n")
	w.WriteString("Content-Type: image/jpeg\r\n")
	w.WriteString("Content-Length: " + strconv.Itoa(len(jpeg)) + "\r\n\r\n")
	w.Write(jpeg)
	w.WriteString("\r\n")
	return w.Flush()
}

// handleStatusWS sends the current status, then every pushed update.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hello, err := jsonMessage(StatsFrom(s.opts.Relay.Status()))
	if err != nil {
		s.logger.Warn("status hello encode failed", "error", err)
		c.Close()
		return
	}
	s.statusHub.Serve(c, hello)
}

// handleCameraWS streams binary JPEG frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	var hello []hub.Message
	if f, ok := s.opts.Frames.Latest(); ok {
		hello = append(hello, hub.Message{Type: hub.BinaryMessage, Data: f.Data})
	}
	s.cameraHub.Serve(c, hello...)
}

func jsonMessage(v any) (hub.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return hub.Message{}, err
	}
	return hub.Message{Type: hub.JSONMessage, Data: data}, nil
}

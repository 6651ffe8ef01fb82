package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-roomwatch/internal/clock"
	"github.com/teslashibe/go-roomwatch/internal/log"
	"github.com/teslashibe/go-roomwatch/pkg/camera"
	"github.com/teslashibe/go-roomwatch/pkg/monitor"
	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

type fakeHealth struct{ h monitor.Health }

func (f fakeHealth) Health() monitor.Health { return f.h }

func newTestServer(t *testing.T, mod func(o *Options)) (*Server, *relay.Controller) {
	t.Helper()
	clk := clock.NewMock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	ctrl := relay.New(relay.DefaultConfig(), clk, log.Discard())

	opts := Options{
		Relay:  ctrl,
		Frames: monitor.NewFrameBuffer(),
		Logger: log.Discard(),
	}
	if mod != nil {
		mod(&opts)
	}

	s, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.cancel() })
	return s, ctrl
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Options{Frames: monitor.NewFrameBuffer()})
	assert.Error(t, err)
	_, err = NewServer(Options{Relay: relay.New(relay.DefaultConfig(), nil, log.Discard())})
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	s, ctrl := newTestServer(t, nil)
	ctrl.Apply(relay.Reading{Detected: true, Confidence: 0.9})

	for _, path := range []string{"/stats", "/api/stats"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			resp, err := s.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var got Stats
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			want := Stats{ProbPerson: 90, ProbEmpty: 10, Status: "OCCUPIED", Relay: "ON", RemainingSeconds: 30}
			if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool { return a-b < 1e-9 && b-a < 1e-9 })); diff != "" {
				t.Errorf("stats mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatus_FullJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)
	code, body := doJSON(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EMPTY", body["status"])
	assert.Equal(t, "ON", body["relay"])
	assert.EqualValues(t, 30, body["remaining_seconds"])
}

func TestResetAndToggle(t *testing.T) {
	s, ctrl := newTestServer(t, nil)

	code, body := doJSON(t, s, http.MethodPost, "/reset_timer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])

	code, body = doJSON(t, s, http.MethodPost, "/toggle_relay", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OFF", body["relay_status"])
	assert.Equal(t, relay.Off, ctrl.Status().Relay)

	code, body = doJSON(t, s, http.MethodPost, "/api/toggle_relay", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ON", body["relay_status"])
}

func TestHealth(t *testing.T) {
	t.Run("no monitor", func(t *testing.T) {
		s, _ := newTestServer(t, nil)
		code, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", body["status"])
	})

	t.Run("healthy", func(t *testing.T) {
		s, _ := newTestServer(t, func(o *Options) {
			o.Health = fakeHealth{monitor.Health{CameraAvailable: true, DetectionEnabled: true, Frames: 12}}
		})
		code, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body["status"])
		mon := body["monitor"].(map[string]any)
		assert.EqualValues(t, 12, mon["frames"])
	})

	t.Run("detection disabled", func(t *testing.T) {
		s, _ := newTestServer(t, func(o *Options) {
			o.Health = fakeHealth{monitor.Health{CameraAvailable: true}}
		})
		_, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestCameraAPI(t *testing.T) {
	t.Run("no camera", func(t *testing.T) {
		s, _ := newTestServer(t, nil)
		code, body := doJSON(t, s, http.MethodGet, "/api/camera", nil)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body["error"], "unavailable")
	})

	mgr := camera.NewManager(camera.DefaultConfig())
	var applied int
	mgr.OnConfigChange = func(camera.Config) error { applied++; return nil }
	s, _ := newTestServer(t, func(o *Options) { o.Camera = mgr })

	code, body := doJSON(t, s, http.MethodGet, "/api/camera", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 640, body["config"].(map[string]any)["width"])
	assert.Len(t, body["presets"], len(camera.PresetNames()))

	code, _ = doJSON(t, s, http.MethodPost, "/api/camera", map[string]any{"width": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = doJSON(t, s, http.MethodPost, "/api/camera", map[string]any{"preset": "720p"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1280, body["config"].(map[string]any)["width"])
	assert.Equal(t, 1, applied)
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "/video_feed")
}

func TestVideoFeed_NoCamera(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) {
		o.Health = fakeHealth{monitor.Health{CameraAvailable: false}}
	})
	code, _ := doJSON(t, s, http.MethodGet, "/video_feed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestWritePart(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writePart(w, []byte{0xFF, 0xD8, 0xFF, 0xD9}))

	want := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 4\r\n\r\n\xff\xd8\xff\xd9\r\n"
	assert.Equal(t, want, buf.String())
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t, nil)
	code, _ := doJSON(t, s, http.MethodGet, "/ws/status", nil)
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestStatusWebsocket(t *testing.T) {
	s, ctrl := newTestServer(t, func(o *Options) { o.StatusInterval = time.Hour })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.statusHub.Run(ctx)
	transitions, unsubscribe := ctrl.Subscribe(16)
	go s.pumpStatus(ctx, transitions, unsubscribe)
	go s.app.Listener(ln)
	defer s.app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() Stats {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var st Stats
		require.NoError(t, json.Unmarshal(data, &st))
		return st
	}

	assert.Equal(t, "EMPTY", read().Status, "greeting carries the current status")

	// Wait until the client is registered before causing a transition.
	require.Eventually(t, func() bool { return s.statusHub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	ctrl.Apply(relay.Reading{Detected: true, Confidence: 0.88})

	st := read()
	assert.Equal(t, "OCCUPIED", st.Status)
	assert.InDelta(t, 88.0, st.ProbPerson, 1e-9)
}

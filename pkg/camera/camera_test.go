package camera

import (
	"errors"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("default resolution = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
}

func TestPresetsValid(t *testing.T) {
	names := PresetNames()
	if len(names) != len(Presets()) {
		t.Fatalf("PresetNames lists %d, Presets has %d", len(names), len(Presets()))
	}
	if names[0] != "default" {
		t.Errorf("first preset = %q, want default", names[0])
	}
	for _, name := range names {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Errorf("preset %q missing", name)
			continue
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mod    func(c *Config)
		expect string
	}{
		{"empty device", func(c *Config) { c.Device = "" }, "device"},
		{"tiny width", func(c *Config) { c.Width = 10 }, "width"},
		{"huge height", func(c *Config) { c.Height = 9999 }, "height"},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, "framerate"},
		{"quality", func(c *Config) { c.Quality = 101 }, "quality"},
		{"buffer", func(c *Config) { c.BufferSize = -1 }, "buffer_size"},
		{"gain", func(c *Config) { c.Gain = -2 }, "gain"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)
			errs := cfg.Validate()
			if len(errs) != 1 || !strings.Contains(errs[0], tc.expect) {
				t.Errorf("Validate() = %v, want one error about %s", errs, tc.expect)
			}
		})
	}
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		device string
		expect any
	}{
		{"0", 0},
		{"2", 2},
		{"/dev/video1", "/dev/video1"},
		{"rtsp://cam.local/stream", "rtsp://cam.local/stream"},
	}
	for _, tc := range tests {
		cfg := Config{Device: tc.device}
		if got := cfg.deviceID(); got != tc.expect {
			t.Errorf("deviceID(%q) = %v (%T), want %v", tc.device, got, got, tc.expect)
		}
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(Config{Device: "/dev/video2", Width: 640, Height: 480, Framerate: 30, Quality: 80, BufferSize: 1})

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	if err := m.UpdateConfig(map[string]any{"preset": "720p", "quality": float64(60)}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	got := m.GetConfig()
	if got.Width != 1280 || got.Height != 720 || got.Quality != 60 {
		t.Errorf("unexpected config %+v", got)
	}
	if got.Device != "/dev/video2" {
		t.Errorf("preset moved device to %q", got.Device)
	}
	if len(applied) != 1 {
		t.Errorf("OnConfigChange called %d times, want 1", len(applied))
	}
}

func TestManager_RejectsInvalid(t *testing.T) {
	m := NewManager(DefaultConfig())

	rejected := []map[string]any{
		{"width": 5},
		{"preset": "nope"},
		{"preset": 720},
		{"zoom": 2},
		{"width": "wide"},
		{"height": 480.5},
	}
	for _, params := range rejected {
		if err := m.UpdateConfig(params); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("UpdateConfig(%v) = %v, want ErrInvalidConfig", params, err)
		}
	}
	if m.GetConfig() != DefaultConfig() {
		t.Error("config changed after rejected updates")
	}
}

func TestManager_CallbackFailureKeepsOldConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.OnConfigChange = func(Config) error { return ErrDeviceUnavailable }

	err := m.UpdateConfig(map[string]any{"device": "7"})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if m.GetConfig().Device != "0" {
		t.Errorf("device = %q after failed apply, want 0", m.GetConfig().Device)
	}
}

func TestManager_UpdateFloatFields(t *testing.T) {
	m := NewManager(DefaultConfig())

	if err := m.UpdateConfig(map[string]any{"gain": 4.5, "exposure": -6, "buffer_size": float64(2)}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	got := m.GetConfig()
	if got.Gain != 4.5 || got.Exposure != -6 || got.BufferSize != 2 {
		t.Errorf("unexpected config %+v", got)
	}
	if got.Width != 640 {
		t.Errorf("untouched width changed to %d", got.Width)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := Open(Config{}, nil); err == nil {
		t.Error("expected invalid config error")
	}
}

func TestMockSource(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	src := NewStaticSource(frame)
	dst := gocv.NewMat()
	defer dst.Close()

	if !src.Read(&dst) || dst.Rows() != 4 {
		t.Fatal("static source should copy the frame")
	}
	src.Close()
	if src.Read(&dst) {
		t.Error("closed source must not yield")
	}
	if src.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", src.Calls())
	}
}

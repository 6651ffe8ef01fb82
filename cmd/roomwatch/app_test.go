package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-roomwatch/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")

	dir := t.TempDir()
	cfg := config.FromEnv()
	cfg.ModelPath = filepath.Join(dir, "missing_model.json")
	cfg.ScalerPath = filepath.Join(dir, "missing_scaler.json")
	cfg.CameraDevice = filepath.Join(dir, "missing.mp4")
	cfg.RelaySerialPort = ""
	return cfg
}

func TestNewApp_Degraded(t *testing.T) {
	a, err := newApp(testConfig(t), "127.0.0.1:0")
	require.NoError(t, err)
	defer a.Close()

	health := a.monitor.Health()
	assert.False(t, health.CameraAvailable)
	assert.False(t, health.DetectionEnabled)
	assert.Nil(t, a.forwarder)
	assert.Nil(t, a.capture)
	assert.Equal(t, "ON", a.relay.Status().Relay.String())
}

func TestNewApp_UnknownPreset(t *testing.T) {
	cfg := testConfig(t)
	cfg.CameraPreset = "4k"

	_, err := newApp(cfg, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4k")
}

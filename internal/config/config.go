// Package config provides environment-driven configuration for roomwatch.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAppName           = "Room Control System"
	DefaultHost              = "0.0.0.0"
	DefaultPort              = "8000"
	DefaultCameraDevice      = "0"
	DefaultModelPath         = "models/svm_model_hsv.json"
	DefaultScalerPath        = "models/scaler_hsv.json"
	DefaultTimerDuration     = 30 * time.Second
	DefaultProbThreshold     = 0.80
	DefaultDetectionInterval = time.Second
	DefaultDarkThreshold     = 40.0
	DefaultRelayBaudRate     = 9600
	DefaultRelayChannel      = 1
)

// Config holds process-wide settings.
type Config struct {
	AppName  string
	RoomID   string // identifies this room in published events
	Host     string
	Port     string
	LogLevel string

	// Camera
	CameraDevice string // index ("0") or URL/path
	CameraPreset string

	// Detection
	ModelPath         string
	ScalerPath        string
	ProbThreshold     float64
	DetectionInterval time.Duration
	DarkThreshold     float64

	// Relay
	TimerDuration   time.Duration
	RelaySerialPort string // empty = no hardware relay
	RelayBaudRate   int
	RelayChannel    int
}

// Load reads .env files (missing files are ignored) and then the environment.
// With no arguments it reads ./.env, like godotenv.Load.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() Config {
	return Config{
		AppName:  getEnv("APP_NAME", DefaultAppName),
		RoomID:   getEnv("ROOM_ID", defaultRoomID()),
		Host:     getEnv("APP_HOST", DefaultHost),
		Port:     getEnv("APP_PORT", DefaultPort),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CameraDevice: getEnv("CAMERA_DEVICE", DefaultCameraDevice),
		CameraPreset: getEnv("CAMERA_PRESET", ""),

		ModelPath:         getEnv("MODEL_PATH", DefaultModelPath),
		ScalerPath:        getEnv("SCALER_PATH", DefaultScalerPath),
		ProbThreshold:     getEnvFloat("PROB_THRESHOLD", DefaultProbThreshold),
		DetectionInterval: getEnvDuration("DETECTION_INTERVAL", DefaultDetectionInterval),
		DarkThreshold:     getEnvFloat("DARK_THRESHOLD", DefaultDarkThreshold),

		TimerDuration:   getEnvDuration("TIMER_DURATION", DefaultTimerDuration),
		RelaySerialPort: getEnv("RELAY_SERIAL_PORT", ""),
		RelayBaudRate:   getEnvInt("RELAY_BAUD_RATE", DefaultRelayBaudRate),
		RelayChannel:    getEnvInt("RELAY_CHANNEL", DefaultRelayChannel),
	}
}

func defaultRoomID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "room"
}

// Addr returns the listen address for the web server.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string

	if _, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("APP_PORT %q is not a number", c.Port))
	}
	if c.ProbThreshold <= 0 || c.ProbThreshold >= 1 {
		problems = append(problems, "PROB_THRESHOLD must be between 0 and 1 (exclusive)")
	}
	if c.DetectionInterval <= 0 {
		problems = append(problems, "DETECTION_INTERVAL must be positive")
	}
	if c.TimerDuration <= 0 {
		problems = append(problems, "TIMER_DURATION must be positive")
	}
	if c.DarkThreshold < 0 || c.DarkThreshold > 255 {
		problems = append(problems, "DARK_THRESHOLD must be between 0 and 255")
	}
	if c.RelayChannel < 1 || c.RelayChannel > 8 {
		problems = append(problems, "RELAY_CHANNEL must be between 1 and 8")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or bare seconds ("30", "0.5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

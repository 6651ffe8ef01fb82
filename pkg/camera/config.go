// Package camera opens the capture device and holds its runtime-adjustable
// settings.
package camera

import "strconv"

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is a V4L index ("0", "1"), a device path, or a stream URL.
	Device string `json:"device"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100 for the live stream

	// BufferSize is the driver-side frame queue. 1 keeps frames fresh.
	BufferSize int `json:"buffer_size"`

	// === Low Light Controls ===
	// Values are passed to the driver as-is; 0 leaves the driver default.
	Brightness float64 `json:"brightness"`
	Exposure   float64 `json:"exposure"`
	Gain       float64 `json:"gain"`
}

// Capture limits accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxBuffer    = 16
)

// DefaultConfig returns the 640x480 configuration the scan grid is tuned for.
func DefaultConfig() Config {
	return Config{
		Device:     "0",
		Width:      640,
		Height:     480,
		Framerate:  30,
		Quality:    80,
		BufferSize: 1,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.BufferSize < 0 || c.BufferSize > MaxBuffer {
		errors = append(errors, "buffer_size must be between 0 and 16")
	}
	if c.Gain < 0 {
		errors = append(errors, "gain must not be negative")
	}

	return errors
}

// deviceID converts Device to what gocv.OpenVideoCapture expects:
// an int for numeric indices, the string otherwise.
func (c *Config) deviceID() any {
	if id, err := strconv.Atoi(c.Device); err == nil {
		return id
	}
	return c.Device
}

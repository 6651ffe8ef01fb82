package camera

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrDeviceUnavailable is returned when the capture device cannot be opened.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrClosed is returned when using a capture after Close.
	ErrClosed = errors.New("camera: capture closed")

	// ErrInvalidConfig wraps every rejected configuration update.
	ErrInvalidConfig = errors.New("camera: invalid config")
)

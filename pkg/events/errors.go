package events

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrClosed is returned when publishing after Close.
	ErrClosed = errors.New("events: publisher closed")

	// ErrNotConfigured is returned when Kafka is requested without bootstrap servers.
	ErrNotConfigured = errors.New("events: kafka not configured")
)

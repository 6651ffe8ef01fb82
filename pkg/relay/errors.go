package relay

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrInvalidChannel is returned when a relay channel is out of range.
	ErrInvalidChannel = errors.New("relay: invalid channel")

	// ErrSwitchClosed is returned when setting a switch after Close.
	ErrSwitchClosed = errors.New("relay: switch closed")

	// ErrPortUnavailable is returned when the serial port cannot be opened.
	ErrPortUnavailable = errors.New("relay: serial port unavailable")
)

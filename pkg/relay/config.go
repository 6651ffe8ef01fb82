package relay

import (
	"fmt"
	"time"
)

// Config holds timer configuration
type Config struct {
	Duration   time.Duration // How long the relay stays on after the last detection
	// StaleAfter is how long Tick waits without Apply before treating an
	// occupied room as unobserved. The window is widened by twice the
	// duration of the last reported cycle, so it must exceed the detection
	// interval and the first scan that overruns it is bounded by StaleAfter
	// alone.
	StaleAfter time.Duration
}

// DefaultConfig returns default timer configuration
func DefaultConfig() Config {
	return Config{
		Duration:   30 * time.Second,
		StaleAfter: 2 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("relay: duration must be positive, got %v", c.Duration)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("relay: stale-after must be positive, got %v", c.StaleAfter)
	}
	return nil
}

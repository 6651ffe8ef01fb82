// Package relay turns intermittent occupancy readings into a stable relay
// control decision using a decay timer, and drives a physical switch from it.
package relay

import "time"

// State is the relay output.
type State int

const (
	Off State = iota
	On
)

// String returns "ON" or "OFF".
func (s State) String() string {
	if s == On {
		return "ON"
	}
	return "OFF"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Occupancy is the room status derived from detections and the timer.
type Occupancy int

const (
	// Empty means nobody was seen recently and the timer is counting down.
	Empty Occupancy = iota
	// Occupied means the last detection cycle saw a person.
	Occupied
	// Expired means the timer ran out and the relay was switched off.
	Expired
)

// String returns the upper-case status label.
func (o Occupancy) String() string {
	switch o {
	case Occupied:
		return "OCCUPIED"
	case Expired:
		return "EXPIRED"
	default:
		return "EMPTY"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Occupancy) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Reading is one detection cycle's outcome as seen by the controller.
type Reading struct {
	Detected   bool
	Confidence float64       // highest person confidence of the cycle (0-1)
	Took       time.Duration // how long the cycle ran; widens the watchdog window
}

// Status is a consistent view of the controller at one instant.
type Status struct {
	Occupancy        Occupancy     `json:"status"`
	Relay            State         `json:"relay"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Duration         time.Duration `json:"-"`
	PersonPercent    float64       `json:"prob_person"`
	EmptyPercent     float64       `json:"prob_empty"`
	Detected         bool          `json:"detected"`
	LastDetection    time.Time     `json:"last_detection"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Kind names what caused a Transition.
type Kind string

const (
	KindDetected Kind = "detected" // a person was seen
	KindVacated  Kind = "vacated"  // occupied -> empty, countdown started
	KindExpired  Kind = "expired"  // countdown reached zero, relay off
	KindReset    Kind = "reset"    // manual timer reset
	KindToggled  Kind = "toggled"  // manual relay flip
)

// Transition describes one state edge.
type Transition struct {
	Kind      Kind
	From, To  Occupancy
	RelayFrom State
	RelayTo   State
	Remaining time.Duration
	At        time.Time
	Status    Status // status right after the edge
}

// RelayChanged reports whether the edge flipped the relay.
func (t Transition) RelayChanged() bool {
	return t.RelayFrom != t.RelayTo
}

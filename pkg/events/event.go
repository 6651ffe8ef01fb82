// Package events publishes relay state transitions to external consumers.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-roomwatch/pkg/relay"
)

// Event is one relay transition as published on the wire.
type Event struct {
	ID     string `json:"event_id"`
	Type   string `json:"type"`   // detected, vacated, expired, reset, toggled
	Source string `json:"source"` // which room controller emitted it

	From             string  `json:"from"`
	Occupancy        string  `json:"occupancy"`
	RelayFrom        string  `json:"relay_from"`
	Relay            string  `json:"relay"`
	RemainingSeconds int     `json:"remaining_seconds"`
	PersonPercent    float64 `json:"prob_person"`

	At time.Time `json:"at"`
}

// FromTransition builds an Event with a fresh ID.
func FromTransition(t relay.Transition, source string) Event {
	return Event{
		ID:               uuid.NewString(),
		Type:             string(t.Kind),
		Source:           source,
		From:             t.From.String(),
		Occupancy:        t.To.String(),
		RelayFrom:        t.RelayFrom.String(),
		Relay:            t.RelayTo.String(),
		RemainingSeconds: t.Status.RemainingSeconds,
		PersonPercent:    t.Status.PersonPercent,
		At:               t.At,
	}
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event.
func FromJSON(data []byte) (*Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return &e, err
}

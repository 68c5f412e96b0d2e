package feed

import (
	"strings"

	"github.com/TSherpa10/moodzy/codec"
)

// EventType tags relay events carrying a simulated user.
const EventType = "simuser"

// Event is the relay message pushed to live-view clients.
type Event struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload is the user snapshot carried by an Event.
type Payload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Mood        string `json:"mood"`
	IsReal      bool   `json:"isReal"`
	TimeCreated int64  `json:"timeCreated"`
	TimeUpdated int64  `json:"timeUpdated"`
}

// NewEvent builds the relay event for u observed at now (ms since epoch).
func NewEvent(u codec.SimUser, now int64) Event {
	return Event{
		Type: EventType,
		Payload: Payload{
			ID:          u.ID,
			Name:        strings.TrimSpace(u.Name),
			Mood:        MoodLabel(u.Mood),
			IsReal:      u.IsReal,
			TimeCreated: now,
			TimeUpdated: now,
		},
	}
}

// Publisher receives relay events. Publish must not block.
type Publisher interface {
	Publish(Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event) error

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) error {
	return f(ev)
}

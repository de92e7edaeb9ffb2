// Package activity defines the events shown on the live activity feed.
package activity

import "time"

// Event types
const (
	SyncCompleted    = "sync.completed"
	SyncFailed       = "sync.failed"
	CandidateChanged = "candidate.changed"
	ProjectChanged   = "project.changed"
	AdvisorReplied   = "advisor.replied"
)

// Event is a single feed entry
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// New stamps an event with the current time
func New(eventType, message string, data any) Event {
	return Event{Type: eventType, Message: message, Data: data, At: time.Now().UTC()}
}

// Publisher receives feed events. Implementations must not block.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(e Event)

// Publish calls f(e)
func (f PublisherFunc) Publish(e Event) { f(e) }

// Nop discards events
var Nop Publisher = PublisherFunc(func(Event) {})

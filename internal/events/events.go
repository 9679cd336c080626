// Package events publishes driver failures and safety shutoffs to an MQTT
// broker.
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"keyplayer/internal/solenoid"
)

// Publisher publishes events.
type Publisher interface {
	// Publish sends one event. Failures are returned, never fatal.
	Publish(event Event) error

	// Close disconnects from the broker.
	Close() error
}

// Event is one reported driver failure.
type Event struct {
	ID        string
	Timestamp time.Time
	Code      solenoid.Code
	// Channel is solenoid.Global when the failure is not tied to a channel.
	Channel solenoid.Channel
	Message string
}

// FromError builds an event for err. Errors from outside the solenoid
// package are classified UNKNOWN.
func FromError(err error, now time.Time) Event {
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: now,
		Code:      solenoid.CodeOf(err),
		Channel:   solenoid.Global,
	}
	if err != nil {
		ev.Message = err.Error()
	}
	var se *solenoid.Error
	if errors.As(err, &se) {
		ev.Channel = se.Channel
	}
	return ev
}

// Urgent events are published at QoS 1.
func (e Event) Urgent() bool {
	return e.Code == solenoid.CodeSafetyTimeout || e.Code == solenoid.CodeHardware
}

// Payload is the MQTT message body.
type Payload struct {
	Solenoid SolenoidPayload `json:"solenoid"`
}

type SolenoidPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Channel   *int   `json:"channel,omitempty"`
	Board     *int   `json:"board,omitempty"`
	Message   string `json:"message"`
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(event Event) ([]byte, error) {
	p := SolenoidPayload{
		ID:        event.ID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Code:      event.Code.Name(),
		Message:   event.Message,
	}
	if event.Channel != solenoid.Global {
		ch := int(event.Channel)
		b, _ := solenoid.Locate(event.Channel)
		board := int(b)
		p.Channel = &ch
		p.Board = &board
	}
	return json.Marshal(Payload{Solenoid: p})
}

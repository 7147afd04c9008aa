// Package events defines the validation events emitted by the reconciliation
// engine and the publishers that deliver them. Delivery is best effort: a
// publisher never fails the caller.
package events

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// EventType is the kind of a validation event
type EventType uint8

// The validation event types
const (
	ValidationStarted EventType = iota
	ValidationStateChanged
	ValidationCompleted
	ValidationTimedOut
	ValidationFailed
)

var eventTypeStrings = map[EventType]string{
	ValidationStarted:      "ValidationStarted",
	ValidationStateChanged: "ValidationStateChanged",
	ValidationCompleted:    "ValidationCompleted",
	ValidationTimedOut:     "ValidationTimedOut",
	ValidationFailed:       "ValidationFailed",
}

func (t EventType) String() string {
	if s, ok := eventTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown EventType (%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *EventType) UnmarshalText(text []byte) error {
	for eventType, s := range eventTypeStrings {
		if s == string(text) {
			*t = eventType
			return nil
		}
	}
	return errors.Errorf("unknown event type %s", text)
}

// Event is a validation event of a single engine invocation
type Event struct {
	Type        EventType `json:"type"`
	OperationID uint64    `json:"operationId"`
	Store       string    `json:"store,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Time        time.Time `json:"time"`
}

// NewEvent returns an event of the given type stamped with the current time
func NewEvent(eventType EventType, operationID uint64, store string) *Event {
	return &Event{
		Type:        eventType,
		OperationID: operationID,
		Store:       store,
		Time:        time.Now(),
	}
}

func (e *Event) String() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%d, %s): %s", e.Type, e.OperationID, e.Store, e.Reason)
	}
	return fmt.Sprintf("%s(%d, %s)", e.Type, e.OperationID, e.Store)
}

// Publisher delivers events. Publish must not block for long and must not
// fail the caller; having no receivers is not an error.
type Publisher interface {
	Publish(event *Event)
}

// Publishers fans every event out to each of its members
type Publishers []Publisher

// Publish implements Publisher
func (ps Publishers) Publish(event *Event) {
	for _, p := range ps {
		p.Publish(event)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(*Event) {}

// NopPublisher returns a Publisher that drops every event
func NopPublisher() Publisher {
	return nopPublisher{}
}

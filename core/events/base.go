package events

import (
	"encoding/json"
	"time"
)

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

// Envelope is the wire form of an event: its kind, when it happened and
// the event's own fields under "data".
type Envelope struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
	Data Event     `json:"data"`
}

func Wrap(event Event) Envelope {
	return Envelope{Kind: event.Kind(), At: event.Timestamp(), Data: event}
}

func Marshal(event Event) ([]byte, error) {
	return json.Marshal(Wrap(event))
}

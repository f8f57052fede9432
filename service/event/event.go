package event

import (
	"fmt"
	"time"

	"github.com/viant/coretask/internal/clock"
	"github.com/viant/coretask/internal/idgen"
)

// Family names a group of related events, for example a peripheral
type Family string

// Kind identifies an event within its family
type Kind int32

// AnyKind subscribes a handler to every kind of a family
const AnyKind Kind = -1

// WaitForever makes Publish wait for queue space until its context is done
const WaitForever time.Duration = -1

// Event is a single posted event
type Event struct {
	ID        string    `json:"id"`
	Family    Family    `json:"family"`
	Kind      Kind      `json:"kind"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Seq       uint64    `json:"seq"`
}

// NewEvent creates an event owning a copy of payload
func NewEvent(family Family, kind Kind, payload []byte) *Event {
	var data []byte
	if len(payload) > 0 {
		data = make([]byte, len(payload))
		copy(data, payload)
	}
	return &Event{
		ID:        idgen.New(),
		Family:    family,
		Kind:      kind,
		Payload:   data,
		CreatedAt: clock.Now(),
	}
}

func (e *Event) String() string {
	return fmt.Sprintf("%s:%d", e.Family, e.Kind)
}

// Handler receives events on the loop dispatch goroutine
type Handler func(e *Event)

package aggregate

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact about something that happened to one
// aggregate. Concrete events embed Metadata and add their payload.
type Event interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	UserID() uuid.UUID
	OccurredAt() time.Time
	EventType() string
}

// Metadata carries the who/what/when shared by every event
type Metadata struct {
	ID        uuid.UUID `json:"id"`
	StreamID  uuid.UUID `json:"aggregateId"`
	Actor     uuid.UUID `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMetadata(aggregateID, userID uuid.UUID, clock Clock) Metadata {
	return Metadata{
		ID:        uuid.New(),
		StreamID:  aggregateID,
		Actor:     userID,
		Timestamp: clock.Now().UTC(),
	}
}

func (m Metadata) EventID() uuid.UUID {
	return m.ID
}

func (m Metadata) AggregateID() uuid.UUID {
	return m.StreamID
}

func (m Metadata) UserID() uuid.UUID {
	return m.Actor
}

func (m Metadata) OccurredAt() time.Time {
	return m.Timestamp
}

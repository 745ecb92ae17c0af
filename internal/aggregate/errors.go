package aggregate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is returned by a Store when the version the caller
	// read no longer matches the stored version
	ErrVersionConflict = errors.New("aggregate version conflict")
	ErrNotFound        = errors.New("aggregate not found")
)

// ReplayError means an event could not be applied because its variant is
// unknown to the aggregate's reducer. It signals a schema or versioning
// defect and must not be retried.
type ReplayError struct {
	AggregateID uuid.UUID
	EventType   string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("cannot apply event of type %q to aggregate %s", e.EventType, e.AggregateID)
}

// UnknownEvent builds the ReplayError returned from the default arm of a
// reducer's type switch.
func UnknownEvent(e Event) *ReplayError {
	if e == nil {
		return &ReplayError{EventType: "<nil>"}
	}
	return &ReplayError{
		AggregateID: e.AggregateID(),
		EventType:   fmt.Sprintf("%s (%T)", e.EventType(), e),
	}
}

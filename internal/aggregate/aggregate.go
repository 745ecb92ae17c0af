package aggregate

import (
	"github.com/google/uuid"
)

// Reducer folds one event into a state and returns the new state. It must
// be a pure function with an exhaustive switch over the aggregate's event
// variants; the default arm returns UnknownEvent(e).
type Reducer[S any, E Event] func(state S, event E) (S, error)

// Aggregate owns an ordered event log, the state derived from it and a
// version counter. State is only ever changed by folding events.
//
// Not safe for concurrent use; concurrent writers of the same aggregate id
// are detected by the Store through version comparison.
type Aggregate[S any, E Event] struct {
	id        uuid.UUID
	version   int
	committed int
	log       []E
	state     S
	reduce    Reducer[S, E]
}

// New creates an empty aggregate at version 0
func New[S any, E Event](id uuid.UUID, initial S, reduce Reducer[S, E]) *Aggregate[S, E] {
	return &Aggregate[S, E]{
		id:     id,
		state:  initial,
		reduce: reduce,
		log:    []E{},
	}
}

// Replay rebuilds an aggregate from its history. History is trusted: no
// validation beyond the reducer's own variant check is performed. The
// replayed events count as committed.
func Replay[S any, E Event](id uuid.UUID, initial S, reduce Reducer[S, E], events []E) (*Aggregate[S, E], error) {
	a := New[S, E](id, initial, reduce)
	for _, e := range events {
		if err := a.Apply(e); err != nil {
			return nil, err
		}
	}
	a.MarkCommitted()
	return a, nil
}

// Apply folds the event into the state, appends it to the log and bumps the
// version. On error the aggregate is left untouched.
func (a *Aggregate[S, E]) Apply(e E) error {
	next, err := a.reduce(a.state, e)
	if err != nil {
		return err
	}
	a.state = next
	a.log = append(a.log, e)
	a.version++
	return nil
}

// Handle runs a command. decide validates against the current state and
// returns the single event describing the change; only once decide and the
// reducer both succeed is the new state adopted.
func (a *Aggregate[S, E]) Handle(decide func(state S) (E, error)) (E, error) {
	e, err := decide(a.state)
	if err != nil {
		var zero E
		return zero, err
	}
	if err := a.Apply(e); err != nil {
		var zero E
		return zero, err
	}
	return e, nil
}

func (a *Aggregate[S, E]) ID() uuid.UUID {
	return a.id
}

// Version is the number of events applied so far
func (a *Aggregate[S, E]) Version() int {
	return a.version
}

// CommittedVersion is the version the aggregate had when it was last loaded
// or saved. Stores use it as the expected version on append.
func (a *Aggregate[S, E]) CommittedVersion() int {
	return a.committed
}

func (a *Aggregate[S, E]) State() S {
	return a.state
}

// Events returns a copy of the full log
func (a *Aggregate[S, E]) Events() []E {
	out := make([]E, len(a.log))
	copy(out, a.log)
	return out
}

// Pending returns the events applied since the last commit
func (a *Aggregate[S, E]) Pending() []E {
	pending := a.log[a.committed:]
	out := make([]E, len(pending))
	copy(out, pending)
	return out
}

func (a *Aggregate[S, E]) MarkCommitted() {
	a.committed = a.version
}

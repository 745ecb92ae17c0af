package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store persists event streams. Append must fail with ErrVersionConflict
// when the stream's current version differs from expectedVersion.
type Store[E Event] interface {
	Load(ctx context.Context, id uuid.UUID) ([]E, error)
	Append(ctx context.Context, id uuid.UUID, expectedVersion int, events []E) error
}

// Save appends an aggregate's pending events at its committed version and
// marks them committed on success.
func Save[S any, E Event](ctx context.Context, store Store[E], a *Aggregate[S, E]) error {
	pending := a.Pending()
	if len(pending) == 0 {
		return nil
	}
	if err := store.Append(ctx, a.ID(), a.CommittedVersion(), pending); err != nil {
		return fmt.Errorf("failed to save aggregate %s: %w", a.ID(), err)
	}
	a.MarkCommitted()
	return nil
}

// MemoryStore is an in-process Store, used when no database is configured
type MemoryStore[E Event] struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]E
}

func NewMemoryStore[E Event]() *MemoryStore[E] {
	return &MemoryStore[E]{
		streams: map[uuid.UUID][]E{},
	}
}

func (s *MemoryStore[E]) Load(ctx context.Context, id uuid.UUID) ([]E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[id]
	if !ok || len(stream) == 0 {
		return nil, fmt.Errorf("failed to load %s: %w", id, ErrNotFound)
	}
	out := make([]E, len(stream))
	copy(out, stream)
	return out, nil
}

func (s *MemoryStore[E]) Append(ctx context.Context, id uuid.UUID, expectedVersion int, events []E) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[id])
	if current != expectedVersion {
		return fmt.Errorf("expected version %d but stream %s is at %d: %w", expectedVersion, id, current, ErrVersionConflict)
	}
	s.streams[id] = append(s.streams[id], events...)
	return nil
}

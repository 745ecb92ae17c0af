package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stocktracker/internal/aggregate"
	"stocktracker/internal/db/models/postgres/public/model"
	"stocktracker/internal/db/models/postgres/public/table"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type eventRepositoryHandler[E aggregate.Event] struct {
	Db            *sql.DB
	AggregateType string
	Codec         aggregate.Codec[E]
}

// NewEventRepository stores the events of one aggregate type in the
// aggregate_event table. Versions start at 1 and are unique per aggregate.
func NewEventRepository[E aggregate.Event](db *sql.DB, aggregateType string, codec aggregate.Codec[E]) aggregate.Store[E] {
	return eventRepositoryHandler[E]{
		Db:            db,
		AggregateType: aggregateType,
		Codec:         codec,
	}
}

func (h eventRepositoryHandler[E]) Load(ctx context.Context, id uuid.UUID) ([]E, error) {
	query := table.AggregateEvent.
		SELECT(table.AggregateEvent.AllColumns).
		WHERE(
			postgres.AND(
				table.AggregateEvent.AggregateID.EQ(postgres.UUID(id)),
				table.AggregateEvent.AggregateType.EQ(postgres.String(h.AggregateType)),
			),
		).
		ORDER_BY(table.AggregateEvent.Version.ASC())

	rows := []model.AggregateEvent{}
	if err := query.QueryContext(ctx, h.Db, &rows); err != nil {
		return nil, fmt.Errorf("failed to load events for %s %s: %w", h.AggregateType, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", h.AggregateType, id, aggregate.ErrNotFound)
	}

	out := make([]E, 0, len(rows))
	for _, row := range rows {
		e, err := h.Codec.Decode(row.EventType, []byte(row.Payload))
		if err != nil {
			var replayErr *aggregate.ReplayError
			if errors.As(err, &replayErr) {
				replayErr.AggregateID = id
			}
			return nil, fmt.Errorf("failed to decode event %d of %s %s: %w", row.Version, h.AggregateType, id, err)
		}
		out = append(out, e)
	}

	return out, nil
}

func (h eventRepositoryHandler[E]) currentVersion(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int, error) {
	query := table.AggregateEvent.
		SELECT(
			postgres.COALESCE(postgres.MAXi(table.AggregateEvent.Version), postgres.Int(0)),
		).
		WHERE(table.AggregateEvent.AggregateID.EQ(postgres.UUID(id)))

	stmt, args := query.Sql()
	var version int
	if err := tx.QueryRowContext(ctx, stmt, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read version of %s: %w", id, err)
	}
	return version, nil
}

func (h eventRepositoryHandler[E]) Append(ctx context.Context, id uuid.UUID, expectedVersion int, events []E) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]model.AggregateEvent, 0, len(events))
	now := time.Now().UTC()
	for i, e := range events {
		payload, err := h.Codec.Encode(e)
		if err != nil {
			return err
		}
		rows = append(rows, model.AggregateEvent{
			AggregateEventID: e.EventID(),
			AggregateID:      id,
			AggregateType:    h.AggregateType,
			Version:          int32(expectedVersion + i + 1),
			EventType:        e.EventType(),
			UserID:           e.UserID(),
			Payload:          string(payload),
			OccurredAt:       e.OccurredAt().UTC(),
			CreatedAt:        now,
		})
	}

	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := h.currentVersion(ctx, tx, id)
	if err != nil {
		return err
	}
	if current != expectedVersion {
		return fmt.Errorf("%s %s is at version %d, expected %d: %w", h.AggregateType, id, current, expectedVersion, aggregate.ErrVersionConflict)
	}

	query := table.AggregateEvent.
		INSERT(table.AggregateEvent.AllColumns).
		MODELS(rows)

	if _, err := query.ExecContext(ctx, tx); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s %s was written concurrently: %w", h.AggregateType, id, aggregate.ErrVersionConflict)
		}
		return fmt.Errorf("failed to insert events for %s %s: %w", h.AggregateType, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events for %s %s: %w", h.AggregateType, id, err)
	}
	return nil
}

package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadworks/printshop-api/internal/events"
)

// EventStore persists domain events to the append-only domain_events table.
type EventStore struct {
	Pool *pgxpool.Pool
}

// NewEventStore builds a pool-backed store.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{Pool: pool}
}

// InsertEvent appends one event and returns it as stored.
func (s *EventStore) InsertEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	const q = `
INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.Pool.Exec(ctx, q, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

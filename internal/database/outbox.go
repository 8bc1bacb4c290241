package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
)

// insertOutboxTx appends an event inside the caller's transaction. A nil
// event is a no-op, so transitions without side effects share the same
// code path.
func insertOutboxTx(ctx context.Context, tx *sql.Tx, evt *models.OutboxEvent) error {
	if evt == nil {
		return nil
	}
	id := evt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, topic, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		id, evt.Topic, evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to record outbox event: %w", err)
	}
	return nil
}

// PickPending returns undispatched events, oldest first.
func (db *DB) PickPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, topic, payload, attempts, dispatched_at, created_at
		 FROM outbox_events
		 WHERE dispatched_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to pick outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.Attempts,
			&e.DispatchedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkDispatched records successful delivery.
func (db *DB) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE outbox_events SET dispatched_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dispatched: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter; the event is retried next tick.
func (db *DB) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := db.ExecContext(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/repository/base"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
)

type OutboxRepository struct {
	*base.Repository
}

func NewOutboxRepository(b *base.Repository) *OutboxRepository {
	return &OutboxRepository{Repository: b}
}

// Insert пишет событие через q, обычно внутри транзакции изменения.
// Контекст трассировки из ctx сохраняется вместе с событием.
func (r *OutboxRepository) Insert(ctx context.Context, q base.Querier, evt *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (event_id, event_type, aggregate_id, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if evt.Traceparent == "" {
		evt.Traceparent, evt.Tracestate = tracing.TraceContextStrings(ctx)
	}

	err := q.QueryRow(
		ctx, query,
		evt.EventID,
		evt.EventType,
		evt.AggregateID,
		evt.Payload,
		evt.Traceparent,
		evt.Tracestate,
	).Scan(&evt.ID, &evt.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

// FetchUnpublished берёт пачку неопубликованных событий с блокировкой строк
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, q base.Querier, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_id, event_type, aggregate_id, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*model.OutboxEvent
	for rows.Next() {
		var evt model.OutboxEvent
		if err := rows.Scan(
			&evt.ID,
			&evt.EventID,
			&evt.EventType,
			&evt.AggregateID,
			&evt.Payload,
			&evt.Traceparent,
			&evt.Tracestate,
			&evt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &evt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished отмечает события опубликованными
func (r *OutboxRepository) MarkPublished(ctx context.Context, q base.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1)`

	if _, err := q.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}

	return nil
}

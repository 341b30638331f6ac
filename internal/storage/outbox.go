package storage

import (
	"context"
	"database/sql"
	"time"
)

// OutboxRecord - событие, ожидающее публикации
type OutboxRecord struct {
	ID          int64
	EventID     string
	EventType   string
	AggregateID int64
	Payload     []byte
	Attempts    int
}

type OutboxStorage interface {
	// Enqueue сохраняет событие внутри бизнес-транзакции.
	Enqueue(ctx context.Context, tx *sql.Tx, rec OutboxRecord) error
	// ClaimBatch берёт в аренду до limit готовых событий, пропуская строки, заблокированные другими диспетчерами.
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error
}

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) OutboxStorage {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, tx *sql.Tx, rec OutboxRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (event_id, event_type, aggregate_id, payload)
		 VALUES ($1, $2, $3, $4)`,
		rec.EventID, rec.EventType, rec.AggregateID, rec.Payload,
	)
	return classify(err)
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int, lease time.Duration) (_ []OutboxRecord, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_id, event_type, aggregate_id, payload, attempts
		FROM outbox_events
		WHERE status IN ('pending', 'processing') AND next_retry <= NOW()
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, classify(err)
	}

	var batch []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err = rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.AggregateID, &rec.Payload, &rec.Attempts); err != nil {
			rows.Close()
			return nil, classify(err)
		}
		batch = append(batch, rec)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, classify(err)
	}

	releaseAt := time.Now().Add(lease)
	for _, rec := range batch {
		if _, err = tx.ExecContext(ctx,
			"UPDATE outbox_events SET status = 'processing', next_retry = $2, updated_at = NOW() WHERE id = $1",
			rec.ID, releaseAt,
		); err != nil {
			return nil, classify(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return batch, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE outbox_events SET status = 'sent', updated_at = NOW() WHERE id = $1", id)
	return classify(err)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = 'pending', attempts = attempts + 1, next_retry = $2, updated_at = NOW()
		 WHERE id = $1`, id, nextRetry)
	return classify(err)
}

package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/linemk/storefront-orders/internal/lib/metrics"
	"github.com/linemk/storefront-orders/internal/storage"
)

const (
	leaseTimeout   = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// Dispatcher переносит готовые строки outbox в брокер, пока жив контекст
type Dispatcher struct {
	log       *slog.Logger
	outbox    storage.OutboxStorage
	publisher Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

func NewDispatcher(log *slog.Logger, outbox storage.OutboxStorage, publisher Publisher, m *metrics.Metrics, interval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		log:       log.With(slog.String("component", "events.Dispatcher")),
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run блокируется до отмены ctx
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("outbox dispatch failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce публикует одну пачку и возвращает число отправленных событий
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch, err := d.outbox.ClaimBatch(ctx, d.batchSize, leaseTimeout)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range batch {
		if err := d.publishOne(ctx, rec); err != nil {
			d.log.Warn("publish event failed",
				slog.Int64("outboxID", rec.ID),
				slog.String("eventType", rec.EventType),
				slog.Any("error", err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) publishOne(ctx context.Context, rec storage.OutboxRecord) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, strconv.FormatInt(rec.AggregateID, 10), rec.Payload); err != nil {
		d.metrics.Published(rec.EventType, false)
		if markErr := d.outbox.MarkFailed(ctx, rec.ID, time.Now().Add(RetryDelay(rec.Attempts+1))); markErr != nil {
			d.log.Error("failed to reschedule event", slog.Int64("outboxID", rec.ID), slog.Any("error", markErr))
		}
		return err
	}
	d.metrics.Published(rec.EventType, true)
	return d.outbox.MarkSent(ctx, rec.ID)
}

// RetryDelay растёт как 2^attempts секунд, но не больше минуты
func RetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

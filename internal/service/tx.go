package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/storefront-orders/internal/lib/metrics"
	"github.com/linemk/storefront-orders/internal/storage"
)

// TxRunner выполняет единицу работы в одной транзакции с ограниченным ожиданием блокировок.
type TxRunner struct {
	db          *sql.DB
	log         *slog.Logger
	lockTimeout time.Duration
	maxRetries  int
	metrics     *metrics.Metrics
}

// NewTxRunner создаёт раннер. lockTimeout <= 0 оставляет значение сервера БД.
func NewTxRunner(log *slog.Logger, db *sql.DB, lockTimeout time.Duration, maxRetries int, m *metrics.Metrics) *TxRunner {
	return &TxRunner{
		db:          db,
		log:         log,
		lockTimeout: lockTimeout,
		maxRetries:  maxRetries,
		metrics:     m,
	}
}

// Run выполняет fn в одной транзакции и коммитит её. Любая ошибка откатывает всю единицу работы.
// При временной ошибке (таймаут блокировки, дедлок, обрыв соединения) fn запускается заново
// не более maxRetries раз, поэтому fn не должна хранить состояние между вызовами.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	logger := r.log.With(slog.String("op", op))

	for attempt := 0; ; attempt++ {
		err := r.runOnce(ctx, logger, fn)
		if err == nil {
			return nil
		}
		if !storage.IsTransient(err) || attempt >= r.maxRetries || ctx.Err() != nil {
			return err
		}
		r.metrics.TxRetry(op)
		logger.Warn("transient failure, retrying transaction", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
}

func (r *TxRunner) runOnce(ctx context.Context, logger *slog.Logger, fn func(tx *sql.Tx) error) error {
	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("failed to begin transaction: %w", storage.Classify(err))
	}

	if r.lockTimeout > 0 {
		// SET не принимает параметры
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			rollback(logger, tx)
			return fmt.Errorf("failed to set lock timeout: %w", storage.Classify(err))
		}
	}

	if err := fn(tx); err != nil {
		rollback(logger, tx)
		return err
	}

	// Коммит транзакции
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("failed to commit transaction: %w", storage.Classify(err))
	}
	return nil
}

func rollback(logger *slog.Logger, tx *sql.Tx) {
	// при отменённом контексте транзакция уже откатана
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/storage"
)

// classify переводит ошибки хранилища в ошибки приложения, уже классифицированные проходят как есть
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case storage.IsTransient(err):
		return apperr.Transient(err)
	case errors.Is(err, storage.ErrConstraint):
		return apperr.Fatal(err)
	case errors.Is(err, storage.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, storage.ErrOrderNotFound):
		return apperr.NotFound("order not found")
	case errors.Is(err, storage.ErrProductNotFound):
		return apperr.NotFound("product not found")
	case errors.Is(err, storage.ErrCartItemNotFound):
		return apperr.NotFound("cart item not found")
	case errors.Is(err, storage.ErrQuantityLimit):
		return apperr.Validation(apperr.FieldError{Field: "quantity", Rule: "lte", Message: "must be at most 10000"})
	}
	return err
}

// resultLabel - метка результата операции для метрик
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := apperr.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// logFailure пишет ошибки клиента в warn, остальное в error
func logFailure(logger *slog.Logger, msg string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindConflict:
		logger.Warn(msg, slog.Any("error", err))
	default:
		logger.Error(msg, slog.Any("error", err))
	}
}

// StatusListener узнаёт о закоммиченной смене статуса заказа
type StatusListener interface {
	OrderStatusChanged(ctx context.Context, change models.StatusChange) error
}

type StatusListeners []StatusListener

func (ls StatusListeners) notify(ctx context.Context, logger *slog.Logger, change models.StatusChange) {
	// транзакция уже закоммичена, отвалившийся клиент не должен остановить рассылку
	ctx = context.WithoutCancel(ctx)
	for _, l := range ls {
		if err := l.OrderStatusChanged(ctx, change); err != nil {
			logger.Warn("status listener failed", slog.Int64("orderID", change.OrderID), slog.Any("error", err))
		}
	}
}

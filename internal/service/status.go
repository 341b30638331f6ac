package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/storage"
)

type UpdateStatusRequest struct {
	OrderID int64  `json:"orderId" validate:"gt=0"`
	Status  string `json:"status" validate:"required,order_status"`
}

type StatusService interface {
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*models.Order, error)
}

type statusService struct {
	log       *slog.Logger
	tx        *TxRunner
	orderRepo storage.OrderStorage
	outbox    storage.OutboxStorage
	listeners StatusListeners
}

func NewStatusService(
	log *slog.Logger,
	tx *TxRunner,
	orderRepo storage.OrderStorage,
	outbox storage.OutboxStorage,
	listeners StatusListeners,
) StatusService {
	return &statusService{
		log:       log,
		tx:        tx,
		orderRepo: orderRepo,
		outbox:    outbox,
		listeners: listeners,
	}
}

// UpdateStatus ставит любой статус из допустимого набора. Это ручная правка админом,
// проверяется только принадлежность набору.
func (s *statusService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*models.Order, error) {
	const op = "service.StatusService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", req.OrderID))

	if err := validateStruct(req); err != nil {
		logger.Warn("invalid status request", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	status, _ := models.ParseOrderStatus(req.Status)

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := s.tx.Run(ctx, op, func(tx *sql.Tx) error {
		// Блокируем заказ через транзакцию
		o, err := s.orderRepo.LockOrderTx(ctx, tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		from = o.Status

		// Обновляем статус
		if err := s.orderRepo.UpdateStatus(ctx, tx, o.ID, status); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		// Записываем событие в outbox
		rec, err := events.NewRecord(events.TypeOrderStatusChanged, o.ID, events.OrderStatusChanged{
			OrderID: o.ID,
			From:    string(from),
			To:      string(status),
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, tx, rec); err != nil {
			return fmt.Errorf("failed to enqueue status event: %w", err)
		}

		o.Status = status
		order = o
		return nil
	})
	if err != nil {
		err = classify(err)
		logFailure(logger, "status update failed", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("order status updated", slog.String("from", string(from)), slog.String("to", string(status)))
	s.listeners.notify(ctx, logger, models.StatusChange{OrderID: order.ID, UserID: order.UserID, Status: status})
	return order, nil
}

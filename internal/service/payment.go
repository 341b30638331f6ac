package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/lib/metrics"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
)

type PayRequest struct {
	OrderID int64           `json:"orderId" validate:"gt=0"`
	UserID  int64           `json:"-"`
	Method  string          `json:"method" validate:"required,payment_method"`
	Amount  decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type PayResult struct {
	PaymentID int64              `json:"paymentId"`
	OrderID   int64              `json:"orderId"`
	Status    models.OrderStatus `json:"status"`
}

type PaymentService interface {
	Pay(ctx context.Context, req PayRequest) (*PayResult, error)
}

type paymentService struct {
	log       *slog.Logger
	tx        *TxRunner
	orderRepo storage.OrderStorage
	ledger    storage.PaymentStorage
	outbox    storage.OutboxStorage
	listeners StatusListeners
	metrics   *metrics.Metrics
}

func NewPaymentService(
	log *slog.Logger,
	tx *TxRunner,
	orderRepo storage.OrderStorage,
	ledger storage.PaymentStorage,
	outbox storage.OutboxStorage,
	listeners StatusListeners,
	m *metrics.Metrics,
) PaymentService {
	return &paymentService{
		log:       log,
		tx:        tx,
		orderRepo: orderRepo,
		ledger:    ledger,
		outbox:    outbox,
		listeners: listeners,
		metrics:   m,
	}
}

// Pay оплачивает заказ в статусе PENDING и переводит его в PROCESSING.
// Строка заказа заблокирована до конца транзакции, поэтому две одновременные оплаты
// одного заказа выполняются по очереди, и вторая видит уже PROCESSING.
// Ненулевой UserID разрешает оплату только владельцу заказа.
func (s *paymentService) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	const op = "service.PaymentService.Pay"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", req.OrderID))

	if err := validateStruct(req); err != nil {
		s.metrics.PaymentResult(resultLabel(err))
		logger.Warn("invalid payment request", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	method, _ := models.ParsePaymentMethod(req.Method)

	var (
		result *PayResult
		change models.StatusChange
	)
	err := s.tx.Run(ctx, op, func(tx *sql.Tx) error {
		// Блокируем заказ через транзакцию
		order, err := s.orderRepo.LockOrderTx(ctx, tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		// Чужой заказ отдаём как несуществующий
		if req.UserID != 0 && order.UserID != req.UserID {
			return apperr.NotFound("order %d not found", req.OrderID)
		}
		// Проверяем, что заказ можно оплатить и суммы хватает
		if !order.Status.Payable() {
			return apperr.Conflict(apperr.CodeInvalidState,
				"order %d cannot be paid in status %s", order.ID, order.Status)
		}
		if req.Amount.LessThan(order.Total) {
			return apperr.Conflict(apperr.CodeInsufficientPayment,
				"payment amount %s is less than order total %s", req.Amount.String(), order.Total.String())
		}

		// Записываем платёж
		payment := &models.Payment{
			OrderID: order.ID,
			Method:  method,
			Amount:  req.Amount,
			Status:  models.PaymentSettled,
		}
		paymentID, err := s.ledger.InsertPayment(ctx, tx, payment)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		// Переводим заказ в PROCESSING
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, models.StatusProcessing); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		// Событие уходит в outbox в той же транзакции
		rec, err := events.NewRecord(events.TypePaymentSettled, order.ID, events.PaymentSettled{
			PaymentID: paymentID,
			OrderID:   order.ID,
			Method:    string(method),
			Amount:    req.Amount,
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Enqueue(ctx, tx, rec); err != nil {
			return fmt.Errorf("failed to enqueue payment event: %w", err)
		}

		result = &PayResult{PaymentID: paymentID, OrderID: order.ID, Status: models.StatusProcessing}
		change = models.StatusChange{OrderID: order.ID, UserID: order.UserID, Status: models.StatusProcessing}
		return nil
	})
	if err != nil {
		err = classify(err)
		s.metrics.PaymentResult(resultLabel(err))
		logFailure(logger, "payment failed", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.PaymentResult(resultLabel(nil))
	logger.Info("payment settled", slog.Int64("paymentID", result.PaymentID), slog.String("method", string(method)))
	// Кэш и websocket обновляются только после коммита
	s.listeners.notify(ctx, logger, change)
	return result, nil
}

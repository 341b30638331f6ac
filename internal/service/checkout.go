package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/lib/metrics"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
)

type CheckoutResult struct {
	OrderID     int64              `json:"orderId"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Status      models.OrderStatus `json:"status"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID int64) (*CheckoutResult, error)
}

type checkoutService struct {
	log       *slog.Logger
	tx        *TxRunner
	userRepo  storage.UserStorage
	cartRepo  storage.CartStorage
	inventory storage.InventoryStorage
	orderRepo storage.OrderStorage
	outbox    storage.OutboxStorage
	metrics   *metrics.Metrics
}

func NewCheckoutService(
	log *slog.Logger,
	tx *TxRunner,
	userRepo storage.UserStorage,
	cartRepo storage.CartStorage,
	inventory storage.InventoryStorage,
	orderRepo storage.OrderStorage,
	outbox storage.OutboxStorage,
	m *metrics.Metrics,
) CheckoutService {
	return &checkoutService{
		log:       log,
		tx:        tx,
		userRepo:  userRepo,
		cartRepo:  cartRepo,
		inventory: inventory,
		orderRepo: orderRepo,
		outbox:    outbox,
		metrics:   m,
	}
}

// Checkout оформляет корзину пользователя в заказ со статусом PENDING.
// Блокировки берутся в одном порядке: пользователь, строки корзины, товары по возрастанию id.
// Остатки проверяются по заблокированным строкам, поэтому параллельные оформления не уводят склад в минус.
// Если что-то идет не так, транзакция откатывается.
func (s *checkoutService) Checkout(ctx context.Context, userID int64) (*CheckoutResult, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if err := positiveID("userId", userID); err != nil {
		s.metrics.CheckoutResult(resultLabel(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("starting checkout transaction")

	var result *CheckoutResult
	err := s.tx.Run(ctx, op, func(tx *sql.Tx) error {
		res, err := s.checkout(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		err = classify(err)
		s.metrics.CheckoutResult(resultLabel(err))
		logFailure(logger, "checkout failed", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.CheckoutResult(resultLabel(nil))
	logger.Info("checkout completed",
		slog.Int64("orderID", result.OrderID),
		slog.String("total", result.TotalAmount.String()),
	)
	return result, nil
}

func (s *checkoutService) checkout(ctx context.Context, tx *sql.Tx, userID int64) (*CheckoutResult, error) {
	// Получаем пользователя через транзакцию
	if _, err := s.userRepo.LockUserByIDTx(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	// Блокируем и читаем корзину
	cart, err := s.cartRepo.LockAndReadLines(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, apperr.Conflict(apperr.CodeEmptyCart, "cart is empty")
	}

	// Товары блокируем строго по возрастанию id
	productIDs := make([]int64, 0, len(cart))
	for _, line := range cart {
		productIDs = append(productIDs, line.ProductID)
	}
	slices.Sort(productIDs)

	stock, err := s.inventory.LockAndReadStock(ctx, tx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	// Проверяем остатки и считаем сумму, цены берём только из заблокированных строк товаров
	total := decimal.Zero
	lines := make([]models.OrderLine, 0, len(cart))
	for _, line := range cart {
		level, ok := stock[line.ProductID]
		if !ok {
			return nil, apperr.NotFound("product %d not found", line.ProductID)
		}
		if line.Quantity > level.Stock {
			return nil, apperr.Conflict(apperr.CodeInsufficientStock,
				"insufficient stock for product %q (id %d): requested %d, available %d",
				level.Name, level.ProductID, line.Quantity, level.Stock)
		}
		subtotal := level.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)
		lines = append(lines, models.OrderLine{
			ProductID:   line.ProductID,
			ProductName: level.Name,
			Quantity:    line.Quantity,
			UnitPrice:   level.Price,
			Subtotal:    subtotal,
		})
	}

	// Создаем заказ
	order := &models.Order{
		UserID: userID,
		Total:  total,
		Status: models.StatusPending,
	}
	orderID, err := s.orderRepo.CreateOrder(ctx, tx, order, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Списываем остатки
	for _, line := range lines {
		if err := s.inventory.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	// Очищаем корзину
	if err := s.cartRepo.ClearAll(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	// Событие о заказе пишем в outbox
	if err := s.enqueueOrderCreated(ctx, tx, order, lines); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		OrderID:     orderID,
		TotalAmount: total,
		Status:      models.StatusPending,
	}, nil
}

func (s *checkoutService) enqueueOrderCreated(ctx context.Context, tx *sql.Tx, order *models.Order, lines []models.OrderLine) error {
	payload := events.OrderCreated{
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
		Lines:   make([]events.OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		payload.Lines = append(payload.Lines, events.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	rec, err := events.NewRecord(events.TypeOrderCreated, order.ID, payload)
	if err != nil {
		return err
	}
	if err := s.outbox.Enqueue(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to enqueue order event: %w", err)
	}
	return nil
}

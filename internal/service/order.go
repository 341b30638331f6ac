package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/storage"
)

// StatusCache кэширует статусы заказов.
// Fill пишет значение, прочитанное из БД, только если ключа ещё нет,
// чтобы не затереть более свежий статус, записанный после коммита.
type StatusCache interface {
	Get(ctx context.Context, userID, orderID int64) (models.OrderStatus, bool, error)
	Fill(ctx context.Context, userID, orderID int64, status models.OrderStatus) error
}

// OrderService отвечает на запросы владельца о его заказах.
type OrderService interface {
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*models.OrderDetails, error)
	GetStatus(ctx context.Context, userID, orderID int64) (models.OrderStatus, error)
}

type orderService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	ledger    storage.PaymentStorage
	cache     StatusCache
}

// NewOrderService создаёт сервис запросов по заказам. cache может быть nil.
func NewOrderService(log *slog.Logger, orderRepo storage.OrderStorage, ledger storage.PaymentStorage, cache StatusCache) OrderService {
	return &orderService{
		log:       log,
		orderRepo: orderRepo,
		ledger:    ledger,
		cache:     cache,
	}
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		err = classify(err)
		logFailure(logger, "failed to list orders", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// GetOrder возвращает заказ со строками и платежами. Чужие заказы выглядят как несуществующие.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.OrderDetails, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		logFailure(logger, "failed to get order", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lines, err := s.orderRepo.GetOrderLines(ctx, orderID)
	if err != nil {
		err = classify(err)
		logFailure(logger, "failed to get order lines", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payments, err := s.ledger.GetPaymentsByOrderID(ctx, orderID)
	if err != nil {
		err = classify(err)
		logFailure(logger, "failed to get payments", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.OrderDetails{Order: *order, Lines: lines, Payments: payments}, nil
}

func (s *orderService) GetStatus(ctx context.Context, userID, orderID int64) (models.OrderStatus, error) {
	const op = "service.OrderService.GetStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	// Сначала смотрим в кэш, ошибка кэша не мешает ответу
	if s.cache != nil {
		status, ok, err := s.cache.Get(ctx, userID, orderID)
		if err != nil {
			logger.Warn("status cache read failed", slog.Any("error", err))
		} else if ok {
			return status, nil
		}
	}

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		logFailure(logger, "failed to get order status", err)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Fill(ctx, userID, orderID, order.Status); err != nil {
			logger.Warn("status cache write failed", slog.Any("error", err))
		}
	}
	return order.Status, nil
}

func (s *orderService) ownedOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	if err := positiveID("orderId", orderID); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify(err)
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order %d not found", orderID)
	}
	return order, nil
}

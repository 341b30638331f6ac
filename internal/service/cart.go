package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
)

type CartItemRequest struct {
	UserID    int64 `json:"-"`
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0,lte=10000"`
}

// CartService редактирует корзину, из которой потом оформляется заказ.
// Остатки здесь не резервируются, они проверяются только при оформлении.
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, req CartItemRequest) error
	SetQuantity(ctx context.Context, req CartItemRequest) error
	RemoveItem(ctx context.Context, userID, productID int64) error
}

type cartService struct {
	log      *slog.Logger
	cartRepo storage.CartStorage
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage) CartService {
	return &cartService{log: log, cartRepo: cartRepo}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	const op = "service.CartService.GetCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	items, err := s.cartRepo.ListItems(ctx, userID)
	if err != nil {
		err = classify(err)
		logFailure(logger, "failed to list cart", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart := &models.Cart{Items: items, Total: decimal.Zero}
	for i := range cart.Items {
		it := &cart.Items[i]
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		cart.Total = cart.Total.Add(it.Subtotal)
	}
	return cart, nil
}

// AddItem прибавляет количество к строке товара, создавая строку при отсутствии
func (s *cartService) AddItem(ctx context.Context, req CartItemRequest) error {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", req.UserID), slog.Int64("productID", req.ProductID))

	if err := validateStruct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cartRepo.Upsert(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		err = classify(err)
		logFailure(logger, "failed to add cart item", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("cart item added", slog.Int("quantity", req.Quantity))
	return nil
}

func (s *cartService) SetQuantity(ctx context.Context, req CartItemRequest) error {
	const op = "service.CartService.SetQuantity"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", req.UserID), slog.Int64("productID", req.ProductID))

	if err := validateStruct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cartRepo.SetQuantity(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		err = classify(err)
		logFailure(logger, "failed to update cart item", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	const op = "service.CartService.RemoveItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	if err := positiveID("productId", productID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		err = classify(err)
		logFailure(logger, "failed to remove cart item", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

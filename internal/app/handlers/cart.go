package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront-orders/internal/service"
)

type CartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCartHandler обрабатывает запрос GET /api/cart.
func GetCartHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		cart, err := carts.GetCart(r.Context(), uid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, cart)
	}
}

// AddCartItemHandler обрабатывает запрос POST /api/cart/items.
func AddCartItemHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		var body CartItemRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}
		err := carts.AddItem(r.Context(), service.CartItemRequest{UserID: uid, ProductID: body.ProductID, Quantity: body.Quantity})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetCartItemHandler обрабатывает запрос PATCH /api/cart/items/{productId}.
func SetCartItemHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SetCartItemHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		productID, err := pathID(r, "productId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var body QuantityRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}
		err = carts.SetQuantity(r.Context(), service.CartItemRequest{UserID: uid, ProductID: productID, Quantity: body.Quantity})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemoveCartItemHandler обрабатывает запрос DELETE /api/cart/items/{productId}.
func RemoveCartItemHandler(log *slog.Logger, carts service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		productID, err := pathID(r, "productId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := carts.RemoveItem(r.Context(), uid, productID); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/shopspring/decimal"
)

// CheckoutHandler обрабатывает запрос POST /api/orders. Тело игнорируется, заказ собирается из корзины пользователя.
func CheckoutHandler(log *slog.Logger, checkout service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}

		// Вызываем бизнес-логику оформления
		res, err := checkout.Checkout(r.Context(), uid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, res)
	}
}

type PaymentRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// PayHandler обрабатывает запрос POST /api/orders/{orderId}/payments.
func PayHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PayHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		orderID, err := pathID(r, "orderId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var body PaymentRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}

		// Вызываем бизнес-логику оплаты
		res, err := payments.Pay(r.Context(), service.PayRequest{
			OrderID: orderID,
			UserID:  uid,
			Method:  body.Method,
			Amount:  body.Amount,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, res)
	}
}

type StatusRequest struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	OrderID int64              `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

// UpdateStatusHandler обрабатывает запрос POST /api/orders/{orderId}/status, только для админа.
func UpdateStatusHandler(log *slog.Logger, statuses service.StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := pathID(r, "orderId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var body StatusRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, logger, err)
			return
		}

		order, err := statuses.UpdateStatus(r.Context(), service.UpdateStatusRequest{OrderID: orderID, Status: body.Status})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, StatusResponse{OrderID: order.ID, Status: order.Status})
	}
}

// ListOrdersHandler обрабатывает запрос GET /api/orders.
func ListOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		list, err := orders.ListOrders(r.Context(), uid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, list)
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{orderId}.
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		orderID, err := pathID(r, "orderId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		details, err := orders.GetOrder(r.Context(), uid, orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, details)
	}
}

// GetOrderStatusHandler обрабатывает запрос GET /api/orders/{orderId}/status.
func GetOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		uid, ok := userID(w, r, logger)
		if !ok {
			return
		}
		orderID, err := pathID(r, "orderId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		status, err := orders.GetStatus(r.Context(), uid, orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, StatusResponse{OrderID: orderID, Status: status})
	}
}

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

var orderStatuses = map[OrderStatus]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ParseOrderStatus сравнивает s с допустимыми статусами без учёта регистра
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := orderStatuses[st]
	return st, ok
}

// Payable сообщает, можно ли принять оплату в этом статусе
func (s OrderStatus) Payable() bool {
	return s == StatusPending
}

// Order - заголовок заказа, сумма фиксируется при оформлении
type Order struct {
	ID        int64           `json:"orderId"`
	UserID    int64           `json:"userId"`
	Total     decimal.Decimal `json:"totalAmount"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// OrderLine - неизменный снимок купленного товара
type OrderLine struct {
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderDetails struct {
	Order
	Lines    []OrderLine `json:"lines"`
	Payments []Payment   `json:"payments"`
}

// StatusChange отправляется после закоммиченной смены статуса
type StatusChange struct {
	OrderID int64       `json:"orderId"`
	UserID  int64       `json:"-"`
	Status  OrderStatus `json:"status"`
}

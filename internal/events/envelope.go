// Package events доставляет события заказов из таблицы outbox в брокер сообщений.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated       = "order.created"
	TypePaymentSettled     = "payment.settled"
	TypeOrderStatusChanged = "order.status_changed"
)

const producer = "storefront-orders"

type Envelope struct {
	EventID      string          `json:"eventId"`
	EventType    string          `json:"eventType"`
	EventVersion int             `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Producer     string          `json:"producer"`
	AggregateID  int64           `json:"aggregateId"`
	Payload      json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderCreated struct {
	OrderID int64           `json:"orderId"`
	UserID  int64           `json:"userId"`
	Total   decimal.Decimal `json:"totalAmount"`
	Lines   []OrderLine     `json:"lines"`
}

type PaymentSettled struct {
	PaymentID int64           `json:"paymentId"`
	OrderID   int64           `json:"orderId"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

type OrderStatusChanged struct {
	OrderID int64  `json:"orderId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// NewRecord заворачивает payload в конверт и возвращает строку для outbox
func NewRecord(eventType string, aggregateID int64, payload any) (storage.OutboxRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return storage.OutboxRecord{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		AggregateID:  aggregateID,
		Payload:      body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return storage.OutboxRecord{}, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return storage.OutboxRecord{
		EventID:     env.EventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     raw,
	}, nil
}

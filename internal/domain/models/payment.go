package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodQRIS          PaymentMethod = "QRIS"
	MethodMobileBanking PaymentMethod = "MOBILE_BANKING"
	MethodVA            PaymentMethod = "VA"
	MethodDANA          PaymentMethod = "DANA"
)

// ParsePaymentMethod сравнивает без учёта регистра и возвращает форму в верхнем регистре
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodQRIS, MethodMobileBanking, MethodVA, MethodDANA:
		return m, true
	}
	return "", false
}

type PaymentStatus string

const PaymentSettled PaymentStatus = "SETTLED"

type Payment struct {
	ID        int64           `json:"paymentId"`
	OrderID   int64           `json:"orderId"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

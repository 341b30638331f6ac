package models

import "github.com/shopspring/decimal"

// StockLevel - строка товара, прочитанная под блокировкой при оформлении
type StockLevel struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Stock     int
}

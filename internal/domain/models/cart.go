package models

import "github.com/shopspring/decimal"

// CartLine - строка корзины (пользователь, товар), цены здесь не хранятся
type CartLine struct {
	UserID    int64
	ProductID int64
	Quantity  int
}

// CartItem - строка корзины с текущей ценой товара
type CartItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

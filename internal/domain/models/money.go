package models

import "github.com/shopspring/decimal"

// Денежные суммы в JSON отдаются числом: {"totalAmount":250}
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

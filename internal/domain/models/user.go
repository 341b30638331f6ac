package models

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User - аккаунт магазина
type User struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	PassHash  []byte
	Role      string
	CreatedAt time.Time
}

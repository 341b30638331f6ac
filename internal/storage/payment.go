package storage

import (
	"context"
	"database/sql"

	"github.com/linemk/storefront-orders/internal/domain/models"
)

// PaymentStorage описывает журнал платежей.
// Повторная оплата заказа, который админ вернул в PENDING, даёт вторую строку.
type PaymentStorage interface {
	InsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) (int64, error)
	GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentStorage {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) InsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) (int64, error) {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, method, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, created_at`,
		p.OrderID, p.Method, p.Amount, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return p.ID, nil
}

func (r *paymentRepository) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, order_id, method, amount, status, created_at FROM payments WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, classify(err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return payments, nil
}

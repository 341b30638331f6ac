package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/linemk/storefront-orders/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами, бизнес-правил здесь нет.
type OrderStorage interface {
	// CreateOrder вставляет заказ и все его строки в транзакции и возвращает id заказа.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []models.OrderLine) (int64, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	// LockOrderTx читает заказ, удерживая блокировку строки до конца транзакции.
	LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = "id, user_id, total_amount, status, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	if err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, classify(err)
	}
	return o, nil
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []models.OrderLine) (int64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: order without lines", ErrConstraint)
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total_amount, status, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		order.UserID, order.Total, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return 0, classify(err)
	}

	// все строки одним INSERT
	var sb strings.Builder
	sb.WriteString("INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal) VALUES ")
	args := make([]any, 0, len(lines)*5)
	for i, l := range lines {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, order.ID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return 0, classify(err)
	}
	return order.ID, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID)
	return scanOrder(row)
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID)
	return scanOrder(row)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID,
	)
	return affectedOrNotFound(res, err, ErrOrderNotFound)
}

// GetOrderLines возвращает строки заказа с JOIN, чтобы получить имя товара.
func (r *orderRepository) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	query := `
		SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price, oi.subtotal
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.product_id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, classify(err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return lines, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return orders, nil
}

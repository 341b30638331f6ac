package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/storefront-orders/internal/domain/models"
)

// InventoryStorage описывает методы для работы с остатками. Оба метода работают внутри транзакции вызывающего.
type InventoryStorage interface {
	// LockAndReadStock блокирует строки товаров по возрастанию id и возвращает их по id.
	// Несуществующих id в результате нет.
	LockAndReadStock(ctx context.Context, tx *sql.Tx, productIDs []int64) (map[int64]models.StockLevel, error)
	// Decrement списывает qty с остатка, при уходе в минус возвращает ErrConstraint.
	Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error
}

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryStorage {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) LockAndReadStock(ctx context.Context, tx *sql.Tx, productIDs []int64) (map[int64]models.StockLevel, error) {
	query := `
		SELECT id, name, price, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	levels := make(map[int64]models.StockLevel, len(productIDs))
	for rows.Next() {
		var l models.StockLevel
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Price, &l.Stock); err != nil {
			return nil, classify(err)
		}
		levels[l.ProductID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return levels, nil
}

func (r *inventoryRepository) Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		qty, productID,
	)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: stock of product %d would go negative", ErrConstraint, productID)
	}
	return nil
}

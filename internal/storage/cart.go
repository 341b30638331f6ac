package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/linemk/storefront-orders/internal/domain/models"
)

// CartStorage описывает методы для работы с корзиной. LockAndReadLines и ClearAll работают внутри транзакции оформления,
// остальные - одиночные запросы.
type CartStorage interface {
	LockAndReadLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error)
	ClearAll(ctx context.Context, tx *sql.Tx, userID int64) error

	// Upsert прибавляет deltaQty к строке, создавая её при отсутствии.
	Upsert(ctx context.Context, userID, productID int64, deltaQty int) error
	SetQuantity(ctx context.Context, userID, productID int64, qty int) error
	Remove(ctx context.Context, userID, productID int64) error
	ListItems(ctx context.Context, userID int64) ([]models.CartItem, error)
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) LockAndReadLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		line := models.CartLine{UserID: userID}
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, classify(err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return lines, nil
}

func (r *cartRepository) ClearAll(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return classify(err)
	}
	return nil
}

func (r *cartRepository) Upsert(ctx context.Context, userID, productID int64, deltaQty int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, userID, productID, deltaQty); err != nil {
		code, constraint := pqCode(err)
		switch {
		case code == codeForeignKeyViolation && strings.Contains(constraint, "user"):
			return ErrUserNotFound
		case code == codeForeignKeyViolation:
			return ErrProductNotFound
		// сумма строки вышла за лимит cart_items_quantity_limit
		case code == codeCheckViolation && constraint == "cart_items_quantity_limit", code == codeNumericOutOfRange:
			return ErrQuantityLimit
		}
		return classify(err)
	}
	return nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE user_id = $2 AND product_id = $3",
		qty, userID, productID,
	)
	return affectedOrNotFound(res, err, ErrCartItemNotFound)
}

func (r *cartRepository) Remove(ctx context.Context, userID, productID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID,
	)
	return affectedOrNotFound(res, err, ErrCartItemNotFound)
}

func (r *cartRepository) ListItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	query := `
		SELECT c.product_id, p.name, p.price, c.quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, classify(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func affectedOrNotFound(res sql.Result, err error, notFound error) error {
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/storefront-orders/internal/domain/models"
)

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// LockUserByIDTx блокирует строку пользователя до конца транзакции.
	LockUserByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

const userColumns = "id, name, email, phone, pass_hash, role, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.PassHash, &user.Role, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, classify(err)
	}
	return user, nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (name, email, phone, pass_hash, role) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		user.Name, user.Email, user.Phone, user.PassHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if code, _ := pqCode(err); code == codeUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, classify(err)
	}
	return user, nil
}

func (r *userRepository) LockUserByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
	return scanUser(row)
}

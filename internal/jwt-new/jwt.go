package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/storefront-orders/internal/domain/models"
)

// NewToken генерирует JWT-токен для указанного пользователя с заданным временем жизни.
func NewToken(ctx context.Context, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secretStr := os.Getenv("JWT_SECRET")
	if secretStr == "" {
		return "", errors.New("JWT_SECRET environment variable is not set")
	}
	return token.SignedString([]byte(secretStr))
}

package jwtmiddleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"
)

type options struct {
	queryParam string
}

type Option func(*options)

// WithQueryToken разрешает передать токен в query-параметре, если заголовка Authorization нет.
// Нужен для websocket: браузер не умеет ставить заголовки при апгрейде.
func WithQueryToken(param string) Option {
	return func(o *options) {
		o.queryParam = param
	}
}

// NewJWTMiddleware создаёт middleware для проверки JWT, секрет берётся из переменной окружения.
// В контекст запроса кладутся userID и роль.
func NewJWTMiddleware(opts ...Option) func(http.Handler) http.Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r, o)
			if !ok {
				return401(w, r)
				return
			}

			// Парсинг и проверка токена
			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				// Проверка алгоритма
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			// Извлекаем идентификатор пользователя из поля "sub"
			sub, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "invalid token claims: sub not found", http.StatusUnauthorized)
				return
			}

			userID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil {
				http.Error(w, "invalid token claims: invalid user id", http.StatusUnauthorized)
				return
			}

			role, _ := claims["role"].(string)

			// Устанавливаем userID и роль в контекст запроса
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken берёт токен из заголовка Authorization (формат: "Bearer <token>"),
// а если заголовка нет и это разрешено, из query-параметра.
func extractToken(r *http.Request, o options) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if o.queryParam == "" {
			return "", false
		}
		tok := r.URL.Query().Get(o.queryParam)
		return tok, tok != ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func return401(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		http.Error(w, "invalid token format", http.StatusUnauthorized)
		return
	}
	http.Error(w, "missing token", http.StatusUnauthorized)
}

// FromContext извлекает userID из контекста.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

// RequireRole пропускает только запросы с нужной ролью в токене.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

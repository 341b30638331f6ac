package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/storefront-orders/internal/domain/models"
	security "github.com/linemk/storefront-orders/internal/jwt-new"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone"`
}

type AuthServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (int64, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

// Register создаёт аккаунт покупателя. Пароль хэшируется через bcrypt (автоматически добавляет соль).
func (a *AuthService) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	const op = "service.AuthService.Register"
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	logger := a.log.With(slog.String("op", op), slog.String("email", req.Email))

	if err := validateStruct(req); err != nil {
		logger.Warn("invalid registration request", slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		PassHash: passHash,
		Role:     models.RoleCustomer,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			logger.Warn("email already registered")
			return 0, fmt.Errorf("%s: %w", op, apperr.Conflict(apperr.CodeEmailTaken, "email is already registered"))
		}
		err = classify(err)
		logger.Error("failed to create user", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return user.ID, nil
}

// Login сравнивает пароль с сохранённым хэшем и выдаёт JWT-токен с ролью пользователя.
// Неизвестный email и неверный пароль дают одинаковую ошибку.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.AuthService.Login"
	email = strings.ToLower(strings.TrimSpace(email))
	logger := a.log.With(slog.String("op", op), slog.String("email", email))

	invalid := apperr.Conflict(apperr.CodeInvalidCredentials, "invalid email or password")
	if email == "" || password == "" {
		return "", fmt.Errorf("%s: %w", op, invalid)
	}

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("unknown email")
			return "", fmt.Errorf("%s: %w", op, invalid)
		}
		err = classify(err)
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: %w", op, invalid)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, nil
}

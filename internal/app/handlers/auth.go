package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront-orders/internal/service"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type RegisterResponse struct {
	UserID int64 `json:"userId"`
}

// RegisterHandler обрабатывает запрос POST /api/auth/register.
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req service.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		id, err := authService.Register(r.Context(), req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, RegisterResponse{UserID: id})
	}
}

// LoginHandler обрабатывает запрос POST /api/auth/login.
func LoginHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, AuthResponse{Token: token})
	}
}

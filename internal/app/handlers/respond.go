package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
)

type ErrorBody struct {
	Kind    string              `json:"kind"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// StatusFor сопоставляет ошибке HTTP-статус.
func StatusFor(err error) int {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case apperr.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.CodeEmailTaken:
		return http.StatusConflict
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError отдаёт ошибку клиенту, детали неклассифицированных и фатальных ошибок остаются только в логе
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	body := ErrorBody{
		Kind:    apperr.KindUnknown.String(),
		Code:    "INTERNAL",
		Message: "internal server error",
	}
	if e, ok := apperr.As(err); ok {
		body.Kind = e.Kind.String()
		body.Code = string(e.Code)
		body.Message = e.Message
		body.Fields = e.Fields
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, logger, status, ErrorResponse{Error: body})
}

// decodeJSON читает тело запроса в dst, пустое тело оставляет dst как есть
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation(apperr.FieldError{Field: "body", Rule: "json", Message: "malformed JSON: " + err.Error()})
}

// pathID разбирает положительный целый URL-параметр
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(apperr.FieldError{Field: name, Rule: "gt", Message: "must be a positive integer"})
	}
	return id, nil
}

// userID извлекает userID из контекста (установленного JWT middleware), иначе пишет 401
func userID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	id, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return id, true
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler обрабатывает запрос GET /healthz, пингует БД.
func HealthHandler(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.HealthHandler"
		logger := log.With(slog.String("op", op))

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("database ping failed", slog.Any("error", err))
			writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

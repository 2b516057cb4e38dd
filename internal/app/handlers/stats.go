package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/service"
)

// StatsHandler обрабатывает запрос GET /api/stats (для ресторана).
func StatsHandler(log *slog.Logger, statsService service.StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StatsHandler"
		logger := log.With(slog.String("op", op))

		restaurantID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("restaurantID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		stats, err := statsService.GetStats(r.Context(), restaurantID)
		if err != nil {
			logger.Error("failed to get stats", slog.Any("error", err))
			http.Error(w, "failed to get stats", statusFromError(err))
			return
		}

		writeJSON(w, logger, stats)
	}
}

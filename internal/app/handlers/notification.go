package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/service"
)

// RegisterTokenRequest — регистрация push-токена устройства.
type RegisterTokenRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

// RegisterTokenHandler обрабатывает запрос POST /api/notifications/token
func RegisterTokenHandler(log *slog.Logger, notifyService service.NotifyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterTokenHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req RegisterTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		if err := notifyService.RegisterToken(r.Context(), userID, req.DeviceID, req.Token); err != nil {
			logger.Error("failed to register token", slog.Any("error", err))
			http.Error(w, "failed to register token", statusFromError(err))
			return
		}

		writeJSON(w, logger, map[string]string{"status": "ok"})
	}
}

// BroadcastRequest — широковещательное уведомление от ресторана.
type BroadcastRequest struct {
	Title      string `json:"title" validate:"required"`
	Body       string `json:"body" validate:"required"`
	TTLMinutes int    `json:"ttl_minutes" validate:"required,gt=0"`
}

// BroadcastHandler обрабатывает запрос POST /api/notifications/broadcast (для ресторана).
func BroadcastHandler(log *slog.Logger, notifyService service.NotifyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BroadcastHandler"
		logger := log.With(slog.String("op", op))

		restaurantID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("restaurantID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req BroadcastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		report, err := notifyService.Broadcast(r.Context(), restaurantID, req.Title, req.Body, req.TTLMinutes)
		if err != nil {
			logger.Error("failed to broadcast", slog.Any("error", err))
			http.Error(w, "failed to broadcast", statusFromError(err))
			return
		}

		writeJSON(w, logger, report)
	}
}

// UserNotificationsHandler обрабатывает запрос GET /api/notifications (для пользователя).
func UserNotificationsHandler(log *slog.Logger, notifyService service.NotifyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UserNotificationsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		notifications, err := notifyService.NotificationsForUser(r.Context(), userID)
		if err != nil {
			logger.Error("failed to list notifications", slog.Any("error", err))
			http.Error(w, "failed to list notifications", statusFromError(err))
			return
		}

		writeJSON(w, logger, notifications)
	}
}

// RestaurantNotificationsHandler обрабатывает запрос GET /api/notifications/restaurant.
func RestaurantNotificationsHandler(log *slog.Logger, notifyService service.NotifyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RestaurantNotificationsHandler"
		logger := log.With(slog.String("op", op))

		restaurantID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("restaurantID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		notifications, err := notifyService.NotificationsForRestaurant(r.Context(), restaurantID)
		if err != nil {
			logger.Error("failed to list notifications", slog.Any("error", err))
			http.Error(w, "failed to list notifications", statusFromError(err))
			return
		}

		writeJSON(w, logger, notifications)
	}
}

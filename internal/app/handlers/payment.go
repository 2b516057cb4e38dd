package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/service"
)

// OpenSessionResponse — токен сессии для чекаута на клиенте.
type OpenSessionResponse struct {
	SessionID string `json:"session_id"`
}

// OpenSessionHandler обрабатывает запрос POST /api/orders/{orderID}/payment-session
func OpenSessionHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OpenSessionHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			logger.Error("invalid order id", slog.Any("error", err))
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		sessionID, err := paymentService.OpenSession(r.Context(), orderID, userID)
		if err != nil {
			logger.Error("failed to open payment session", slog.Any("error", err))
			http.Error(w, "failed to open payment session", statusFromError(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(OpenSessionResponse{SessionID: sessionID}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// CallbackRequest — тело callback'а платёжного шлюза.
type CallbackRequest struct {
	OrderStatus     string `json:"order_status" validate:"required"`
	GatewayOrderRef string `json:"cf_order_id" validate:"required"`
}

// CallbackHandler обрабатывает запрос POST /api/payments/{sessionID}/callback.
// Повторные callback'и с тем же исходом подтверждаются кодом 200:
// шлюз перестаёт ретраить только после успешного ответа.
func CallbackHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CallbackHandler"
		logger := log.With(slog.String("op", op))

		sessionID := chi.URLParam(r, "sessionID")
		if sessionID == "" {
			logger.Error("session id is missing")
			http.Error(w, "session id is required", http.StatusBadRequest)
			return
		}

		var req CallbackRequest
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

		err := paymentService.Reconcile(r.Context(), service.Callback{
			SessionID:       sessionID,
			Status:          req.OrderStatus,
			GatewayOrderRef: req.GatewayOrderRef,
		})
		if err != nil {
			if errors.Is(err, service.ErrConsistency) {
				logger.Error("gateway contradicts recorded state", slog.Any("error", err))
			} else {
				logger.Error("reconciliation failed", slog.Any("error", err))
			}
			http.Error(w, "reconciliation failed", statusFromError(err))
			return
		}

		writeJSON(w, logger, map[string]string{"status": "ok"})
	}
}

// PaymentStatusHandler обрабатывает запрос GET /api/orders/{orderID}/payment-status.
// Используется внешним опросом для сессий, застрявших в pending.
func PaymentStatusHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PaymentStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			logger.Error("invalid order id", slog.Any("error", err))
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		status, err := paymentService.CurrentStatus(r.Context(), orderID)
		if err != nil {
			logger.Error("failed to get payment status", slog.Any("error", err))
			http.Error(w, "failed to get payment status", statusFromError(err))
			return
		}

		writeJSON(w, logger, map[string]string{"status": string(status)})
	}
}

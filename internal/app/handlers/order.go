package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/service"
)

// CreateOrderRequest — структура запроса на создание заказа.
type CreateOrderRequest struct {
	RestaurantID uuid.UUID          `json:"restaurant_id" validate:"required"`
	Lines        []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type OrderLineRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// OrderResponse — представление заказа в ответах API.
type OrderResponse struct {
	ID            string              `json:"id"`
	RestaurantID  string              `json:"restaurant_id"`
	UserID        string              `json:"user_id"`
	Total         int                 `json:"total"`
	Status        string              `json:"status"`
	Lines         []*models.OrderLine `json:"lines,omitempty"`
	PaymentStatus string              `json:"payment_status,omitempty"`
}

func orderResponse(details *service.OrderDetails) OrderResponse {
	return OrderResponse{
		ID:            details.Order.ID.String(),
		RestaurantID:  details.Order.RestaurantID.String(),
		UserID:        details.Order.UserID.String(),
		Total:         details.Order.Total,
		Status:        string(details.Order.Status),
		Lines:         details.Lines,
		PaymentStatus: string(details.PaymentStatus),
	}
}

// CreateOrderHandler обрабатывает запрос POST /api/orders
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateOrderRequest
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

		lines := make([]service.NewOrderLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, service.NewOrderLine{ItemID: l.ItemID, Quantity: l.Quantity})
		}

		details, err := orderService.CreateOrder(r.Context(), userID, req.RestaurantID, lines)
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			http.Error(w, "failed to create order", statusFromError(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(orderResponse(details)); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{orderID}
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			logger.Error("invalid order id", slog.Any("error", err))
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		details, err := orderService.GetOrder(r.Context(), orderID)
		if err != nil {
			logger.Error("failed to get order", slog.Any("error", err))
			http.Error(w, "failed to get order", statusFromError(err))
			return
		}

		writeJSON(w, logger, orderResponse(details))
	}
}

// TransitionRequest — действие ресторана над заказом.
type TransitionRequest struct {
	Action string `json:"action" validate:"required,oneof=accept ready complete cancel"`
}

// TransitionHandler обрабатывает запрос POST /api/orders/{orderID}/transition
// (только для ресторанов: accept / ready / complete / cancel).
func TransitionHandler(log *slog.Logger, lifecycle service.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TransitionHandler"
		logger := log.With(slog.String("op", op))

		restaurantID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("restaurantID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			logger.Error("invalid order id", slog.Any("error", err))
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req TransitionRequest
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

		order, err := lifecycle.Transition(r.Context(), orderID, models.OrderEvent(req.Action), restaurantID)
		if err != nil {
			logger.Error("transition failed", slog.Any("error", err))
			http.Error(w, "transition failed", statusFromError(err))
			return
		}

		writeJSON(w, logger, map[string]string{"status": string(order.Status)})
	}
}

// ActiveOrdersHandler обрабатывает запрос GET /api/orders/pending (для ресторана).
func ActiveOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ActiveOrdersHandler"
		logger := log.With(slog.String("op", op))

		restaurantID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("restaurantID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orders, err := orderService.ActiveOrders(r.Context(), restaurantID)
		if err != nil {
			logger.Error("failed to get active orders", slog.Any("error", err))
			http.Error(w, "failed to get active orders", statusFromError(err))
			return
		}

		writeJSON(w, logger, orders)
	}
}

// OrderHistoryHandler обрабатывает запрос GET /api/orders/history/{days} (для пользователя).
func OrderHistoryHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHistoryHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		days, err := strconv.Atoi(chi.URLParam(r, "days"))
		if err != nil {
			logger.Error("invalid days parameter", slog.Any("error", err))
			http.Error(w, "invalid days parameter", http.StatusBadRequest)
			return
		}

		orders, err := orderService.OrderHistory(r.Context(), userID, days)
		if err != nil {
			logger.Error("failed to get order history", slog.Any("error", err))
			http.Error(w, "failed to get order history", statusFromError(err))
			return
		}

		writeJSON(w, logger, orders)
	}
}

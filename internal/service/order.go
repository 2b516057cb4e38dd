package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/storage"
)

// NewOrderLine — позиция создаваемого заказа в терминах каталога.
type NewOrderLine struct {
	ItemID   uuid.UUID
	Quantity int
}

// OrderDetails — заказ вместе с позициями и статусом активной платёжной сессии.
type OrderDetails struct {
	Order         *models.Order
	Lines         []*models.OrderLine
	PaymentStatus models.SessionStatus // пустой, если сессий ещё не было
}

type OrderService interface {
	// CreateOrder создаёт заказ в статусе payment_pending. Имя и цена каждой
	// позиции снимаются с каталога в момент вставки и далее не меняются.
	CreateOrder(ctx context.Context, userID, restaurantID uuid.UUID, lines []NewOrderLine) (*OrderDetails, error)
	// GetOrder возвращает заказ с позициями и статусом последней платёжной сессии.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error)
	// ActiveOrders возвращает незавершённые заказы ресторана.
	ActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error)
	// OrderHistory возвращает заказы пользователя за последние days суток.
	OrderHistory(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error)
}

type orderService struct {
	log            *slog.Logger
	db             *sql.DB
	orderRepo      storage.OrderStorage
	restaurantRepo storage.RestaurantStorage
	userRepo       storage.UserStorage
	sessionRepo    storage.PaymentSessionStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, restaurantRepo storage.RestaurantStorage, userRepo storage.UserStorage, sessionRepo storage.PaymentSessionStorage) OrderService {
	return &orderService{
		log:            log,
		db:             db,
		orderRepo:      orderRepo,
		restaurantRepo: restaurantRepo,
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, userID, restaurantID uuid.UUID, lines []NewOrderLine) (*OrderDetails, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()), slog.String("restaurantID", restaurantID.String()))
	logger.Info("creating order")

	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: order has no lines: %w", op, ErrValidation)
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%s: line quantity must be positive: %w", op, ErrValidation)
		}
	}

	if _, err := s.restaurantRepo.GetRestaurantByID(ctx, restaurantID); err != nil {
		if errors.Is(err, storage.ErrRestaurantNotFound) {
			return nil, fmt.Errorf("%s: restaurant not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to get restaurant", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get restaurant: %w", op, err)
	}
	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: user not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Снимаем позиции каталога и считаем сумму внутри транзакции,
	// чтобы снимок имени и цены был согласован с моментом вставки.
	total := 0
	orderLines := make([]*models.OrderLine, 0, len(lines))
	for _, line := range lines {
		item, err := s.restaurantRepo.GetMenuItemByIDTx(ctx, tx, line.ItemID)
		if err != nil {
			rollback(logger, tx)
			if errors.Is(err, storage.ErrMenuItemNotFound) {
				return nil, fmt.Errorf("%s: menu item not found: %w", op, ErrNotFound)
			}
			logger.Error("failed to get menu item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get menu item: %w", op, err)
		}
		if item.RestaurantID != restaurantID {
			rollback(logger, tx)
			return nil, fmt.Errorf("%s: menu item belongs to another restaurant: %w", op, ErrValidation)
		}
		total += item.Price * line.Quantity
		orderLines = append(orderLines, &models.OrderLine{
			ItemName:  item.Name,
			ItemPrice: item.Price,
			Quantity:  line.Quantity,
		})
	}

	order := &models.Order{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		UserID:       userID,
		Total:        total,
		Status:       models.OrderStatusPaymentPending,
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order, orderLines); err != nil {
		rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order created", slog.String("orderID", order.ID.String()), slog.Int("total", total))
	return &OrderDetails{Order: order, Lines: orderLines}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID.String()))

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	lines, err := s.orderRepo.GetLinesByOrderID(ctx, orderID)
	if err != nil {
		logger.Error("failed to get order lines", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order lines: %w", op, err)
	}

	details := &OrderDetails{Order: order, Lines: lines}
	session, err := s.sessionRepo.GetLatestSessionByOrderID(ctx, orderID)
	switch {
	case err == nil:
		details.PaymentStatus = session.Status
	case errors.Is(err, storage.ErrSessionNotFound):
		// заказ без платёжной сессии — нормальное состояние
	default:
		logger.Error("failed to get payment session", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get payment session: %w", op, err)
	}
	return details, nil
}

func (s *orderService) ActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error) {
	const op = "service.OrderService.ActiveOrders"
	orders, err := s.orderRepo.GetActiveOrdersByRestaurantID(ctx, restaurantID)
	if err != nil {
		s.log.Error("failed to get active orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) OrderHistory(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error) {
	const op = "service.OrderService.OrderHistory"
	if days <= 0 {
		return nil, fmt.Errorf("%s: days must be positive: %w", op, ErrValidation)
	}
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID, days)
	if err != nil {
		s.log.Error("failed to get order history", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// rollback откатывает транзакцию, логируя вторичную ошибку.
func rollback(logger *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		logger.Error("transaction rollback failed", slog.Any("error", err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/storage"
)

// dispatchTimeout ограничивает фоновую доставку уведомлений по одному событию.
const dispatchTimeout = 15 * time.Second

// LifecycleService владеет машиной состояний заказа и является единственным
// местом, где пишется order.status. Переходы от платёжного координатора
// применяются внутри его транзакции через TransitionTx, чтобы сверка и смена
// статуса шли под одной блокировкой строки заказа.
type LifecycleService interface {
	// Transition применяет действие ресторана (accept/ready/complete/cancel).
	Transition(ctx context.Context, orderID uuid.UUID, event models.OrderEvent, actorRestaurantID uuid.UUID) (*models.Order, error)
	// TransitionTx применяет переход к уже заблокированному заказу внутри чужой
	// транзакции. Заказ должен быть прочитан через LockOrderByIDTx.
	TransitionTx(ctx context.Context, tx *sql.Tx, order *models.Order, event models.OrderEvent) (*models.LifecycleEvent, error)
	// Emit передаёт событие перехода диспетчеру уведомлений. Доставка
	// внеполосная: её неудача не влияет на уже зафиксированный переход.
	Emit(event *models.LifecycleEvent)
}

type lifecycleService struct {
	log        *slog.Logger
	db         *sql.DB
	orderRepo  storage.OrderStorage
	dispatcher Dispatcher
}

func NewLifecycleService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, dispatcher Dispatcher) LifecycleService {
	return &lifecycleService{
		log:        log,
		db:         db,
		orderRepo:  orderRepo,
		dispatcher: dispatcher,
	}
}

func (s *lifecycleService) Transition(ctx context.Context, orderID uuid.UUID, event models.OrderEvent, actorRestaurantID uuid.UUID) (*models.Order, error) {
	const op = "service.LifecycleService.Transition"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID.String()), slog.String("event", string(event)))
	logger.Info("applying restaurant transition")

	if !models.RestaurantEvents[event] {
		return nil, fmt.Errorf("%s: event %q is not a restaurant action: %w", op, event, ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	// Действовать может только ресторан, которому принадлежит заказ.
	if order.RestaurantID != actorRestaurantID {
		rollback(logger, tx)
		return nil, fmt.Errorf("%s: order belongs to another restaurant: %w", op, ErrNotFound)
	}

	lifecycleEvent, err := s.TransitionTx(ctx, tx, order, event)
	if err != nil {
		rollback(logger, tx)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("transition applied", slog.String("from", string(lifecycleEvent.From)), slog.String("to", string(lifecycleEvent.To)))
	s.Emit(lifecycleEvent)
	return order, nil
}

func (s *lifecycleService) TransitionTx(ctx context.Context, tx *sql.Tx, order *models.Order, event models.OrderEvent) (*models.LifecycleEvent, error) {
	const op = "service.LifecycleService.TransitionTx"

	next, ok := models.NextStatus(order.Status, event)
	if !ok {
		return nil, fmt.Errorf("%s: no transition from %q on %q: %w", op, order.Status, event, ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order.ID, next); err != nil {
		s.log.Error("failed to update order status", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	lifecycleEvent := &models.LifecycleEvent{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		UserID:       order.UserID,
		From:         order.Status,
		To:           next,
		Event:        event,
		OccurredAt:   time.Now(),
	}
	order.Status = next
	return lifecycleEvent, nil
}

func (s *lifecycleService) Emit(event *models.LifecycleEvent) {
	if s.dispatcher == nil {
		return
	}
	// Доставка идёт вне блокировки заказа и вне транзакции перехода:
	// уведомления — справочный факт, а не часть границы согласованности.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if _, err := s.dispatcher.Dispatch(ctx, event); err != nil {
			s.log.Error("notification dispatch failed",
				slog.String("orderID", event.OrderID.String()),
				slog.String("to", string(event.To)),
				slog.Any("error", err),
			)
		}
	}()
}

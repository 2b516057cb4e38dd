package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/gateway"
	"github.com/linemk/food-orders/internal/storage"
)

// Callback — данные асинхронного уведомления шлюза об исходе оплаты.
// Уведомления могут дублироваться, опаздывать и приходить не по порядку.
type Callback struct {
	SessionID       string
	Status          string // статус в терминах шлюза: PAID, FAILED, EXPIRED, PENDING
	GatewayOrderRef string
}

// PaymentService — координатор платёжных сессий: открывает сессию у внешнего
// шлюза и сводит его callback'и с локальным состоянием заказа.
type PaymentService interface {
	// OpenSession открывает платёжную сессию для заказа и возвращает её токен
	// для чекаута на клиенте. Вторая активная сессия по заказу запрещена.
	OpenSession(ctx context.Context, orderID, userID uuid.UUID) (string, error)
	// Reconcile применяет callback шлюза. Повтор того же терминального статуса —
	// no-op; другой терминальный статус поверх уже зафиксированного — инцидент.
	Reconcile(ctx context.Context, cb Callback) error
	// CurrentStatus возвращает статус последней сессии заказа; используется
	// внешним опросом для сессий, застрявших в pending.
	CurrentStatus(ctx context.Context, orderID uuid.UUID) (models.SessionStatus, error)
}

type paymentService struct {
	log          *slog.Logger
	db           *sql.DB
	orderRepo    storage.OrderStorage
	sessionRepo  storage.PaymentSessionStorage
	userRepo     storage.UserStorage
	incidentRepo storage.IncidentStorage
	gateway      gateway.PaymentGateway
	lifecycle    LifecycleService
}

func NewPaymentService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, sessionRepo storage.PaymentSessionStorage, userRepo storage.UserStorage, incidentRepo storage.IncidentStorage, gw gateway.PaymentGateway, lifecycle LifecycleService) PaymentService {
	return &paymentService{
		log:          log,
		db:           db,
		orderRepo:    orderRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		incidentRepo: incidentRepo,
		gateway:      gw,
		lifecycle:    lifecycle,
	}
}

func (s *paymentService) OpenSession(ctx context.Context, orderID, userID uuid.UUID) (string, error) {
	const op = "service.PaymentService.OpenSession"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID.String()))
	logger.Info("opening payment session")

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", fmt.Errorf("%s: user not found: %w", op, ErrNotFound)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокировка заказа делает проверку активной сессии и вставку атомарными:
	// из двух конкурентных openSession вторая дождётся первую и получит конфликт.
	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to lock order: %w", op, err)
	}
	if order.UserID != userID {
		rollback(logger, tx)
		return "", fmt.Errorf("%s: order belongs to another user: %w", op, ErrNotFound)
	}
	if order.Status != models.OrderStatusPaymentPending {
		rollback(logger, tx)
		return "", fmt.Errorf("%s: order is not awaiting payment: %w", op, ErrConflict)
	}

	_, err = s.sessionRepo.GetActiveSessionByOrderTx(ctx, tx, orderID)
	switch {
	case err == nil:
		rollback(logger, tx)
		return "", fmt.Errorf("%s: active payment session already exists: %w", op, ErrConflict)
	case errors.Is(err, storage.ErrSessionNotFound):
		// активной сессии нет, можно открывать
	default:
		rollback(logger, tx)
		logger.Error("failed to check active session", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to check active session: %w", op, err)
	}

	// Вызов шлюза ограничен таймаутом клиента; при отказе заказ остаётся
	// в payment_pending и openSession можно повторить.
	gwSession, err := s.gateway.CreateSession(ctx, order.Total, order.ID, user.Name)
	if err != nil {
		rollback(logger, tx)
		logger.Error("gateway session creation failed", slog.Any("error", err))
		return "", fmt.Errorf("%s: gateway session creation failed: %v: %w", op, err, ErrUpstream)
	}

	session := &models.PaymentSession{
		SessionID:       gwSession.SessionID,
		OrderID:         order.ID,
		GatewayOrderRef: gwSession.GatewayOrderRef,
		Status:          models.SessionStatusPending,
	}
	if err := s.sessionRepo.CreateSession(ctx, tx, session); err != nil {
		rollback(logger, tx)
		logger.Error("failed to persist payment session", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to persist payment session: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("payment session opened", slog.String("sessionID", session.SessionID))
	return session.SessionID, nil
}

func (s *paymentService) Reconcile(ctx context.Context, cb Callback) error {
	const op = "service.PaymentService.Reconcile"
	logger := s.log.With(slog.String("op", op), slog.String("sessionID", cb.SessionID), slog.String("reported", cb.Status))
	logger.Info("reconciling gateway callback")

	reported, terminal, err := mapGatewayStatus(cb.Status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Сессию сначала читаем без блокировки, только чтобы узнать заказ:
	// блокировки всегда берутся в порядке "заказ, затем сессия",
	// тем же порядком, что и openSession.
	known, err := s.sessionRepo.GetSessionByID(ctx, cb.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to get session", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get session: %w", op, err)
	}

	// Ссылка на заказ шлюза фиксируется при открытии сессии и не меняется.
	if known.GatewayOrderRef != cb.GatewayOrderRef {
		s.recordIncident(ctx, logger, known, reported, "gateway order reference mismatch")
		return fmt.Errorf("%s: gateway order reference mismatch: %w", op, ErrConsistency)
	}

	// Шлюз подтвердил, что сессия всё ещё открыта — локально делать нечего.
	if !terminal {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, known.OrderID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to lock order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	// Перечитываем сессию уже под блокировкой: статус мог поменять
	// конкурентный callback, ушедший вперёд.
	session, err := s.sessionRepo.LockSessionByIDTx(ctx, tx, cb.SessionID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to lock session", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock session: %w", op, err)
	}

	if session.Status.IsTerminal() {
		rollback(logger, tx)
		if session.Status == reported {
			// повтор уже применённого callback'а — идемпотентный no-op
			logger.Info("duplicate terminal callback ignored")
			return nil
		}
		s.recordIncident(ctx, logger, session, reported, "gateway contradicts recorded terminal status")
		return fmt.Errorf("%s: terminal status %q contradicted by %q: %w", op, session.Status, reported, ErrConsistency)
	}

	if err := s.sessionRepo.UpdateSessionStatus(ctx, tx, session.SessionID, reported); err != nil {
		rollback(logger, tx)
		logger.Error("failed to update session status", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update session status: %w", op, err)
	}

	var lifecycleEvent *models.LifecycleEvent
	switch {
	case order.Status == models.OrderStatusPaymentPending:
		event := models.EventPaymentFailed
		if reported == models.SessionStatusSuccess {
			event = models.EventPaymentSucceeded
		}
		lifecycleEvent, err = s.lifecycle.TransitionTx(ctx, tx, order, event)
		if err != nil {
			rollback(logger, tx)
			return err
		}
	case reported == models.SessionStatusSuccess:
		// Деньги собраны по заказу, который уже нельзя оплатить, —
		// фиксируем инцидент, статус заказа не трогаем.
		rollback(logger, tx)
		s.recordIncident(ctx, logger, session, reported, fmt.Sprintf("payment succeeded for order in status %q", order.Status))
		return fmt.Errorf("%s: payment succeeded for order in status %q: %w", op, order.Status, ErrConsistency)
	default:
		// Неудача оплаты по заказу, уже ушедшему из payment_pending
		// (например, отменённому), просто закрывает сессию.
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("callback reconciled", slog.String("sessionStatus", string(reported)))
	if lifecycleEvent != nil {
		s.lifecycle.Emit(lifecycleEvent)
	}
	return nil
}

func (s *paymentService) CurrentStatus(ctx context.Context, orderID uuid.UUID) (models.SessionStatus, error) {
	const op = "service.PaymentService.CurrentStatus"
	session, err := s.sessionRepo.GetLatestSessionByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get session", slog.String("op", op), slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get session: %w", op, err)
	}
	return session.Status, nil
}

// mapGatewayStatus переводит статус шлюза в локальный. Второе значение —
// терминальность: нетерминальные статусы не меняют локальное состояние.
func mapGatewayStatus(status string) (models.SessionStatus, bool, error) {
	switch status {
	case "PAID":
		return models.SessionStatusSuccess, true, nil
	case "FAILED", "EXPIRED":
		return models.SessionStatusFailed, true, nil
	case "PENDING", "ACTIVE":
		return models.SessionStatusPending, false, nil
	default:
		return "", false, fmt.Errorf("unknown gateway status %q: %w", status, ErrValidation)
	}
}

// recordIncident сохраняет противоречие для ручного разбора. Ошибка записи
// логируется, но не маскирует исходный ConsistencyError.
func (s *paymentService) recordIncident(ctx context.Context, logger *slog.Logger, session *models.PaymentSession, reported models.SessionStatus, detail string) {
	if err := s.incidentRepo.RecordIncident(ctx, session.SessionID, session.OrderID, session.Status, reported, detail); err != nil {
		logger.Error("failed to record reconciliation incident", slog.Any("error", err))
	}
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/food-orders/internal/domain/models"
)

var ErrSessionNotFound = errors.New("payment session not found")

// PaymentSessionStorage описывает методы для работы с платёжными сессиями.
type PaymentSessionStorage interface {
	// CreateSession вставляет новую сессию. Вызывается только под блокировкой
	// строки заказа после проверки отсутствия активной сессии.
	CreateSession(ctx context.Context, tx *sql.Tx, session *models.PaymentSession) error
	// GetActiveSessionByOrderTx возвращает незавершённую сессию заказа, если она есть.
	GetActiveSessionByOrderTx(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.PaymentSession, error)
	// GetSessionByID возвращает сессию по токену шлюза без блокировки.
	GetSessionByID(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	// LockSessionByIDTx читает сессию под эксклюзивной блокировкой строки.
	LockSessionByIDTx(ctx context.Context, tx *sql.Tx, sessionID string) (*models.PaymentSession, error)
	// UpdateSessionStatus записывает новый статус сессии внутри транзакции.
	UpdateSessionStatus(ctx context.Context, tx *sql.Tx, sessionID string, status models.SessionStatus) error
	// GetLatestSessionByOrderID возвращает последнюю по времени сессию заказа.
	GetLatestSessionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error)
}

type paymentSessionRepository struct {
	db *sql.DB
}

// NewPaymentSessionRepository создаёт новый репозиторий платёжных сессий.
func NewPaymentSessionRepository(db *sql.DB) PaymentSessionStorage {
	return &paymentSessionRepository{db: db}
}

const sessionColumns = "session_id, order_id, gateway_order_ref, status, created_at, updated_at"

func (r *paymentSessionRepository) CreateSession(ctx context.Context, tx *sql.Tx, session *models.PaymentSession) error {
	query := `INSERT INTO payment_sessions (session_id, order_id, gateway_order_ref, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())`
	_, err := tx.ExecContext(ctx, query, session.SessionID, session.OrderID, session.GatewayOrderRef, session.Status)
	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}
	return nil
}

func (r *paymentSessionRepository) GetActiveSessionByOrderTx(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.PaymentSession, error) {
	query := "SELECT " + sessionColumns + " FROM payment_sessions WHERE order_id = $1 AND status = 'pending'"
	return scanSession(tx.QueryRowContext(ctx, query, orderID))
}

func (r *paymentSessionRepository) GetSessionByID(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	query := "SELECT " + sessionColumns + " FROM payment_sessions WHERE session_id = $1"
	return scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *paymentSessionRepository) LockSessionByIDTx(ctx context.Context, tx *sql.Tx, sessionID string) (*models.PaymentSession, error) {
	query := "SELECT " + sessionColumns + " FROM payment_sessions WHERE session_id = $1 FOR UPDATE"
	session, err := scanSession(tx.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "55P03" { // lock
			return nil, fmt.Errorf("payment session is locked, please try again: %w", err)
		}
		return nil, err
	}
	return session, nil
}

func (r *paymentSessionRepository) UpdateSessionStatus(ctx context.Context, tx *sql.Tx, sessionID string, status models.SessionStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE payment_sessions SET status = $1, updated_at = NOW() WHERE session_id = $2", status, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *paymentSessionRepository) GetLatestSessionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error) {
	query := "SELECT " + sessionColumns + " FROM payment_sessions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1"
	return scanSession(r.db.QueryRowContext(ctx, query, orderID))
}

func scanSession(row *sql.Row) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	if err := row.Scan(&session.SessionID, &session.OrderID, &session.GatewayOrderRef, &session.Status, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

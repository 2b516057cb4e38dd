package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus — локальный статус платёжной сессии.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusSuccess SessionStatus = "success"
	SessionStatusFailed  SessionStatus = "failed"
)

// IsTerminal сообщает, завершена ли сессия. Терминальную сессию шлюз менять не может.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusSuccess || s == SessionStatusFailed
}

// PaymentSession — одна попытка оплаты заказа через внешний шлюз.
// Идентификатором служит токен сессии, выданный шлюзом, а не локальный id.
// У заказа одновременно может быть не больше одной незавершённой сессии.
type PaymentSession struct {
	SessionID       string        `json:"session_id"` // токен шлюза
	OrderID         uuid.UUID     `json:"order_id"`
	GatewayOrderRef string        `json:"gateway_order_ref"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

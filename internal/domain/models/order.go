package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus — закрытое перечисление статусов заказа.
// В БД хранится как текст, чтобы добавление нового статуса не требовало миграции.
type OrderStatus string

const (
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// IsTerminal сообщает, допускает ли статус дальнейшие переходы.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderEvent — событие, инициирующее переход заказа между статусами.
type OrderEvent string

const (
	// события от координатора платежей
	EventPaymentSucceeded OrderEvent = "payment_succeeded"
	EventPaymentFailed    OrderEvent = "payment_failed"
	// события от ресторана
	EventAccept   OrderEvent = "accept"
	EventReady    OrderEvent = "ready"
	EventComplete OrderEvent = "complete"
	EventCancel   OrderEvent = "cancel"
)

// RestaurantEvents — события, доступные ресторану через API.
var RestaurantEvents = map[OrderEvent]bool{
	EventAccept:   true,
	EventReady:    true,
	EventComplete: true,
	EventCancel:   true,
}

// transitions — единственный источник истины о допустимых переходах.
// Любая пара (статус, событие) вне этой таблицы отклоняется.
var transitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	OrderStatusPaymentPending: {
		EventPaymentSucceeded: OrderStatusPaid,
		EventPaymentFailed:    OrderStatusCancelled,
		EventCancel:           OrderStatusCancelled,
	},
	OrderStatusPaid: {
		EventAccept: OrderStatusPreparing,
		EventCancel: OrderStatusCancelled,
	},
	OrderStatusPreparing: {
		EventReady:  OrderStatusReady,
		EventCancel: OrderStatusCancelled,
	},
	OrderStatusReady: {
		EventComplete: OrderStatusCompleted,
	},
}

// NextStatus возвращает статус, в который событие переводит заказ.
// Второе значение false означает недопустимый переход.
func NextStatus(from OrderStatus, event OrderEvent) (OrderStatus, bool) {
	row, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := row[event]
	return to, ok
}

// Order представляет заказ пользователя в ресторане.
// Total фиксируется при создании и далее не меняется, статус меняется
// только менеджером жизненного цикла.
type Order struct {
	ID           uuid.UUID   `json:"id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	UserID       uuid.UUID   `json:"user_id"`
	Total        int         `json:"total"` // в минорных единицах валюты
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OrderLine — снимок позиции меню на момент заказа.
// Имя и цена копируются из меню и не меняются при изменении каталога.
type OrderLine struct {
	ID        int64     `json:"-"`
	OrderID   uuid.UUID `json:"-"`
	ItemName  string    `json:"name"`
	ItemPrice int       `json:"price"`
	Quantity  int       `json:"quantity"`
}

// LifecycleEvent — факт успешного перехода заказа, потребляется диспетчером уведомлений.
type LifecycleEvent struct {
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	UserID       uuid.UUID
	From         OrderStatus
	To           OrderStatus
	Event        OrderEvent
	OccurredAt   time.Time
}

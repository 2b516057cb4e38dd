package models

import (
	"time"

	"github.com/google/uuid"
)

// RecipientKind — вид адресата уведомления.
type RecipientKind string

const (
	RecipientBroadcast  RecipientKind = "broadcast" // все пользователи
	RecipientUser       RecipientKind = "user"
	RecipientRestaurant RecipientKind = "restaurant"
)

// Recipient — явный тегированный вариант вместо nullable-колонки:
// Broadcast не имеет ID, User/Restaurant привязаны к конкретному адресату.
type Recipient struct {
	Kind RecipientKind
	ID   uuid.UUID // нулевой для Broadcast
}

func BroadcastRecipient() Recipient {
	return Recipient{Kind: RecipientBroadcast}
}

func UserRecipient(id uuid.UUID) Recipient {
	return Recipient{Kind: RecipientUser, ID: id}
}

func RestaurantRecipient(id uuid.UUID) Recipient {
	return Recipient{Kind: RecipientRestaurant, ID: id}
}

// SenderKind — источник уведомления.
type SenderKind string

const (
	SenderSystem     SenderKind = "system"
	SenderRestaurant SenderKind = "restaurant"
)

type Sender struct {
	Kind SenderKind
	ID   uuid.UUID // нулевой для System
}

func SystemSender() Sender {
	return Sender{Kind: SenderSystem}
}

func RestaurantSender(id uuid.UUID) Sender {
	return Sender{Kind: SenderRestaurant, ID: id}
}

// Notification — факт намерения доставить push. Запись не изменяется после
// создания и не отражает фактическую доставку.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	Recipient  Recipient `json:"-"`
	Sender     Sender    `json:"-"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	TTLMinutes int       `json:"ttl_minutes"` // подсказка клиенту, сервером не проверяется
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationToken — push-токен устройства пользователя.
// Токены — лишь подсказка о доступности устройства: их отсутствие или
// устаревание не считается ошибкой.
type NotificationToken struct {
	ID        int64     `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

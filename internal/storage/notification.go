package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
)

// NotificationStorage описывает методы для работы с уведомлениями.
type NotificationStorage interface {
	// CreateNotification сохраняет факт уведомления. Запись создаётся до
	// попытки доставки и не откатывается при её неудаче.
	CreateNotification(ctx context.Context, n *models.Notification) error
	// GetNotificationsByUserID возвращает уведомления пользователя,
	// включая широковещательные.
	GetNotificationsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	// GetNotificationsByRestaurantID возвращает уведомления, адресованные ресторану.
	GetNotificationsByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error)
}

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создаёт новый репозиторий уведомлений.
func NewNotificationRepository(db *sql.DB) NotificationStorage {
	return &notificationRepository{db: db}
}

// Тегированные варианты Recipient/Sender раскладываются в nullable-колонки:
// broadcast — обе колонки адресата NULL, system — колонка отправителя NULL.
func (r *notificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	var recipientUser, recipientRestaurant, senderRestaurant interface{}
	switch n.Recipient.Kind {
	case models.RecipientUser:
		recipientUser = n.Recipient.ID
	case models.RecipientRestaurant:
		recipientRestaurant = n.Recipient.ID
	}
	if n.Sender.Kind == models.SenderRestaurant {
		senderRestaurant = n.Sender.ID
	}

	query := `INSERT INTO notifications (id, recipient_user_id, recipient_restaurant_id, sender_restaurant_id, title, body, ttl_minutes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err := r.db.ExecContext(ctx, query, n.ID, recipientUser, recipientRestaurant, senderRestaurant, n.Title, n.Body, n.TTLMinutes)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetNotificationsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_user_id, recipient_restaurant_id, sender_restaurant_id, title, body, ttl_minutes, created_at
		FROM notifications
		WHERE recipient_user_id = $1 OR (recipient_user_id IS NULL AND recipient_restaurant_id IS NULL)
		ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query, userID)
}

func (r *notificationRepository) GetNotificationsByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_user_id, recipient_restaurant_id, sender_restaurant_id, title, body, ttl_minutes, created_at
		FROM notifications
		WHERE recipient_restaurant_id = $1
		ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query, restaurantID)
}

func (r *notificationRepository) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var recipientUser, recipientRestaurant, senderRestaurant uuid.NullUUID
		if err := rows.Scan(&n.ID, &recipientUser, &recipientRestaurant, &senderRestaurant, &n.Title, &n.Body, &n.TTLMinutes, &n.CreatedAt); err != nil {
			return nil, err
		}
		switch {
		case recipientUser.Valid:
			n.Recipient = models.UserRecipient(recipientUser.UUID)
		case recipientRestaurant.Valid:
			n.Recipient = models.RestaurantRecipient(recipientRestaurant.UUID)
		default:
			n.Recipient = models.BroadcastRecipient()
		}
		if senderRestaurant.Valid {
			n.Sender = models.RestaurantSender(senderRestaurant.UUID)
		} else {
			n.Sender = models.SystemSender()
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

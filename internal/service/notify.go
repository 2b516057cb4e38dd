package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/push"
	"github.com/linemk/food-orders/internal/storage"
)

// DeliveryReport — итог рассылки: запись факта всегда успешна, доставка —
// по возможности. Ноль попыток (нет токенов) — валидный результат.
type DeliveryReport struct {
	Attempted int               `json:"attempted"`
	Delivered int               `json:"delivered"`
	Failed    int               `json:"failed"`
	PerUser   map[uuid.UUID]int `json:"per_user"`
}

// Dispatcher превращает события жизненного цикла заказа в push-уведомления.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.LifecycleEvent) (*DeliveryReport, error)
}

// NotifyService — диспетчер уведомлений и операции вокруг токенов устройств.
type NotifyService interface {
	Dispatcher
	// RegisterToken сохраняет push-токен устройства пользователя.
	RegisterToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error
	// Broadcast рассылает уведомление ресторана всем пользователям.
	Broadcast(ctx context.Context, restaurantID uuid.UUID, title, body string, ttlMinutes int) (*DeliveryReport, error)
	// NotificationsForUser возвращает ленту уведомлений пользователя.
	NotificationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	// NotificationsForRestaurant возвращает ленту уведомлений ресторана.
	NotificationsForRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error)
}

type notifyService struct {
	log              *slog.Logger
	notificationRepo storage.NotificationStorage
	tokenRepo        storage.TokenStorage
	sender           push.Sender
}

func NewNotifyService(log *slog.Logger, notificationRepo storage.NotificationStorage, tokenRepo storage.TokenStorage, sender push.Sender) NotifyService {
	return &notifyService{
		log:              log,
		notificationRepo: notificationRepo,
		tokenRepo:        tokenRepo,
		sender:           sender,
	}
}

// Dispatch переводит событие перехода в уведомления адресатам. Ресторанные
// уведомления только записываются (рестораны читают свою ленту по API),
// пользовательские записываются и отправляются на все токены устройств.
func (s *notifyService) Dispatch(ctx context.Context, event *models.LifecycleEvent) (*DeliveryReport, error) {
	const op = "service.NotifyService.Dispatch"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", event.OrderID.String()), slog.String("to", string(event.To)))

	report := &DeliveryReport{PerUser: make(map[uuid.UUID]int)}

	for _, n := range notificationsFor(event) {
		if err := s.notificationRepo.CreateNotification(ctx, n); err != nil {
			// факт не записан — уведомление не отправляем, но остальных адресатов не бросаем
			logger.Error("failed to persist notification", slog.Any("error", err))
			continue
		}
		if n.Recipient.Kind != models.RecipientUser {
			continue
		}
		s.pushToUser(ctx, logger, n.Recipient.ID, n.Title, n.Body, report)
	}

	logger.Info("dispatch finished", slog.Int("attempted", report.Attempted), slog.Int("failed", report.Failed))
	return report, nil
}

func (s *notifyService) RegisterToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error {
	const op = "service.NotifyService.RegisterToken"
	if token == "" || deviceID == "" {
		return fmt.Errorf("%s: token and device id are required: %w", op, ErrValidation)
	}
	if err := s.tokenRepo.UpsertToken(ctx, userID, deviceID, token); err != nil {
		s.log.Error("failed to save token", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to save token: %w", op, err)
	}
	return nil
}

func (s *notifyService) Broadcast(ctx context.Context, restaurantID uuid.UUID, title, body string, ttlMinutes int) (*DeliveryReport, error) {
	const op = "service.NotifyService.Broadcast"
	logger := s.log.With(slog.String("op", op), slog.String("restaurantID", restaurantID.String()))
	logger.Info("broadcasting notification")

	if title == "" || body == "" {
		return nil, fmt.Errorf("%s: title and body are required: %w", op, ErrValidation)
	}
	if ttlMinutes <= 0 {
		return nil, fmt.Errorf("%s: ttl must be positive: %w", op, ErrValidation)
	}

	notification := &models.Notification{
		ID:         uuid.New(),
		Recipient:  models.BroadcastRecipient(),
		Sender:     models.RestaurantSender(restaurantID),
		Title:      title,
		Body:       body,
		TTLMinutes: ttlMinutes,
	}
	if err := s.notificationRepo.CreateNotification(ctx, notification); err != nil {
		logger.Error("failed to persist notification", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to persist notification: %w", op, err)
	}

	tokens, err := s.tokenRepo.GetAllTokens(ctx)
	if err != nil {
		// факт уже записан; без токенов доставка просто не состоится
		logger.Error("failed to load tokens", slog.Any("error", err))
		return &DeliveryReport{PerUser: map[uuid.UUID]int{}}, nil
	}

	report := &DeliveryReport{PerUser: make(map[uuid.UUID]int)}
	for _, t := range tokens {
		s.pushToken(ctx, logger, t.UserID, t.Token, title, body, report)
	}

	logger.Info("broadcast finished", slog.Int("attempted", report.Attempted), slog.Int("failed", report.Failed))
	return report, nil
}

func (s *notifyService) NotificationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	const op = "service.NotifyService.NotificationsForUser"
	notifications, err := s.notificationRepo.GetNotificationsByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to list notifications", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return notifications, nil
}

func (s *notifyService) NotificationsForRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error) {
	const op = "service.NotifyService.NotificationsForRestaurant"
	notifications, err := s.notificationRepo.GetNotificationsByRestaurantID(ctx, restaurantID)
	if err != nil {
		s.log.Error("failed to list notifications", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return notifications, nil
}

// pushToUser отправляет сообщение на все устройства пользователя.
// Отсутствие токенов — не ошибка, отказ по одному токену не прерывает остальные.
func (s *notifyService) pushToUser(ctx context.Context, logger *slog.Logger, userID uuid.UUID, title, body string, report *DeliveryReport) {
	tokens, err := s.tokenRepo.GetTokensByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to load user tokens", slog.String("userID", userID.String()), slog.Any("error", err))
		return
	}
	for _, token := range tokens {
		s.pushToken(ctx, logger, userID, token, title, body, report)
	}
}

func (s *notifyService) pushToken(ctx context.Context, logger *slog.Logger, userID uuid.UUID, token, title, body string, report *DeliveryReport) {
	report.Attempted++
	report.PerUser[userID]++
	if err := s.sender.Send(ctx, token, title, body); err != nil {
		report.Failed++
		logger.Warn("push delivery failed", slog.String("userID", userID.String()), slog.Any("error", err))
		return
	}
	report.Delivered++
}

// notificationsFor строит уведомления по переходу: ресторан узнаёт об
// оплаченном заказе, пользователь — о движении своего заказа.
func notificationsFor(event *models.LifecycleEvent) []*models.Notification {
	shortID := event.OrderID.String()[:8]

	var out []*models.Notification
	if event.To == models.OrderStatusPaid {
		out = append(out, &models.Notification{
			ID:         uuid.New(),
			Recipient:  models.RestaurantRecipient(event.RestaurantID),
			Sender:     models.SystemSender(),
			Title:      "New paid order",
			Body:       fmt.Sprintf("Order %s has been paid and awaits confirmation", shortID),
			TTLMinutes: 60,
		})
	}

	userBody := map[models.OrderStatus]string{
		models.OrderStatusPaid:      fmt.Sprintf("Payment for order %s is confirmed", shortID),
		models.OrderStatusPreparing: fmt.Sprintf("Order %s is being prepared", shortID),
		models.OrderStatusReady:     fmt.Sprintf("Order %s is ready for pickup", shortID),
		models.OrderStatusCompleted: fmt.Sprintf("Order %s is completed, bon appetit", shortID),
		models.OrderStatusCancelled: fmt.Sprintf("Order %s has been cancelled", shortID),
	}
	if body, ok := userBody[event.To]; ok {
		out = append(out, &models.Notification{
			ID:         uuid.New(),
			Recipient:  models.UserRecipient(event.UserID),
			Sender:     models.SystemSender(),
			Title:      "Order update",
			Body:       body,
			TTLMinutes: 60,
		})
	}
	return out
}

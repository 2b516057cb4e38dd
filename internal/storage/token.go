package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
)

// TokenStorage описывает методы для работы с push-токенами устройств.
type TokenStorage interface {
	// UpsertToken сохраняет токен устройства; последняя запись по устройству побеждает.
	UpsertToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error
	// GetTokensByUserID возвращает все токены пользователя. Пустой список — не ошибка.
	GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]string, error)
	// GetAllTokens возвращает токены всех пользователей для широковещательной рассылки.
	GetAllTokens(ctx context.Context) ([]*models.NotificationToken, error)
}

type tokenRepository struct {
	db *sql.DB
}

// NewTokenRepository создаёт новый репозиторий push-токенов.
func NewTokenRepository(db *sql.DB) TokenStorage {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) UpsertToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error {
	query := `INSERT INTO notification_tokens (user_id, device_id, token, created_at, updated_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          ON CONFLICT (user_id, device_id) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, userID, deviceID, token); err != nil {
		return fmt.Errorf("failed to upsert notification token: %w", err)
	}
	return nil
}

func (r *tokenRepository) GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT token FROM notification_tokens WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *tokenRepository) GetAllTokens(ctx context.Context) ([]*models.NotificationToken, error) {
	query := "SELECT id, user_id, device_id, token, created_at, updated_at FROM notification_tokens ORDER BY user_id"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.NotificationToken
	for rows.Next() {
		t := &models.NotificationToken{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.DeviceID, &t.Token, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

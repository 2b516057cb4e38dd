package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
)

// IncidentStorage фиксирует противоречия между шлюзом и локальным состоянием.
// Инциденты не разрешаются автоматически, их разбирают операторы.
type IncidentStorage interface {
	RecordIncident(ctx context.Context, sessionID string, orderID uuid.UUID, recorded, reported models.SessionStatus, detail string) error
}

type incidentRepository struct {
	db *sql.DB
}

// NewIncidentRepository создаёт новый репозиторий инцидентов сверки.
func NewIncidentRepository(db *sql.DB) IncidentStorage {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) RecordIncident(ctx context.Context, sessionID string, orderID uuid.UUID, recorded, reported models.SessionStatus, detail string) error {
	query := `INSERT INTO reconciliation_incidents (session_id, order_id, recorded_status, reported_status, detail, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())`
	if _, err := r.db.ExecContext(ctx, query, sessionID, orderID, recorded, reported, detail); err != nil {
		return fmt.Errorf("failed to record reconciliation incident: %w", err)
	}
	return nil
}

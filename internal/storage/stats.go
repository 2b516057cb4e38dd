package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// TopItem — позиция меню с количеством продаж.
type TopItem struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// StatsStorage описывает агрегаты по заказам ресторана.
type StatsStorage interface {
	TotalOrders(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	TotalRevenue(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	AverageOrderValue(ctx context.Context, restaurantID uuid.UUID) (float64, error)
	TopItems(ctx context.Context, restaurantID uuid.UUID, limit int) ([]TopItem, error)
}

type statsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) StatsStorage {
	return &statsRepository{db: db}
}

// Выручка и средний чек считаются только по оплаченным заказам:
// отменённые до оплаты деньги не приносили.
const paidStatuses = "('paid', 'preparing', 'ready', 'completed')"

func (r *statsRepository) TotalOrders(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders WHERE restaurant_id = $1", restaurantID,
	).Scan(&count)
	return count, err
}

func (r *statsRepository) TotalRevenue(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var revenue int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total), 0) FROM orders WHERE restaurant_id = $1 AND status IN "+paidStatuses,
		restaurantID,
	).Scan(&revenue)
	return revenue, err
}

func (r *statsRepository) AverageOrderValue(ctx context.Context, restaurantID uuid.UUID) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		"SELECT AVG(total) FROM orders WHERE restaurant_id = $1 AND status IN "+paidStatuses,
		restaurantID,
	).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

func (r *statsRepository) TopItems(ctx context.Context, restaurantID uuid.UUID, limit int) ([]TopItem, error) {
	query := `
		SELECT l.item_name, SUM(l.quantity) AS sold
		FROM order_lines l
		JOIN orders o ON l.order_id = o.id
		WHERE o.restaurant_id = $1 AND o.status IN ` + paidStatuses + `
		GROUP BY l.item_name
		ORDER BY sold DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, restaurantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TopItem
	for rows.Next() {
		var item TopItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

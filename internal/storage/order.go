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

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами и их позициями.
type OrderStorage interface {
	// CreateOrder вставляет заказ вместе с позициями в одной транзакции:
	// заказ без позиций (и наоборот) существовать не должен.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []*models.OrderLine) error
	// GetOrderByID возвращает заказ по идентификатору.
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// LockOrderByIDTx читает заказ под эксклюзивной блокировкой строки.
	// Блокировка удерживает цикл "прочитать статус — проверить — записать".
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error)
	// UpdateOrderStatus записывает новый статус заказа внутри транзакции.
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error
	// GetLinesByOrderID возвращает позиции заказа.
	GetLinesByOrderID(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLine, error)
	// GetActiveOrdersByRestaurantID возвращает незавершённые заказы ресторана.
	GetActiveOrdersByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя за последние days суток.
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []*models.OrderLine) error {
	query := `INSERT INTO orders (id, restaurant_id, user_id, total, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`
	_, err := tx.ExecContext(ctx, query, order.ID, order.RestaurantID, order.UserID, order.Total, order.Status)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	lineQuery := `INSERT INTO order_lines (order_id, item_name, item_price, quantity)
	              VALUES ($1, $2, $3, $4)`
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, lineQuery, order.ID, line.ItemName, line.ItemPrice, line.Quantity); err != nil {
			return fmt.Errorf("failed to create order line: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	query := "SELECT id, restaurant_id, user_id, total, status, created_at, updated_at FROM orders WHERE id = $1"
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&order.ID, &order.RestaurantID, &order.UserID, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	query := "SELECT id, restaurant_id, user_id, total, status, created_at, updated_at FROM orders WHERE id = $1 FOR UPDATE"
	row := tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(&order.ID, &order.RestaurantID, &order.UserID, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("order is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) GetLinesByOrderID(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLine, error) {
	query := `SELECT id, order_id, item_name, item_price, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*models.OrderLine
	for rows.Next() {
		line := &models.OrderLine{}
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemName, &line.ItemPrice, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *orderRepository) GetActiveOrdersByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error) {
	query := `
		SELECT id, restaurant_id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE restaurant_id = $1 AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, restaurantID)
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error) {
	query := `
		SELECT id, restaurant_id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1 AND created_at > NOW() - INTERVAL '1 day' * $2
		ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID, days)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.RestaurantID, &order.UserID, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

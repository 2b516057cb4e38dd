package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
)

// RestaurantStorage описывает чтение каталога: ресторанов и позиций меню.
// Управление каталогом принадлежит другому сервису, здесь только lookups.
type RestaurantStorage interface {
	GetRestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	GetRestaurantByEmail(ctx context.Context, email string) (*models.Restaurant, error)
	// GetMenuItemByIDTx читает позицию меню внутри транзакции создания заказа,
	// чтобы снимок имени и цены был согласован с моментом вставки.
	GetMenuItemByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.MenuItem, error)
}

type restaurantRepository struct {
	db *sql.DB
}

// NewRestaurantRepository создаёт новый репозиторий каталога.
func NewRestaurantRepository(db *sql.DB) RestaurantStorage {
	return &restaurantRepository{db: db}
}

func (r *restaurantRepository) GetRestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	restaurant := &models.Restaurant{}
	row := r.db.QueryRowContext(ctx, "SELECT id, name, email, pass_hash FROM restaurants WHERE id = $1", id)
	if err := row.Scan(&restaurant.ID, &restaurant.Name, &restaurant.Email, &restaurant.PassHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}
	return restaurant, nil
}

func (r *restaurantRepository) GetRestaurantByEmail(ctx context.Context, email string) (*models.Restaurant, error) {
	restaurant := &models.Restaurant{}
	row := r.db.QueryRowContext(ctx, "SELECT id, name, email, pass_hash FROM restaurants WHERE email = $1", email)
	if err := row.Scan(&restaurant.ID, &restaurant.Name, &restaurant.Email, &restaurant.PassHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}
	return restaurant, nil
}

func (r *restaurantRepository) GetMenuItemByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	row := tx.QueryRowContext(ctx, "SELECT id, restaurant_id, name, price FROM menu_items WHERE id = $1", id)
	if err := row.Scan(&item.ID, &item.RestaurantID, &item.Name, &item.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, err
	}
	return item, nil
}

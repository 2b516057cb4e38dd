package models

import "github.com/google/uuid"

// Restaurant представляет ресторан-партнёра
type Restaurant struct {
	ID       uuid.UUID
	Name     string
	Email    string
	PassHash []byte
}

// MenuItem — позиция меню; цена в минорных единицах валюты.
// Используется только для чтения при формировании заказа,
// управление каталогом живёт в другом сервисе.
type MenuItem struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Price        int
}

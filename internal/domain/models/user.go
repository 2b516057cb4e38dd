package models

import "github.com/google/uuid"

// User представляет пользователя (клиента)
type User struct {
	ID       uuid.UUID
	Email    string
	Name     string
	PassHash []byte
}

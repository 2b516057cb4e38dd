package security

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Вид субъекта токена: обычный пользователь или оператор ресторана.
const (
	ActorKindUser       = "user"
	ActorKindRestaurant = "restaurant"
)

// NewToken генерирует JWT-токен для субъекта указанного вида с заданным временем жизни.
// Секрет для подписи берётся из переменной окружения JWT_SECRET.
func NewToken(ctx context.Context, actorID uuid.UUID, kind string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  actorID.String(),
		"kind": kind,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secretStr := os.Getenv("JWT_SECRET")
	if secretStr == "" {
		return "", errors.New("JWT_SECRET environment variable is not set")
	}
	return token.SignedString([]byte(secretStr))
}

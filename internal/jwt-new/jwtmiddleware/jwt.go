package jwtmiddleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	security "github.com/linemk/food-orders/internal/jwt-new"
)

type contextKey string

const ActorIDKey contextKey = "actorID"

// NewJWTMiddleware создаёт middleware для проверки JWT; секрет берётся из
// переменной окружения. Параметр kind ограничивает маршруты субъектами
// нужного вида: пользовательские ручки не принимают токен ресторана и наоборот.
func NewJWTMiddleware(kind string) func(http.Handler) http.Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}
			tokenStr := parts[1]

			// Парсинг и проверка токена
			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				// Проверка алгоритма
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			tokenKind, ok := claims["kind"].(string)
			if !ok || tokenKind != kind {
				http.Error(w, "token is not valid for this resource", http.StatusForbidden)
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "invalid token claims: sub not found", http.StatusUnauthorized)
				return
			}

			actorID, err := uuid.Parse(sub)
			if err != nil {
				http.Error(w, "invalid token claims: invalid actor id", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ActorIDKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewUserMiddleware — middleware для пользовательских маршрутов.
func NewUserMiddleware() func(http.Handler) http.Handler {
	return NewJWTMiddleware(security.ActorKindUser)
}

// NewRestaurantMiddleware — middleware для ресторанных маршрутов.
func NewRestaurantMiddleware() func(http.Handler) http.Handler {
	return NewJWTMiddleware(security.ActorKindRestaurant)
}

// FromContext извлекает идентификатор субъекта из контекста.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ActorIDKey).(uuid.UUID)
	return id, ok
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	security "github.com/linemk/food-orders/internal/jwt-new"
	"github.com/linemk/food-orders/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	log            *slog.Logger
	userRepo       storage.UserStorage
	restaurantRepo storage.RestaurantStorage
	tokenTTL       time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, restaurantRepo storage.RestaurantStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:            log,
		userRepo:       userRepo,
		restaurantRepo: restaurantRepo,
		tokenTTL:       tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
	RestaurantLogin(ctx context.Context, email, password string) (string, error)
}

// Login осуществляет аутентификацию пользователя.
// Если пользователь не найден, он создаётся (пароль хэшируется через bcrypt,
// который автоматически добавляет соль). Если найден — введённый пароль
// сравнивается с сохранённым хэшированным значением.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Info("user not found, creating new user")
			passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				logger.Error("failed to hash password", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
			}
			newUser := &models.User{
				ID:       uuid.New(),
				Email:    email,
				Name:     strings.SplitN(email, "@", 2)[0],
				PassHash: passHash,
			}
			user, err = a.userRepo.CreateUser(ctx, newUser)
			if err != nil {
				logger.Error("failed to create user", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to create user: %w", op, err)
			}
		} else {
			logger.Error("failed to get user", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to get user: %w", op, err)
		}
	} else {
		if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
			logger.Warn("invalid password")
			return "", fmt.Errorf("%s: invalid credentials: %w", op, err)
		}
	}

	token, err := security.NewToken(ctx, user.ID, security.ActorKindUser, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.String("userID", user.ID.String()))
	return token, nil
}

// RestaurantLogin осуществляет аутентификацию ресторана.
// В отличие от пользователей рестораны автоматически не создаются:
// их заводит внешний сервис каталога.
func (a *AuthService) RestaurantLogin(ctx context.Context, email, password string) (string, error) {
	const op = "auth.RestaurantLogin"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking restaurant")

	restaurant, err := a.restaurantRepo.GetRestaurantByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrRestaurantNotFound) {
			logger.Warn("restaurant not found")
			return "", fmt.Errorf("%s: invalid credentials: %w", op, err)
		}
		logger.Error("failed to get restaurant", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get restaurant: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(restaurant.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, err)
	}

	token, err := security.NewToken(ctx, restaurant.ID, security.ActorKindRestaurant, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("restaurant logged in successfully", slog.String("restaurantID", restaurant.ID.String()))
	return token, nil
}

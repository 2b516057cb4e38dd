package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/linemk/food-orders/internal/app"
	"github.com/linemk/food-orders/internal/app/handlers"
	"github.com/linemk/food-orders/internal/config"
	"github.com/linemk/food-orders/internal/gateway"
	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/lib/logger"
	"github.com/linemk/food-orders/internal/lib/logger/handlers/urllog"
	"github.com/linemk/food-orders/internal/push"
	"github.com/linemk/food-orders/internal/service"
	"github.com/linemk/food-orders/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// .env необязателен: в проде переменные приходят из окружения
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	orderRepo := storage.NewOrderRepository(application.DB)
	sessionRepo := storage.NewPaymentSessionRepository(application.DB)
	notificationRepo := storage.NewNotificationRepository(application.DB)
	tokenRepo := storage.NewTokenRepository(application.DB)
	userRepo := storage.NewUserRepository(application.DB)
	restaurantRepo := storage.NewRestaurantRepository(application.DB)
	incidentRepo := storage.NewIncidentRepository(application.DB)
	statsRepo := storage.NewStatsRepository(application.DB)

	// внешние клиенты: платёжный шлюз и push-провайдер
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIVersion, cfg.Gateway.AppID, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	pushClient := push.NewClient(cfg.Push.URL, cfg.Push.Timeout)

	notifyService := service.NewNotifyService(application.Logger, notificationRepo, tokenRepo, pushClient)
	lifecycleService := service.NewLifecycleService(application.Logger, application.DB, orderRepo, notifyService)
	orderService := service.NewOrderService(application.Logger, application.DB, orderRepo, restaurantRepo, userRepo, sessionRepo)
	paymentService := service.NewPaymentService(application.Logger, application.DB, orderRepo, sessionRepo, userRepo, incidentRepo, gatewayClient, lifecycleService)
	authService := service.NewAuthService(application.Logger, userRepo, restaurantRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	statsService := service.NewStatsService(application.Logger, statsRepo)

	// эндпоинты для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))
	router.Post("/api/auth/restaurant", handlers.RestaurantAuthHandler(application.Logger, authService))

	// callback шлюза приходит без JWT: шлюз не наш клиент
	router.Post("/api/payments/{sessionID}/callback", handlers.CallbackHandler(application.Logger, paymentService))

	// маршруты пользователя
	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewUserMiddleware())
		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders/{orderID}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Get("/api/orders/history/{days}", handlers.OrderHistoryHandler(application.Logger, orderService))
		r.Post("/api/orders/{orderID}/payment-session", handlers.OpenSessionHandler(application.Logger, paymentService))
		r.Get("/api/orders/{orderID}/payment-status", handlers.PaymentStatusHandler(application.Logger, paymentService))
		r.Post("/api/notifications/token", handlers.RegisterTokenHandler(application.Logger, notifyService))
		r.Get("/api/notifications", handlers.UserNotificationsHandler(application.Logger, notifyService))
	})

	// маршруты ресторана
	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewRestaurantMiddleware())
		r.Post("/api/orders/{orderID}/transition", handlers.TransitionHandler(application.Logger, lifecycleService))
		r.Get("/api/orders/pending", handlers.ActiveOrdersHandler(application.Logger, orderService))
		r.Post("/api/notifications/broadcast", handlers.BroadcastHandler(application.Logger, notifyService))
		r.Get("/api/notifications/restaurant", handlers.RestaurantNotificationsHandler(application.Logger, notifyService))
		r.Get("/api/stats", handlers.StatsHandler(application.Logger, statsService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

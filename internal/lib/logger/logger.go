package logger

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/linemk/food-orders/internal/lib/logger/handlers/slogpretty"
)

// Окружения из config.Env.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// SetupLogger инициализирует логгер в зависимости от переданного окружения:
// для локальной разработки используется цветной вывод (pretty), иначе JSON.
// Неизвестное окружение трактуется как production.
func SetupLogger(env string) *slog.Logger {
	switch env {
	case EnvDevelopment:
		return setupPrettySlog()
	case EnvStaging:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
}

func setupPrettySlog() *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)
	return slog.New(handler)
}

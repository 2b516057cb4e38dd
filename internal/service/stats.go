package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/storage"
)

// топ продаж ограничен тройкой, как в панели ресторана
const topItemsLimit = 3

// StatsResponse — сводка по заказам ресторана.
type StatsResponse struct {
	TotalOrders       int64             `json:"total_orders"`
	TotalRevenue      int64             `json:"total_revenue"`
	AverageOrderValue float64           `json:"average_order_value"`
	TopItems          []storage.TopItem `json:"top_items"`
}

type StatsService interface {
	GetStats(ctx context.Context, restaurantID uuid.UUID) (*StatsResponse, error)
}

type statsService struct {
	log       *slog.Logger
	statsRepo storage.StatsStorage
}

func NewStatsService(log *slog.Logger, statsRepo storage.StatsStorage) StatsService {
	return &statsService{log: log, statsRepo: statsRepo}
}

func (s *statsService) GetStats(ctx context.Context, restaurantID uuid.UUID) (*StatsResponse, error) {
	const op = "service.StatsService.GetStats"
	logger := s.log.With(slog.String("op", op), slog.String("restaurantID", restaurantID.String()))

	totalOrders, err := s.statsRepo.TotalOrders(ctx, restaurantID)
	if err != nil {
		logger.Error("failed to get total orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get total orders: %w", op, err)
	}
	totalRevenue, err := s.statsRepo.TotalRevenue(ctx, restaurantID)
	if err != nil {
		logger.Error("failed to get total revenue", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get total revenue: %w", op, err)
	}
	avg, err := s.statsRepo.AverageOrderValue(ctx, restaurantID)
	if err != nil {
		logger.Error("failed to get average order value", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get average order value: %w", op, err)
	}
	topItems, err := s.statsRepo.TopItems(ctx, restaurantID, topItemsLimit)
	if err != nil {
		logger.Error("failed to get top items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get top items: %w", op, err)
	}

	return &StatsResponse{
		TotalOrders:       totalOrders,
		TotalRevenue:      totalRevenue,
		AverageOrderValue: avg,
		TopItems:          topItems,
	}, nil
}

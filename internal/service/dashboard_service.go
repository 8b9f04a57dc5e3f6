package service

import (
	"context"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"
)

// DashboardService assembles the figures shown on the dashboard.
type DashboardService interface {
	Summary(ctx context.Context) (*domain.DashboardSummary, error)
}

type dashboardService struct {
	dashboard repository.DashboardRepository
	now       func() time.Time
}

func NewDashboardService(dashboard repository.DashboardRepository) DashboardService {
	return &dashboardService{dashboard: dashboard, now: time.Now}
}

// Summary reports catalog totals and the quantities moved since local midnight.
func (s *dashboardService) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	return s.dashboard.Summary(ctx, startOfDay(s.now()))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

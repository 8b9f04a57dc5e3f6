package repository

import (
	"context"
	"fmt"
	"time"

	"zapstock/internal/domain"
)

// DashboardRepository runs the aggregate queries behind the dashboard.
type DashboardRepository interface {
	Summary(ctx context.Context, since time.Time) (*domain.DashboardSummary, error)
}

type dashboardRepository struct {
	db DBTX
}

func NewDashboardRepository(db DBTX) DashboardRepository {
	return &dashboardRepository{db: db}
}

// Summary computes catalog totals plus the in/out quantities recorded at or after since.
func (r *dashboardRepository) Summary(ctx context.Context, since time.Time) (*domain.DashboardSummary, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM suppliers),
			(SELECT COALESCE(SUM(current_stock), 0) FROM products),
			(SELECT COALESCE(SUM(current_stock * cost_price), 0) FROM products),
			(SELECT COUNT(*) FROM products WHERE current_stock < min_stock_quantity),
			(SELECT COALESCE(SUM(quantity), 0) FROM stock_transactions WHERE type = 'in' AND created_at >= $1),
			(SELECT COALESCE(SUM(quantity), 0) FROM stock_transactions WHERE type = 'out' AND created_at >= $1)
	`

	summary := &domain.DashboardSummary{}
	err := r.db.QueryRowContext(ctx, query, since).Scan(
		&summary.TotalProducts,
		&summary.TotalCategories,
		&summary.TotalSuppliers,
		&summary.TotalStockUnits,
		&summary.StockValue,
		&summary.LowStockCount,
		&summary.TodayIn,
		&summary.TodayOut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard summary: %w", err)
	}

	return summary, nil
}

package domain

import "github.com/shopspring/decimal"

// DashboardSummary aggregates headline inventory figures.
type DashboardSummary struct {
	TotalProducts   int             `json:"total_products"`
	TotalCategories int             `json:"total_categories"`
	TotalSuppliers  int             `json:"total_suppliers"`
	TotalStockUnits int             `json:"total_stock_units"`
	StockValue      decimal.Decimal `json:"stock_value"`
	LowStockCount   int             `json:"low_stock_count"`
	TodayIn         int             `json:"today_in"`
	TodayOut        int             `json:"today_out"`
}

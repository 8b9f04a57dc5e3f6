package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a stock-keeping item. CurrentStock is only ever changed through
// recorded movements.
type Product struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	SKU              string          `json:"sku" db:"sku"`
	Description      string          `json:"description" db:"description"`
	CategoryID       *uuid.UUID      `json:"category_id" db:"category_id"`
	SupplierID       *uuid.UUID      `json:"supplier_id" db:"supplier_id"`
	CostPrice        decimal.Decimal `json:"cost_price" db:"cost_price"`
	SellingPrice     decimal.Decimal `json:"selling_price" db:"selling_price"`
	CurrentStock     int             `json:"current_stock" db:"current_stock"`
	MinStockQuantity int             `json:"min_stock_quantity" db:"min_stock_quantity"`
	ImageURL         string          `json:"image_url" db:"image_url"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// LowStock reports whether the product is currently below its threshold.
func (p *Product) LowStock() bool {
	return IsLowStock(p.CurrentStock, p.MinStockQuantity)
}

// ProductDetail is a product joined with the names of its category and supplier.
type ProductDetail struct {
	Product
	CategoryName string `json:"category_name"`
	SupplierName string `json:"supplier_name"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	SupplierID *uuid.UUID
	Search     string
	LowStock   bool
	SortBy     string
	SortDesc   bool
	Page       int
	PageSize   int
}

// Category groups products.
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Supplier is a vendor products are bought from.
type Supplier struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContactName string    `json:"contact_name" db:"contact_name"`
	Phone       string    `json:"phone" db:"phone"`
	Email       string    `json:"email" db:"email"`
	Address     string    `json:"address" db:"address"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

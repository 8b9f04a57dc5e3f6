package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"zapstock/internal/domain"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ApplyStockDelta(ctx context.Context, id uuid.UUID, delta int) (int, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error)
	ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `p.id, p.name, p.sku, p.description, p.category_id, p.supplier_id,
	p.cost_price, p.selling_price, p.current_stock, p.min_stock_quantity, p.image_url,
	p.created_at, p.updated_at`

const productDetailSelect = `
	SELECT ` + productColumns + `, COALESCE(c.name, ''), COALESCE(s.name, '')
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN suppliers s ON s.id = p.supplier_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, extra ...any) (*domain.Product, error) {
	var (
		product    domain.Product
		sku        sql.NullString
		categoryID uuid.NullUUID
		supplierID uuid.NullUUID
	)
	dest := []any{
		&product.ID,
		&product.Name,
		&sku,
		&product.Description,
		&categoryID,
		&supplierID,
		&product.CostPrice,
		&product.SellingPrice,
		&product.CurrentStock,
		&product.MinStockQuantity,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	product.SKU = sku.String
	if categoryID.Valid {
		product.CategoryID = &categoryID.UUID
	}
	if supplierID.Valid {
		product.SupplierID = &supplierID.UUID
	}
	return &product, nil
}

func scanProductDetail(row rowScanner) (*domain.ProductDetail, error) {
	var detail domain.ProductDetail
	product, err := scanProduct(row, &detail.CategoryName, &detail.SupplierName)
	if err != nil {
		return nil, err
	}
	detail.Product = *product
	return &detail, nil
}

func nullableSKU(sku string) sql.NullString {
	sku = strings.TrimSpace(sku)
	return sql.NullString{String: sku, Valid: sku != ""}
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// mapProductWriteError translates constraint violations raised by product writes.
func mapProductWriteError(err error, op string) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: sku already in use", domain.ErrAlreadyExists)
	case isForeignKeyViolation(err):
		return domain.Invalid("category or supplier does not exist")
	case isCheckViolation(err):
		return domain.Invalid("stock quantities must not be negative")
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

// Create inserts a new product. CurrentStock is written as given; callers that start with
// stock on hand record it through the ledger in the same transaction.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, sku, description, category_id, supplier_id, cost_price,
			selling_price, current_stock, min_stock_quantity, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		nullableSKU(product.SKU),
		product.Description,
		nullableUUID(product.CategoryID),
		nullableUUID(product.SupplierID),
		product.CostPrice,
		product.SellingPrice,
		product.CurrentStock,
		product.MinStockQuantity,
		product.ImageURL,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return mapProductWriteError(err, "create")
	}

	return nil
}

// Update writes every editable attribute. current_stock is deliberately absent: it only
// changes through ApplyStockDelta.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, sku = $3, description = $4, category_id = $5, supplier_id = $6,
		    cost_price = $7, selling_price = $8, min_stock_quantity = $9
		WHERE id = $1
		RETURNING current_stock, image_url, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		nullableSKU(product.SKU),
		product.Description,
		nullableUUID(product.CategoryID),
		nullableUUID(product.SupplierID),
		product.CostPrice,
		product.SellingPrice,
		product.MinStockQuantity,
	).Scan(&product.CurrentStock, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		return mapProductWriteError(err, "update")
	}

	return nil
}

func (r *productRepository) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET image_url = $2 WHERE id = $1`, id, imageURL)
	if err != nil {
		return fmt.Errorf("failed to update product image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// Delete removes a product; its ledger entries go with it through ON DELETE CASCADE.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByIDForUpdate retrieves a product and holds an exclusive row lock on it until the
// enclosing transaction ends. Must be called with a transaction-bound repository.
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1 FOR UPDATE`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		if isLockTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

// ApplyStockDelta adds delta to current_stock and returns the new value. The caller must hold
// the row lock taken by FindByIDForUpdate.
func (r *productRepository) ApplyStockDelta(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE products
		SET current_stock = current_stock + $2
		WHERE id = $1
		RETURNING current_stock
	`

	var newStock int
	err := r.db.QueryRowContext(ctx, query, id, delta).Scan(&newStock)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return 0, domain.ErrProductNotFound
		case isCheckViolation(err):
			return 0, domain.ErrInsufficientStock
		case isLockTimeout(err):
			return 0, fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
		}
		return 0, fmt.Errorf("failed to apply stock delta: %w", err)
	}

	return newStock, nil
}

// List retrieves products with optional filtering, pagination, and sorting. A non-positive
// page size returns every matching row.
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]string{
		"name":          "p.name",
		"sku":           "p.sku",
		"current_stock": "p.current_stock",
		"selling_price": "p.selling_price",
		"created_at":    "p.created_at",
	}
	sortColumn, ok := validSortFields[filter.SortBy]
	if !ok {
		sortColumn = "p.created_at"
	}
	sortOrder := "ASC"
	if filter.SortDesc {
		sortOrder = "DESC"
	}

	conditions := []string{}
	args := []any{}
	argIndex := 1

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}
	if filter.SupplierID != nil {
		conditions = append(conditions, fmt.Sprintf("p.supplier_id = $%d", argIndex))
		args = append(args, *filter.SupplierID)
		argIndex++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.sku ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+search+"%")
		argIndex++
	}
	if filter.LowStock {
		conditions = append(conditions, "p.current_stock < p.min_stock_quantity")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM products p " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf("%s %s ORDER BY %s %s, p.id", productDetailSelect, whereClause, sortColumn, sortOrder)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, filter.PageSize, (page-1)*filter.PageSize)
	}

	products, err := r.queryDetails(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListLowStock returns products below their threshold, the largest shortfall first.
func (r *productRepository) ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error) {
	query := productDetailSelect + `
		WHERE p.current_stock < p.min_stock_quantity
		ORDER BY (p.min_stock_quantity - p.current_stock) DESC, p.name
		LIMIT $1
	`
	return r.queryDetails(ctx, query, limit)
}

func (r *productRepository) queryDetails(ctx context.Context, query string, args ...any) ([]*domain.ProductDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.ProductDetail{}
	for rows.Next() {
		product, err := scanProductDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

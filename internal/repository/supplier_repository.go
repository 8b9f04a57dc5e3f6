package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zapstock/internal/domain"

	"github.com/google/uuid"
)

// SupplierRepository defines the interface for supplier data access
type SupplierRepository interface {
	Create(ctx context.Context, supplier *domain.Supplier) error
	Update(ctx context.Context, supplier *domain.Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.Supplier, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error)
}

type supplierRepository struct {
	db DBTX
}

func NewSupplierRepository(db DBTX) SupplierRepository {
	return &supplierRepository{db: db}
}

const supplierColumns = `id, name, contact_name, phone, email, address, created_at, updated_at`

func scanSupplier(row rowScanner) (*domain.Supplier, error) {
	supplier := &domain.Supplier{}
	err := row.Scan(
		&supplier.ID,
		&supplier.Name,
		&supplier.ContactName,
		&supplier.Phone,
		&supplier.Email,
		&supplier.Address,
		&supplier.CreatedAt,
		&supplier.UpdatedAt,
	)
	return supplier, err
}

func (r *supplierRepository) Create(ctx context.Context, supplier *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (` + supplierColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		supplier.ID,
		supplier.Name,
		supplier.ContactName,
		supplier.Phone,
		supplier.Email,
		supplier.Address,
		supplier.CreatedAt,
		supplier.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create supplier: %w", err)
	}

	return nil
}

func (r *supplierRepository) Update(ctx context.Context, supplier *domain.Supplier) error {
	query := `
		UPDATE suppliers
		SET name = $2, contact_name = $3, phone = $4, email = $5, address = $6
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		supplier.ID,
		supplier.Name,
		supplier.ContactName,
		supplier.Phone,
		supplier.Email,
		supplier.Address,
	).Scan(&supplier.CreatedAt, &supplier.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSupplierNotFound
		}
		return fmt.Errorf("failed to update supplier: %w", err)
	}

	return nil
}

func (r *supplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete supplier: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrSupplierNotFound
	}

	return nil
}

func (r *supplierRepository) List(ctx context.Context) ([]*domain.Supplier, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []*domain.Supplier{}
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, supplier)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppliers: %w", err)
	}

	return suppliers, nil
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	supplier, err := scanSupplier(r.db.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to find supplier by ID: %w", err)
	}

	return supplier, nil
}

package repository

import (
	"context"
	"fmt"

	"zapstock/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementRepository is the append-only stock ledger. There is intentionally no update or delete.
type MovementRepository interface {
	Create(ctx context.Context, movement *domain.Movement) error
	ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.Movement, error)
	ListWithProducts(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error)
	LedgerBalance(ctx context.Context, productID uuid.UUID) (int, error)
}

type movementRepository struct {
	db DBTX
}

// NewMovementRepository creates a new instance of MovementRepository
func NewMovementRepository(db DBTX) MovementRepository {
	return &movementRepository{db: db}
}

const movementColumns = `t.id, t.product_id, t.type, t.quantity, t.unit_price, t.reference_number,
	t.notes, t.created_by, t.created_at`

func scanMovement(row rowScanner, extra ...any) (*domain.Movement, error) {
	var (
		movement  domain.Movement
		unitPrice decimal.NullDecimal
		createdBy uuid.NullUUID
	)
	dest := []any{
		&movement.ID,
		&movement.ProductID,
		&movement.Type,
		&movement.Quantity,
		&unitPrice,
		&movement.ReferenceNumber,
		&movement.Notes,
		&createdBy,
		&movement.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if unitPrice.Valid {
		movement.UnitPrice = &unitPrice.Decimal
	}
	if createdBy.Valid {
		movement.CreatedBy = &createdBy.UUID
	}
	return &movement, nil
}

// Create appends one ledger entry. The id is generated here when unset and the timestamp is
// taken from the database clock at insert time.
func (r *movementRepository) Create(ctx context.Context, movement *domain.Movement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}

	var unitPrice decimal.NullDecimal
	if movement.UnitPrice != nil {
		unitPrice = decimal.NewNullDecimal(*movement.UnitPrice)
	}

	query := `
		INSERT INTO stock_transactions (id, product_id, type, quantity, unit_price, reference_number,
			notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, clock_timestamp())
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		movement.ID,
		movement.ProductID,
		string(movement.Type),
		movement.Quantity,
		unitPrice,
		movement.ReferenceNumber,
		movement.Notes,
		nullableUUID(movement.CreatedBy),
	).Scan(&movement.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		if isCheckViolation(err) {
			return domain.Invalid("movement type or quantity rejected by ledger")
		}
		return fmt.Errorf("failed to record stock movement: %w", err)
	}

	return nil
}

// ListForProduct returns a product's ledger, newest first. A non-positive limit returns every entry.
func (r *movementRepository) ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.Movement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_transactions t
		WHERE t.product_id = $1
		ORDER BY t.created_at DESC, t.id DESC`
	args := []any{productID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	movements := []*domain.Movement{}
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, movement)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}

	return movements, nil
}

// ListWithProducts returns ledger entries joined with product name and description, newest
// first. A non-positive limit returns the whole ledger.
func (r *movementRepository) ListWithProducts(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error) {
	query := `SELECT ` + movementColumns + `, p.name, p.description
		FROM stock_transactions t
		JOIN products p ON p.id = t.product_id
		ORDER BY t.created_at DESC, t.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	movements := []*domain.MovementWithProduct{}
	for rows.Next() {
		var entry domain.MovementWithProduct
		movement, err := scanMovement(rows, &entry.ProductName, &entry.ProductDescription)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		entry.Movement = *movement
		movements = append(movements, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}

	return movements, nil
}

// LedgerBalance is the signed sum of a product's movements.
func (r *movementRepository) LedgerBalance(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'out' THEN -quantity ELSE quantity END), 0)
		FROM stock_transactions
		WHERE product_id = $1
	`

	var balance int
	if err := r.db.QueryRowContext(ctx, query, productID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute ledger balance: %w", err)
	}
	return balance, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"zapstock/internal/domain"
	"zapstock/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultHistoryLimit is used when a caller does not bound a product's history.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single page of product history.
	MaxHistoryLimit = 500

	maxReferenceLength = 100
)

// MovementService records stock movements and reads the ledger back.
type MovementService interface {
	RecordMovement(ctx context.Context, req domain.MovementRequest) (*domain.MovementResult, error)
	ListAll(ctx context.Context) ([]*domain.MovementWithProduct, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.Movement, error)
}

type movementService struct {
	txRunner     repository.TxRunner
	products     repository.ProductRepository
	movements    repository.MovementRepository
	historyLimit int
	logger       *zap.Logger
}

// NewMovementService creates a new instance of MovementService. historyLimit is the page size
// used when ListForProduct is called without a limit.
func NewMovementService(
	txRunner repository.TxRunner,
	products repository.ProductRepository,
	movements repository.MovementRepository,
	historyLimit int,
	logger *zap.Logger,
) MovementService {
	if historyLimit <= 0 || historyLimit > MaxHistoryLimit {
		historyLimit = DefaultHistoryLimit
	}
	return &movementService{
		txRunner:     txRunner,
		products:     products,
		movements:    movements,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func validateMovement(req domain.MovementRequest) error {
	if req.ProductID == uuid.Nil {
		return domain.Invalid("productId is required")
	}
	if !req.Type.Valid() {
		return domain.Invalid("type must be %q or %q", domain.MovementIn, domain.MovementOut)
	}
	if req.Quantity <= 0 {
		return domain.Invalid("quantity must be a positive integer")
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return domain.Invalid("unitPrice must not be negative")
	}
	if len(req.ReferenceNumber) > maxReferenceLength {
		return domain.Invalid("referenceNumber must be at most %d characters", maxReferenceLength)
	}
	return nil
}

// RecordMovement applies one movement to a product's stock and appends it to the ledger as a
// single transaction. The product row is locked before the sufficiency check, so concurrent
// movements on the same product are applied one after another and the check always sees the
// latest committed balance. Nothing is persisted when an error is returned.
func (s *movementService) RecordMovement(ctx context.Context, req domain.MovementRequest) (*domain.MovementResult, error) {
	if err := validateMovement(req); err != nil {
		return nil, err
	}

	var (
		newStock int
		minStock int
		movement *domain.Movement
	)
	err := s.txRunner.RunInTx(ctx, func(repos repository.TxRepositories) error {
		product, err := repos.Products.FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}

		if req.Type == domain.MovementOut && product.CurrentStock < req.Quantity {
			return domain.ErrInsufficientStock
		}

		newStock, err = repos.Products.ApplyStockDelta(ctx, product.ID, req.Type.SignedDelta(req.Quantity))
		if err != nil {
			return err
		}
		minStock = product.MinStockQuantity

		movement = &domain.Movement{
			ProductID:       product.ID,
			Type:            req.Type,
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			CreatedBy:       req.CreatedBy,
		}
		return repos.Movements.Create(ctx, movement)
	})
	if err != nil {
		s.logRejected(req, err)
		return nil, err
	}

	result := &domain.MovementResult{
		NewCurrentStock: newStock,
		Movement:        movement,
		LowStockWarning: domain.IsLowStock(newStock, minStock),
	}

	s.logger.Info("stock movement recorded",
		zap.String("product_id", req.ProductID.String()),
		zap.String("movement_id", movement.ID.String()),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity),
		zap.Int("new_current_stock", newStock),
		zap.Bool("low_stock", result.LowStockWarning),
	)
	if result.LowStockWarning {
		s.logger.Warn("product below minimum stock",
			zap.String("product_id", req.ProductID.String()),
			zap.Int("current_stock", newStock),
			zap.Int("min_stock_quantity", minStock),
		)
	}

	return result, nil
}

func (s *movementService) logRejected(req domain.MovementRequest, err error) {
	fields := []zap.Field{
		zap.String("product_id", req.ProductID.String()),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrValidation):
		s.logger.Info("stock movement rejected", fields...)
	case errors.Is(err, domain.ErrLockTimeout):
		s.logger.Warn("stock movement timed out waiting for product lock", fields...)
	default:
		s.logger.Error("stock movement failed", fields...)
	}
}

// ListAll returns the whole ledger joined with product names, newest first.
func (s *movementService) ListAll(ctx context.Context) ([]*domain.MovementWithProduct, error) {
	movements, err := s.movements.ListWithProducts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, nil
}

// ListRecent returns at most limit ledger entries, newest first.
func (s *movementService) ListRecent(ctx context.Context, limit int) ([]*domain.MovementWithProduct, error) {
	movements, err := s.movements.ListWithProducts(ctx, clampLimit(limit, s.historyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent stock movements: %w", err)
	}
	return movements, nil
}

// ListForProduct returns a product's ledger, newest first. A non-positive limit falls back to
// the configured default and anything above MaxHistoryLimit is capped.
func (s *movementService) ListForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.Movement, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	movements, err := s.movements.ListForProduct(ctx, productID, clampLimit(limit, s.historyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list product history: %w", err)
	}
	return movements, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

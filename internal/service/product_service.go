package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/export"
	"zapstock/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const openingBalanceNote = "opening balance"

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	SaveBase64(name, encoded string) (string, error)
	Remove(url string) error
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, product *domain.Product, initialStock int, createdBy *uuid.UUID) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error)
	ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error)
	Reconcile(ctx context.Context, id uuid.UUID) (*domain.Reconciliation, error)
	SetImage(ctx context.Context, id uuid.UUID, encoded string) (*domain.Product, error)
	Export(ctx context.Context, w io.Writer) error
}

type productService struct {
	txRunner  repository.TxRunner
	products  repository.ProductRepository
	movements repository.MovementRepository
	images    ImageStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	txRunner repository.TxRunner,
	products repository.ProductRepository,
	movements repository.MovementRepository,
	images ImageStore,
	logger *zap.Logger,
) ProductService {
	return &productService{
		txRunner:  txRunner,
		products:  products,
		movements: movements,
		images:    images,
		logger:    logger,
		now:       time.Now,
	}
}

func validateProduct(product *domain.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	product.SKU = strings.TrimSpace(product.SKU)
	if product.Name == "" {
		return domain.Invalid("name is required")
	}
	if product.MinStockQuantity < 0 {
		return domain.Invalid("min_stock_quantity must not be negative")
	}
	if product.CostPrice.IsNegative() || product.SellingPrice.IsNegative() {
		return domain.Invalid("prices must not be negative")
	}
	return nil
}

// Create inserts a product. A positive initialStock is booked as an opening "in" movement in
// the same transaction, so the stock counter always equals the sum of the ledger.
func (s *productService) Create(ctx context.Context, product *domain.Product, initialStock int, createdBy *uuid.UUID) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	if initialStock < 0 {
		return domain.Invalid("initial_stock must not be negative")
	}

	now := s.now()
	product.ID = uuid.New()
	product.CurrentStock = 0
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.txRunner.RunInTx(ctx, func(repos repository.TxRepositories) error {
		if err := repos.Products.Create(ctx, product); err != nil {
			return err
		}
		if initialStock == 0 {
			return nil
		}

		newStock, err := repos.Products.ApplyStockDelta(ctx, product.ID, initialStock)
		if err != nil {
			return err
		}
		product.CurrentStock = newStock

		return repos.Movements.Create(ctx, &domain.Movement{
			ProductID: product.ID,
			Type:      domain.MovementIn,
			Quantity:  initialStock,
			UnitPrice: &product.CostPrice,
			Notes:     openingBalanceNote,
			CreatedBy: createdBy,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.Int("initial_stock", initialStock),
	)
	return nil
}

// Update writes the editable attributes of a product. Stock is not editable here; it only
// moves through recorded movements.
func (s *productService) Update(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	return s.products.Update(ctx, product)
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	if product.ImageURL != "" {
		if err := s.images.Remove(product.ImageURL); err != nil {
			s.logger.Warn("failed to remove product image", zap.String("product_id", id.String()), zap.Error(err))
		}
	}

	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.ProductDetail, int, error) {
	return s.products.List(ctx, filter)
}

// ListLowStock returns at most limit products below their minimum, the largest shortfall first.
func (s *productService) ListLowStock(ctx context.Context, limit int) ([]*domain.ProductDetail, error) {
	return s.products.ListLowStock(ctx, clampLimit(limit, DefaultHistoryLimit))
}

// Reconcile compares the stock counter with the sum of the ledger.
func (s *productService) Reconcile(ctx context.Context, id uuid.UUID) (*domain.Reconciliation, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	balance, err := s.movements.LedgerBalance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile product: %w", err)
	}

	rec := &domain.Reconciliation{
		ProductID:     id.String(),
		CurrentStock:  product.CurrentStock,
		LedgerBalance: balance,
		Consistent:    product.CurrentStock == balance,
	}
	if !rec.Consistent {
		s.logger.Error("stock counter disagrees with ledger",
			zap.String("product_id", id.String()),
			zap.Int("current_stock", product.CurrentStock),
			zap.Int("ledger_balance", balance),
		)
	}
	return rec, nil
}

// SetImage stores a new product image and replaces the previous one.
func (s *productService) SetImage(ctx context.Context, id uuid.UUID, encoded string) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.SaveBase64(id.String(), encoded)
	if err != nil {
		return nil, err
	}

	if err := s.products.UpdateImage(ctx, id, url); err != nil {
		_ = s.images.Remove(url)
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set product image: %w", err)
	}

	if product.ImageURL != "" {
		if err := s.images.Remove(product.ImageURL); err != nil {
			s.logger.Warn("failed to remove previous product image", zap.String("product_id", id.String()), zap.Error(err))
		}
	}

	product.ImageURL = url
	return product, nil
}

// Export writes every product as an xlsx workbook.
func (s *productService) Export(ctx context.Context, w io.Writer) error {
	products, _, err := s.products.List(ctx, domain.ProductFilter{SortBy: "name"})
	if err != nil {
		return err
	}
	return export.WriteProducts(w, products)
}

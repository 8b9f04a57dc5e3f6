package service

import (
	"context"
	"strings"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"

	"github.com/google/uuid"
)

// CatalogService manages categories and suppliers.
type CatalogService interface {
	CreateCategory(ctx context.Context, category *domain.Category) error
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)

	CreateSupplier(ctx context.Context, supplier *domain.Supplier) error
	UpdateSupplier(ctx context.Context, supplier *domain.Supplier) error
	DeleteSupplier(ctx context.Context, id uuid.UUID) error
	GetSupplier(ctx context.Context, id uuid.UUID) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]*domain.Supplier, error)
	ListSupplierProducts(ctx context.Context, id uuid.UUID) ([]*domain.ProductDetail, error)
}

type catalogService struct {
	categories repository.CategoryRepository
	suppliers  repository.SupplierRepository
	products   repository.ProductRepository
	now        func() time.Time
}

func NewCatalogService(
	categories repository.CategoryRepository,
	suppliers repository.SupplierRepository,
	products repository.ProductRepository,
) CatalogService {
	return &catalogService{
		categories: categories,
		suppliers:  suppliers,
		products:   products,
		now:        time.Now,
	}
}

func (s *catalogService) CreateCategory(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.Invalid("name is required")
	}
	category.ID = uuid.New()
	category.CreatedAt = s.now()
	category.UpdatedAt = category.CreatedAt
	return s.categories.Create(ctx, category)
}

func (s *catalogService) UpdateCategory(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.Invalid("name is required")
	}
	return s.categories.Update(ctx, category)
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.categories.FindByID(ctx, id)
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) CreateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return domain.Invalid("name is required")
	}
	supplier.ID = uuid.New()
	supplier.CreatedAt = s.now()
	supplier.UpdatedAt = supplier.CreatedAt
	return s.suppliers.Create(ctx, supplier)
}

func (s *catalogService) UpdateSupplier(ctx context.Context, supplier *domain.Supplier) error {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return domain.Invalid("name is required")
	}
	return s.suppliers.Update(ctx, supplier)
}

func (s *catalogService) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	return s.suppliers.Delete(ctx, id)
}

func (s *catalogService) GetSupplier(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	return s.suppliers.FindByID(ctx, id)
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	return s.suppliers.List(ctx)
}

// ListSupplierProducts returns every product bought from a supplier.
func (s *catalogService) ListSupplierProducts(ctx context.Context, id uuid.UUID) ([]*domain.ProductDetail, error) {
	if _, err := s.suppliers.FindByID(ctx, id); err != nil {
		return nil, err
	}
	products, _, err := s.products.List(ctx, domain.ProductFilter{SupplierID: &id, SortBy: "name"})
	return products, err
}

package transport

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/export"
	"zapstock/internal/i18n"
	"zapstock/internal/middleware"
	"zapstock/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductFields are the editable attributes of a product
type ProductFields struct {
	Name             string          `json:"name" validate:"required,max=200"`
	SKU              string          `json:"sku" validate:"max=64"`
	Description      string          `json:"description"`
	CategoryID       *uuid.UUID      `json:"category_id"`
	SupplierID       *uuid.UUID      `json:"supplier_id"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
	MinStockQuantity int             `json:"min_stock_quantity" validate:"gte=0"`
}

func (f ProductFields) toProduct() *domain.Product {
	return &domain.Product{
		Name:             f.Name,
		SKU:              f.SKU,
		Description:      f.Description,
		CategoryID:       f.CategoryID,
		SupplierID:       f.SupplierID,
		CostPrice:        f.CostPrice,
		SellingPrice:     f.SellingPrice,
		MinStockQuantity: f.MinStockQuantity,
	}
}

// CreateProductRequest is the body of POST /api/products
type CreateProductRequest struct {
	ProductFields
	InitialStock int `json:"initial_stock" validate:"gte=0"`
}

// UpdateProductRequest is the body of PUT /api/products/{id}. Stock is not accepted here.
type UpdateProductRequest struct {
	ProductFields
}

// ProductImageRequest carries a base64 encoded image
type ProductImageRequest struct {
	Image string `json:"image" validate:"required"`
}

// ProductListResponse is a page of products
type ProductListResponse struct {
	Products []*domain.ProductDetail `json:"products"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	responder
	productService service.ProductService
	maxImageBody   int64
}

// imageEnvelope covers the JSON around the base64 image payload.
const imageEnvelope = 1024

// NewProductHandler creates a new ProductHandler. maxImageBytes is the largest decoded image
// accepted by UploadImage.
func NewProductHandler(productService service.ProductService, maxImageBytes int64, catalog *i18n.Catalog, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		responder:      responder{catalog: catalog, logger: logger},
		productService: productService,
		maxImageBody:   int64(base64.StdEncoding.EncodedLen(int(maxImageBytes))) + imageEnvelope,
	}
}

// RegisterRoutes registers all product routes. history serves GET /api/products/{id}/transactions.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler, history http.HandlerFunc) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/export", h.Export)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.With(adminOnly).Delete("/{id}", h.Delete)
		r.Get("/{id}/transactions", history)
		r.Get("/{id}/reconcile", h.Reconcile)
		r.Post("/{id}/image", h.UploadImage)
	})
}

// List handles product listing with filters, search, sorting and pagination
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	products, total, err := h.productService.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Search:   q.Get("search"),
		LowStock: q.Get("low_stock") == "true",
		SortBy:   q.Get("sort_by"),
		SortDesc: strings.EqualFold(q.Get("sort_order"), "desc"),
	}

	var err error
	if filter.CategoryID, err = queryUUID(r, "category_id"); err != nil {
		return filter, err
	}
	if filter.SupplierID, err = queryUUID(r, "supplier_id"); err != nil {
		return filter, err
	}
	if filter.Page, err = queryInt(r, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(r, "page_size"); err != nil {
		return filter, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	return filter, nil
}

// Create adds a product, booking initial_stock as an opening movement
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	var createdBy *uuid.UUID
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		createdBy = &userID
	}

	product := req.toProduct()
	if err := h.productService.Create(r.Context(), product, req.InitialStock, createdBy); err != nil {
		h.respondError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Update edits product attributes. current_stock in the body is ignored.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product := req.toProduct()
	product.ID = id
	if err := h.productService.Update(r.Context(), product); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile reports whether a product's stock matches its ledger
func (h *ProductHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	rec, err := h.productService.Reconcile(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, rec)
}

// UploadImage stores a product image sent as base64
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	var req ProductImageRequest
	if !h.decodeWithin(w, r, &req, h.maxImageBody) {
		return
	}

	product, err := h.productService.SetImage(r.Context(), id, req.Image)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Export downloads every product as an xlsx workbook
func (h *ProductHandler) Export(w http.ResponseWriter, r *http.Request) {
	// Buffer the workbook so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.productService.Export(r.Context(), &buf); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.ProductsFilename(time.Now()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Failed to stream product export", zap.Error(err))
	}
}

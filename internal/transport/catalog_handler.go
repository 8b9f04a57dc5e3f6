package transport

import (
	"net/http"

	"zapstock/internal/domain"
	"zapstock/internal/i18n"
	"zapstock/internal/middleware"
	"zapstock/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryRequest is the body of category create and update
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// SupplierRequest is the body of supplier create and update
type SupplierRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address"`
}

func (req SupplierRequest) toSupplier() *domain.Supplier {
	return &domain.Supplier{
		Name:        req.Name,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
	}
}

// CatalogHandler handles HTTP requests for categories and suppliers
type CatalogHandler struct {
	responder
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, catalog *i18n.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		responder:      responder{catalog: catalog, logger: logger},
		catalogService: catalogService,
	}
}

// RegisterRoutes registers category and supplier routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListCategories)
		r.Post("/", h.CreateCategory)
		r.Get("/{id}", h.GetCategory)
		r.Put("/{id}", h.UpdateCategory)
		r.With(adminOnly).Delete("/{id}", h.DeleteCategory)
	})

	r.Route("/api/suppliers", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListSuppliers)
		r.Post("/", h.CreateSupplier)
		r.Get("/{id}", h.GetSupplier)
		r.Put("/{id}", h.UpdateSupplier)
		r.With(adminOnly).Delete("/{id}", h.DeleteSupplier)
		r.Get("/{id}/products", h.ListSupplierProducts)
	})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrCategoryNotFound)
	if !ok {
		return
	}
	category, err := h.catalogService.GetCategory(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	category := &domain.Category{Name: req.Name, Description: req.Description}
	if err := h.catalogService.CreateCategory(r.Context(), category); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrCategoryNotFound)
	if !ok {
		return
	}
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	category := &domain.Category{ID: id, Name: req.Name, Description: req.Description}
	if err := h.catalogService.UpdateCategory(r.Context(), category); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrCategoryNotFound)
	if !ok {
		return
	}
	if err := h.catalogService.DeleteCategory(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.catalogService.ListSuppliers(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, suppliers)
}

func (h *CatalogHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrSupplierNotFound)
	if !ok {
		return
	}
	supplier, err := h.catalogService.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, supplier)
}

func (h *CatalogHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req SupplierRequest
	if !h.decode(w, r, &req) {
		return
	}
	supplier := req.toSupplier()
	if err := h.catalogService.CreateSupplier(r.Context(), supplier); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, supplier)
}

func (h *CatalogHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrSupplierNotFound)
	if !ok {
		return
	}
	var req SupplierRequest
	if !h.decode(w, r, &req) {
		return
	}
	supplier := req.toSupplier()
	supplier.ID = id
	if err := h.catalogService.UpdateSupplier(r.Context(), supplier); err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, supplier)
}

func (h *CatalogHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrSupplierNotFound)
	if !ok {
		return
	}
	if err := h.catalogService.DeleteSupplier(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSupplierProducts lists the products bought from one supplier
func (h *CatalogHandler) ListSupplierProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrSupplierNotFound)
	if !ok {
		return
	}
	products, err := h.catalogService.ListSupplierProducts(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

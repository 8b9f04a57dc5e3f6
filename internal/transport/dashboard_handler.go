package transport

import (
	"net/http"

	"zapstock/internal/i18n"
	"zapstock/internal/middleware"
	"zapstock/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DashboardHandler serves the dashboard widgets
type DashboardHandler struct {
	responder
	dashboardService service.DashboardService
	productService   service.ProductService
	movementService  service.MovementService
	listLimit        int
}

// NewDashboardHandler creates a new DashboardHandler. listLimit caps the low-stock and
// recent-transaction lists.
func NewDashboardHandler(
	dashboardService service.DashboardService,
	productService service.ProductService,
	movementService service.MovementService,
	listLimit int,
	catalog *i18n.Catalog,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		responder:        responder{catalog: catalog, logger: logger},
		dashboardService: dashboardService,
		productService:   productService,
		movementService:  movementService,
		listLimit:        listLimit,
	}
}

// RegisterRoutes registers dashboard routes
func (h *DashboardHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/summary", h.Summary)
		r.Get("/low-stock", h.LowStock)
		r.Get("/recent-transactions", h.RecentTransactions)
	})
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboardService.Summary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

func (h *DashboardHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListLowStock(r.Context(), h.listLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *DashboardHandler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	movements, err := h.movementService.ListRecent(r.Context(), h.listLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, movements)
}

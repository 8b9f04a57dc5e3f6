package transport

import (
	"net/http"

	"zapstock/internal/domain"
	"zapstock/internal/i18n"
	"zapstock/internal/middleware"
	"zapstock/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTransactionRequest is the body of POST /api/transactions
type CreateTransactionRequest struct {
	ProductID       string           `json:"productId" validate:"required,uuid"`
	Type            string           `json:"type" validate:"required,oneof=in out"`
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice       *decimal.Decimal `json:"unitPrice"`
	ReferenceNumber string           `json:"referenceNumber" validate:"max=100"`
	Notes           string           `json:"notes"`
}

// CreateTransactionResponse reports a committed movement
type CreateTransactionResponse struct {
	Message         string           `json:"message"`
	NewCurrentStock int              `json:"newCurrentStock"`
	Transaction     *domain.Movement `json:"transaction"`
	LowStockWarning bool             `json:"lowStockWarning"`
}

// TransactionHandler handles HTTP requests for stock movements
type TransactionHandler struct {
	responder
	movementService service.MovementService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(movementService service.MovementService, catalog *i18n.Catalog, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		responder:       responder{catalog: catalog, logger: logger},
		movementService: movementService,
	}
}

// RegisterRoutes registers all stock movement routes. A product's history lives under the
// product routes; see ProductHandler.RegisterRoutes.
func (h *TransactionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
}

// Create records one stock movement. A withdrawal larger than the stock on hand gets 400 with
// the Thai message "สินค้าในสต็อกไม่เพียงพอต่อการเบิกออก". The English text is sent only when
// Accept-Language prefers English over Thai.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	movement := domain.MovementRequest{
		ProductID:       uuid.MustParse(req.ProductID),
		Type:            domain.MovementType(req.Type),
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		movement.CreatedBy = &userID
	}

	result, err := h.movementService.RecordMovement(r.Context(), movement)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CreateTransactionResponse{
		Message:         h.message(r, i18n.MsgMovementRecorded),
		NewCurrentStock: result.NewCurrentStock,
		Transaction:     result.Movement,
		LowStockWarning: result.LowStockWarning,
	})
}

// List returns every movement with its product name, newest first
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	movements, err := h.movementService.ListAll(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, movements)
}

// ListForProduct returns one product's history, newest first, bounded by ?limit=
func (h *TransactionHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, domain.ErrProductNotFound)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	movements, err := h.movementService.ListForProduct(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, movements)
}

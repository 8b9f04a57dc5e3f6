package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"zapstock/internal/domain"
	"zapstock/internal/i18n"
	"zapstock/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// responder turns service errors into localized HTTP replies. Handlers embed it.
type responder struct {
	catalog *i18n.Catalog
	logger  *zap.Logger
}

func (h responder) message(r *http.Request, key i18n.Key) string {
	return h.catalog.Message(r.Header.Get("Accept-Language"), key)
}

// respondError maps an error returned by a service to its status code and body. Messages come
// from the catalog's default language, Thai unless configured otherwise, and switch to English
// only for requests whose Accept-Language asks for it.
func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		detail := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		middleware.RespondWithError(w, http.StatusBadRequest, detail)
	case errors.Is(err, domain.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusBadRequest, h.message(r, i18n.MsgInsufficientStock))
	case errors.Is(err, domain.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, h.message(r, i18n.MsgProductNotFound))
	case errors.Is(err, domain.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, h.message(r, i18n.MsgCategoryNotFound))
	case errors.Is(err, domain.ErrSupplierNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, h.message(r, i18n.MsgSupplierNotFound))
	case errors.Is(err, domain.ErrUserNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, h.message(r, i18n.MsgAlreadyExists))
	case errors.Is(err, domain.ErrLockTimeout):
		middleware.RespondWithError(w, http.StatusConflict, h.message(r, i18n.MsgLockTimeout))
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError,
			h.message(r, i18n.MsgInternalError), err.Error())
	}
}

// decode reads and validates a JSON body of at most middleware.DefaultMaxBodyBytes. It writes
// the error reply itself and returns false when the body is unusable.
func (h responder) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return h.decodeWithin(w, r, v, middleware.DefaultMaxBodyBytes)
}

// decodeWithin is decode with an explicit body limit. Oversized bodies get 413.
func (h responder) decodeWithin(w http.ResponseWriter, r *http.Request, v interface{}, limit int64) bool {
	if err := middleware.DecodeAndValidateLimit(w, r, v, limit); err != nil {
		h.logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, h.message(r, i18n.MsgBodyTooLarge))
			return false
		}

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, h.message(r, i18n.MsgValidationFailed), validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, h.message(r, i18n.MsgInvalidRequest))
		return false
	}
	return true
}

// pathID parses the {id} URL parameter. Malformed ids are answered with notFound, since no
// such resource can exist.
func (h responder) pathID(w http.ResponseWriter, r *http.Request, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, notFound)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("%s must be an integer", name)
	}
	return n, nil
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.Invalid("%s must be a UUID", name)
	}
	return &id, nil
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"zapstock/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator turns a bearer token into the caller it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

// AuthMiddleware validates bearer tokens and stores the caller in the request context.
// Authenticate errors matching expired are reported as an expired token.
func AuthMiddleware(auth Authenticator, expired error, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			principal, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if expired != nil && errors.Is(err, expired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", principal.UserID.String()),
				zap.String("role", principal.Role),
			)

			noteCaller(r.Context(), principal.UserID.String())
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal returns a context carrying the authenticated caller
func WithPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// GetPrincipal extracts the authenticated caller from request context
func GetPrincipal(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return principal.UserID, true
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return "", false
	}
	return principal.Role, true
}

// Package middleware holds the HTTP request pipeline layers: user token
// validation for the public surface and shared-token validation for the
// internal publish surface.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/services"
	"github.com/xavlink/realtime/ws"
)

type contextKey string

// UserContextKey carries the authenticated *ws.TokenClaims in the request
// context.
const UserContextKey contextKey = "user"

// AuthMiddleware validates user JWTs on the public HTTP surface.
type AuthMiddleware struct {
	authService services.AuthService
}

// NewAuthMiddleware builds the middleware.
func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Require rejects requests without a valid Bearer token and injects the
// claims into the request context for downstream handlers.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext extracts the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *ws.TokenClaims {
	claims, _ := ctx.Value(UserContextKey).(*ws.TokenClaims)
	return claims
}

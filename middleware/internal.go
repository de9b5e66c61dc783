package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/xavlink/realtime/pkg"
)

// InternalMiddleware guards /internal endpoints. Only the REST backend holds
// the shared token; the comparison is constant time so the token cannot be
// probed byte by byte.
type InternalMiddleware struct {
	token string
}

// NewInternalMiddleware builds the middleware with the shared token.
func NewInternalMiddleware(token string) *InternalMiddleware {
	return &InternalMiddleware{token: token}
}

// Require rejects requests whose Bearer token does not match.
func (m *InternalMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "internal token required")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid internal token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

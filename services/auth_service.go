// Package services holds the gateway's business logic: token validation,
// event publishing, presence, and unread reconciliation. Services depend on
// repository interfaces and the ws.Publisher interface, never on concrete
// transport or storage types.
package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/ws"
)

// AuthService validates the access tokens the REST backend mints. The
// gateway never issues tokens; it only shares the HMAC secret.
type AuthService interface {
	ValidateAccessToken(tokenString string) (*ws.TokenClaims, error)
}

type authService struct {
	secret []byte
}

// NewAuthService creates the validator with the shared signing secret.
func NewAuthService(secret string) AuthService {
	return &authService{secret: []byte(secret)}
}

// accessClaims mirrors the REST backend's token layout.
type accessClaims struct {
	UserName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies a token, returning its claims.
// Only HMAC signing is accepted; an RS256 token with a forged header must
// not pass validation against the shared secret.
func (s *authService) ValidateAccessToken(tokenString string) (*ws.TokenClaims, error) {
	var claims accessClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token invalid", pkg.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", pkg.ErrUnauthorized)
	}

	return &ws.TokenClaims{
		UserID:   claims.Subject,
		UserName: claims.UserName,
	}, nil
}

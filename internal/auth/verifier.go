package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ridedispatch/internal/domain"
)

// ErrUnauthorized is returned when a credential cannot be resolved to an identity.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves a bearer credential to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// roleFromClaims reads the role claim. The system role is never granted
// through a credential.
func roleFromClaims(claims map[string]any) domain.Role {
	if v, ok := claims["role"].(string); ok {
		return domain.ParseRole(v)
	}
	return domain.RoleTraveller
}

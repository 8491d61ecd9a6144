package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/careledger/careledger/pkg/tenant"
)

// TokenResolver resolves a bearer token to its user.
type TokenResolver interface {
	UserByToken(ctx context.Context, token string) (*tenant.User, error)
}

// TokenIdentity authenticates requests by Authorization bearer token.
type TokenIdentity struct {
	resolver TokenResolver
}

// NewTokenIdentity creates a bearer-token identity backed by resolver.
func NewTokenIdentity(resolver TokenResolver) *TokenIdentity {
	return &TokenIdentity{resolver: resolver}
}

// Authenticate implements Identity.
func (t *TokenIdentity) Authenticate(r *http.Request) (*tenant.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, nil
	}

	user, err := t.resolver.UserByToken(r.Context(), token)
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return user, err
	}
	return user, nil
}

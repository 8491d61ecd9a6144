package middleware

import (
	"context"
	"net/http"

	"github.com/careledger/careledger/pkg/contextkeys"
	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

// Identity authenticates HTTP requests. Session cookies, API tokens, and
// test doubles all sit behind this interface; the gate only needs the
// resulting user.
type Identity interface {
	// Authenticate returns the user for the request, or nil when the
	// request carries no valid credentials. An error means the identity
	// backend itself failed.
	Authenticate(r *http.Request) (*tenant.User, error)
}

// Authenticate resolves the acting user and stores it in the request
// context. Requests without credentials pass through anonymously; the gate
// rejects them on protected routes.
func Authenticate(identity Identity, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := identity.Authenticate(r)
			if err != nil {
				logger.WithError(err).Warn("identity backend failed; treating request as anonymous")
			}
			if user != nil {
				ctx := contextkeys.WithActingUser(r.Context(), user)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActingUser returns the authenticated user placed in the context by
// Authenticate, or nil for anonymous requests.
func ActingUser(ctx context.Context) *tenant.User {
	if user, ok := ctx.Value(contextkeys.ActingUserKey).(*tenant.User); ok {
		return user
	}
	return nil
}

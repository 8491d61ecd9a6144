package middleware

import (
	"net/http"

	"github.com/careledger/careledger/pkg/audit"
)

// AuditContext makes the audit logger reachable from every request context.
func AuditContext(logger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

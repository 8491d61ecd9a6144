package observability

import (
	"net/http"
	"runtime/debug"
)

// RecoverMiddleware converts panics escaping a request into a 500 after
// logging the stack. Panics raised for tenant context stack corruption reach
// here too: they are logged at Error with the isolation marker so operators
// treat them as defects, and the request still dies with a 500 rather than
// continuing in an unknown tenant state.
func RecoverMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).
						WithField("stack", string(debug.Stack())).
						WithField("path", r.URL.Path).
						Error("PANIC recovered")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverPanic recovers from a panic in a background task and logs it.
// Use in defer statements for work spawned off the request path.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

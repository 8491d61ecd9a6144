package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/careledger/careledger/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on responses and is honored on
// inbound requests from trusted proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a UUID, reusing an inbound header value
// when present, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

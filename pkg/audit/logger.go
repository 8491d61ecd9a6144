package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/careledger/careledger/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context. Returns a no-op
// logger when none is set so callers never need a nil check.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// NewEvent creates an event with the timestamp and request id populated.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// NewRequestEvent creates an event annotated with the HTTP request context.
func NewRequestEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := NewEvent(ctx, eventType, status)
	if r != nil {
		event.Method = r.Method
		event.Path = r.URL.Path
		event.IPAddress = clientIP(r)
	}
	return event
}

// LogDenied records an access denial for resource/action with a reason.
func LogDenied(ctx context.Context, r *http.Request, resource, action, reason string) error {
	event := NewRequestEvent(ctx, r, EventTypeAuthzAccessDenied, EventStatusDenied)
	event.Resource = resource
	event.Action = action
	event.Message = reason
	return FromContext(ctx).Log(ctx, event)
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

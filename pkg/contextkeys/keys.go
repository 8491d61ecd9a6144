// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantStackKey contains *tenant.Stack, the per-request tenant context stack
	// Set by: middleware.Gate (pkg/middleware/gate.go) via tenant.NewRequestContext
	// Required by: tenant.Current, rbac.Decider, all policy adapters
	// Type: *tenant.Stack
	TenantStackKey Key = "tenant_stack"

	// ActingUserKey contains *tenant.User, the authenticated user before a
	// tenant scope has been established
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: middleware.Gate for organization resolution
	// Type: *tenant.User
	ActingUserKey Key = "acting_user"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: middleware.Gate
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"
)

// WithTenantStack adds the tenant context stack to the context
func WithTenantStack(ctx context.Context, stack interface{}) context.Context {
	return context.WithValue(ctx, TenantStackKey, stack)
}

// WithActingUser adds the authenticated user to the context
func WithActingUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, ActingUserKey, user)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

package audit

import (
	"context"

	"github.com/careledger/careledger/pkg/observability"
)

// SlogLogger emits audit events through the structured application logger.
// Used in development and as a fallback when the database sink is down.
type SlogLogger struct {
	logger *observability.Logger
}

// NewSlogLogger creates a logger that writes events to log output.
func NewSlogLogger(logger *observability.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.WithField("component", "audit")}
}

// Log implements Logger.
func (l *SlogLogger) Log(ctx context.Context, event *Event) error {
	entry := l.logger.WithFields(map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	})
	if event.UserID != nil {
		entry = entry.WithField("user_id", *event.UserID)
	}
	if event.OrganizationID != nil {
		entry = entry.WithField("organization_id", *event.OrganizationID)
	}
	if event.Resource != "" {
		entry = entry.WithField("resource", event.Resource)
	}
	if event.Action != "" {
		entry = entry.WithField("action", event.Action)
	}
	if event.RequestID != "" {
		entry = entry.WithField("request_id", event.RequestID)
	}
	if event.Path != "" {
		entry = entry.WithField("path", event.Path)
	}

	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// Close implements Logger.
func (l *SlogLogger) Close() error { return nil }

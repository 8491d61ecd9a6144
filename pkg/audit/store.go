package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Store is a database-backed audit logger with query support. Events are
// written synchronously; callers that cannot tolerate the write latency
// should log through a buffered wrapper.
type Store struct {
	db *sql.DB
}

// NewStore creates a database-backed audit store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit_events table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			user_id BIGINT,
			user_email VARCHAR(255),
			organization_id BIGINT,
			resource VARCHAR(64),
			resource_id VARCHAR(255),
			action VARCHAR(32),
			request_id VARCHAR(64),
			method VARCHAR(16),
			path VARCHAR(2048),
			ip_address VARCHAR(64),
			message TEXT,
			metadata JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_org ON audit_events(organization_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate audit_events: %w", err)
	}
	return nil
}

// Log implements Logger.
func (s *Store) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status, user_id, user_email, organization_id,
			resource, resource_id, action, request_id, method, path, ip_address,
			message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.UserID, nullString(event.UserEmail), event.OrganizationID,
		nullString(event.Resource), nullString(event.ResourceID), nullString(event.Action),
		nullString(event.RequestID), nullString(event.Method), nullString(event.Path),
		nullString(event.IPAddress), nullString(event.Message), metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close implements Logger. The store does not own the database handle.
func (s *Store) Close() error { return nil }

// Search returns stored events matching filter, newest first.
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	q := sq.Select(
		"id", "timestamp", "event_type", "status", "user_id", "user_email",
		"organization_id", "resource", "resource_id", "action", "request_id",
		"method", "path", "ip_address", "message", "metadata",
	).
		From("audit_events").
		OrderBy("timestamp DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.StartTime != nil {
		q = q.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		q = q.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}
	if filter.UserID != nil {
		q = q.Where(sq.Eq{"user_id": *filter.UserID})
	}
	if filter.OrganizationID != nil {
		q = q.Where(sq.Eq{"organization_id": *filter.OrganizationID})
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, 0, len(filter.EventTypes))
		for _, t := range filter.EventTypes {
			types = append(types, string(t))
		}
		q = q.Where(sq.Eq{"event_type": types})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Resource != "" {
		q = q.Where(sq.Eq{"resource": filter.Resource})
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q = q.Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns the count.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit events: %w", err)
	}
	return result.RowsAffected()
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		event                                   Event
		userEmail, resource, resourceID, action sql.NullString
		requestID, method, path, ip, message    sql.NullString
		metadata                                []byte
	)
	err := rows.Scan(
		&event.ID, &event.Timestamp, &event.EventType, &event.Status,
		&event.UserID, &userEmail, &event.OrganizationID,
		&resource, &resourceID, &action, &requestID,
		&method, &path, &ip, &message, &metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}
	event.UserEmail = userEmail.String
	event.Resource = resource.String
	event.ResourceID = resourceID.String
	event.Action = action.String
	event.RequestID = requestID.String
	event.Method = method.String
	event.Path = path.String
	event.IPAddress = ip.String
	event.Message = message.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}
	}
	return &event, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAuthzPermissionCheck EventType = "authz.permission_check"
	EventTypeAuthzAccessDenied    EventType = "authz.access_denied"
	EventTypeAuthzRuleCreate      EventType = "authz.rule_create"
	EventTypeAuthzRuleDelete      EventType = "authz.rule_delete"

	// Tenant context events
	EventTypeTenantResolved   EventType = "tenant.resolved"
	EventTypeTenantUnresolved EventType = "tenant.unresolved"
	EventTypeTenantStackFault EventType = "tenant.stack_fault"

	// Admin events
	EventTypeAdminOrgCreate         EventType = "admin.org_create"
	EventTypeAdminOrgUpdate         EventType = "admin.org_update"
	EventTypeAdminMemberAdd         EventType = "admin.member_add"
	EventTypeAdminMemberRemove      EventType = "admin.member_remove"
	EventTypeAdminMemberRoleChange  EventType = "admin.member_role_change"
	EventTypeAdminInvitationCreate  EventType = "admin.invitation_create"
	EventTypeAdminInvitationAccept  EventType = "admin.invitation_accept"
	EventTypeAdminInvitationExpired EventType = "admin.invitation_expired"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID         *int64 `json:"user_id,omitempty"`
	UserEmail      string `json:"user_email,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`

	// Resource information
	Resource   string `json:"resource,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Action     string `json:"action,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for querying stored audit events
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID         *int64
	OrganizationID *int64

	EventTypes []EventType
	Status     *EventStatus
	Resource   string

	Limit  int
	Offset int
}

package tenant

import (
	"context"
	"errors"
	"time"
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanTrial      PlanTier = "trial"
	PlanStandard   PlanTier = "standard"
	PlanEnterprise PlanTier = "enterprise"
)

// OrgStatus represents organization status
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusDeleted   OrgStatus = "deleted"
)

// User is the authenticated identity acting on a request.
// SuperAdmin bypasses permission checks only; it never changes how the
// active organization is resolved.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	SuperAdmin bool      `json:"super_admin"`
	CreatedAt  time.Time `json:"created_at"`
}

// Organization is a tenant. The subdomain is unique and used for
// host-based resolution.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	PlanTier  PlanTier  `json:"plan_tier"`
	Status    OrgStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership binds a user to an organization with a role. Only active
// memberships are eligible for resolution and permission lookup.
type Membership struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	Role           string    `json:"role"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Directory is the organization/membership store collaborator. Memberships
// are returned earliest-created first so fallback resolution is deterministic.
type Directory interface {
	// OrganizationBySubdomain looks up an organization by its unique
	// subdomain. Returns ErrNotFound when no organization matches.
	OrganizationBySubdomain(ctx context.Context, subdomain string) (*Organization, error)

	// MembershipsByUser returns the user's memberships ordered by creation
	// time, oldest first.
	MembershipsByUser(ctx context.Context, userID int64) ([]Membership, error)

	// OrganizationByID looks up an organization by primary key.
	OrganizationByID(ctx context.Context, id int64) (*Organization, error)

	// ActiveMembership returns the active membership binding the user to the
	// organization, or ErrNotFound when none exists.
	ActiveMembership(ctx context.Context, userID, organizationID int64) (*Membership, error)
}

var (
	// ErrNotFound indicates a directory lookup matched nothing.
	ErrNotFound = errors.New("tenant: not found")

	// ErrNoOrganization indicates no organization could be resolved for a
	// tenant-scoped unit of work. Handled at the request boundary, never a
	// silent empty scope.
	ErrNoOrganization = errors.New("tenant: no organization resolvable")

	// ErrContextCorrupt indicates a pop without its matching push. This is a
	// programming defect pointing at a tenant-isolation bug and must never be
	// swallowed.
	ErrContextCorrupt = errors.New("tenant: context stack corrupt")
)

package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
)

// OrganizationPolicy gates the tenant's own organization record. Destroying
// an organization is an offline support operation and statically denied.
type OrganizationPolicy struct {
	pdp *rbac.Decider
}

// NewOrganizationPolicy creates the organizations adapter.
func NewOrganizationPolicy(pdp *rbac.Decider) *OrganizationPolicy {
	return &OrganizationPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *OrganizationPolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionShow, ActionUpdate:
		return p.pdp.Accessible(ctx, rbac.ModuleAdmin, rbac.ResourceOrganizations, rbac.Action(action))
	case ActionIndex, ActionCreate, ActionDestroy:
		return false
	default:
		return false
	}
}

// Scope implements Policy.
func (p *OrganizationPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "organizations.id")
}

// MembershipPolicy gates organization membership management.
type MembershipPolicy struct {
	pdp *rbac.Decider
}

// NewMembershipPolicy creates the memberships adapter.
func NewMembershipPolicy(pdp *rbac.Decider) *MembershipPolicy {
	return &MembershipPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *MembershipPolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy, ActionInvite:
		return p.pdp.Accessible(ctx, rbac.ModuleAdmin, rbac.ResourceMemberships, rbac.Action(action))
	default:
		return false
	}
}

// Scope implements Policy.
func (p *MembershipPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "memberships.organization_id")
}

// RolePolicy gates custom role management.
type RolePolicy struct {
	pdp *rbac.Decider
}

// NewRolePolicy creates the roles adapter.
func NewRolePolicy(pdp *rbac.Decider) *RolePolicy {
	return &RolePolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *RolePolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy:
		return p.pdp.Accessible(ctx, rbac.ModuleAdmin, rbac.ResourceRoles, rbac.Action(action))
	default:
		return false
	}
}

// Scope implements Policy.
func (p *RolePolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "roles.organization_id")
}

package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// RuntimeMode selects the subdomain handling rules for resolution.
type RuntimeMode string

const (
	ModeProduction  RuntimeMode = "production"
	ModeDevelopment RuntimeMode = "development"
)

// DefaultReservedSubdomains are host labels that never resolve to a tenant
// in production.
var DefaultReservedSubdomains = []string{"www", "admin"}

// Resolver computes the active organization for a request. Precedence:
// subdomain of the request host first, then the acting user's
// earliest-created active membership. Super-admin status plays no part here.
type Resolver struct {
	dir      Directory
	mode     RuntimeMode
	reserved map[string]struct{}
}

// NewResolver creates a resolver. A nil reserved list falls back to
// DefaultReservedSubdomains.
func NewResolver(dir Directory, mode RuntimeMode, reserved []string) *Resolver {
	if reserved == nil {
		reserved = DefaultReservedSubdomains
	}
	set := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		set[strings.ToLower(name)] = struct{}{}
	}
	return &Resolver{dir: dir, mode: mode, reserved: set}
}

// Resolve returns the active organization for user and host, or
// ErrNoOrganization when none is determinable. Resolution failure is a
// terminal condition for tenant-scoped work, never a silently empty scope.
func (r *Resolver) Resolve(ctx context.Context, user *User, host string) (*Organization, error) {
	if org, err := r.resolveBySubdomain(ctx, host); err != nil {
		return nil, err
	} else if org != nil {
		return org, nil
	}
	return r.resolveByMembership(ctx, user)
}

// resolveBySubdomain looks up the first host label. In production, empty and
// reserved labels are skipped so www.example.com falls through to membership
// resolution; development hosts are looked up as-is.
func (r *Resolver) resolveBySubdomain(ctx context.Context, host string) (*Organization, error) {
	label := firstHostLabel(host)
	if label == "" {
		return nil, nil
	}
	if r.mode == ModeProduction {
		if _, ok := r.reserved[label]; ok {
			return nil, nil
		}
	}

	org, err := r.dir.OrganizationBySubdomain(ctx, label)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subdomain %q: %w", label, err)
	}
	return org, nil
}

// resolveByMembership falls back to the organization of the user's
// earliest-created active membership.
func (r *Resolver) resolveByMembership(ctx context.Context, user *User) (*Organization, error) {
	if user == nil {
		return nil, ErrNoOrganization
	}

	memberships, err := r.dir.MembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships for user %d: %w", user.ID, err)
	}
	for _, m := range memberships {
		if !m.Active {
			continue
		}
		org, err := r.dir.OrganizationByID(ctx, m.OrganizationID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load organization %d: %w", m.OrganizationID, err)
		}
		return org, nil
	}
	return nil, ErrNoOrganization
}

// firstHostLabel returns the lowercased host portion before the first dot,
// with any port stripped.
func firstHostLabel(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	label, _, _ := strings.Cut(host, ".")
	return strings.ToLower(label)
}

package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/careledger/careledger/pkg/observability"
)

// ScopeManager wraps units of work in a tenant context push/pop. It is the
// only component that pushes frames; everything downstream reads the active
// snapshot through Current.
type ScopeManager struct {
	resolver *Resolver
	dir      Directory
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewScopeManager creates a scope manager. metrics may be nil.
func NewScopeManager(resolver *Resolver, dir Directory, logger *observability.Logger, metrics *observability.Metrics) *ScopeManager {
	return &ScopeManager{
		resolver: resolver,
		dir:      dir,
		logger:   logger,
		metrics:  metrics,
	}
}

// RunInScope establishes the tenant context for body and guarantees teardown
// on every exit path: normal return, error return, or panic.
//
// For tenant-scoped work, resolution must succeed; on failure body is never
// invoked and ErrNoOrganization is returned for the request boundary to turn
// into an authentication redirect. Non-tenant-scoped work (auth endpoints,
// webhooks, invitation acceptance) skips resolution but still records the
// acting user when one is present.
func (m *ScopeManager) RunInScope(ctx context.Context, user *User, host string, tenantScoped bool, body func(context.Context) error) error {
	stack := StackFrom(ctx)
	if stack == nil {
		ctx = NewRequestContext(ctx)
		stack = StackFrom(ctx)
	}

	tc := Context{User: user}
	if tenantScoped {
		org, err := m.resolve(ctx, user, host)
		if err != nil {
			return err
		}
		tc.Organization = org
		// Membership is re-derived per scope so an organization switch can
		// never reuse a stale role.
		tc.Membership = m.activeMembership(ctx, user, org)
	}

	tok := stack.Push(tc)
	if m.metrics != nil {
		m.metrics.ScopePushesTotal.Inc()
	}
	defer func() {
		if err := stack.Pop(tok); err != nil {
			if m.metrics != nil {
				m.metrics.StackFaultsTotal.Inc()
			}
			m.logger.WithError(err).Error("tenant context stack corrupt; failing unit of work")
			panic(err)
		}
	}()

	return body(ctx)
}

func (m *ScopeManager) resolve(ctx context.Context, user *User, host string) (*Organization, error) {
	org, err := m.resolver.Resolve(ctx, user, host)
	if errors.Is(err, ErrNoOrganization) {
		if m.metrics != nil {
			m.metrics.ResolutionsTotal.WithLabelValues("failed").Inc()
		}
		m.logger.WithField("host", host).Info("no organization resolvable for tenant-scoped request")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("organization resolution: %w", err)
	}
	if m.metrics != nil {
		m.metrics.ResolutionsTotal.WithLabelValues("resolved").Inc()
	}
	return org, nil
}

// activeMembership looks up the active membership binding user to org.
// Absence is not an error here; the decision point treats a missing
// membership as deny.
func (m *ScopeManager) activeMembership(ctx context.Context, user *User, org *Organization) *Membership {
	if user == nil || org == nil {
		return nil
	}
	membership, err := m.dir.ActiveMembership(ctx, user.ID, org.ID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		m.logger.WithError(err).
			WithField("user_id", user.ID).
			WithField("organization_id", org.ID).
			Warn("membership lookup failed; treating as no membership")
		return nil
	}
	return membership
}

package rbac

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// scopedContext builds a request context with the given snapshot pushed.
func scopedContext(t *testing.T, tc tenant.Context) context.Context {
	t.Helper()
	ctx := tenant.NewRequestContext(context.Background())
	tenant.StackFrom(ctx).Push(tc)
	return ctx
}

// tenantContextForRole builds an active-membership snapshot for role.
func tenantContextForRole(role string) tenant.Context {
	return tenant.Context{
		User:         &tenant.User{ID: 1},
		Organization: &tenant.Organization{ID: 1},
		Membership:   &tenant.Membership{UserID: 1, OrganizationID: 1, Role: role, Active: true},
	}
}

// staticRules is a RuleSource backed by a fixed tuple set.
type staticRules struct {
	rules map[string]bool
	calls int
	err   error
}

func (s *staticRules) HasRule(ctx context.Context, role string, module Module, resource Resource, action Action) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.rules[ruleKey(role, module, resource, action)], nil
}

func TestAccessibleDefaultDeny(t *testing.T) {
	d := NewDecider(&staticRules{}, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleViewer, Active: true},
	})
	if d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionCreate) {
		t.Fatal("expected deny when no rule matches")
	}
}

func TestAccessibleAllowsMatchingRule(t *testing.T) {
	source := &staticRules{rules: map[string]bool{
		ruleKey(RoleBiller, ModuleClaims, ResourceClaims, ActionCreate): true,
	}}
	d := NewDecider(source, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleBiller, Active: true},
	})
	if !d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionCreate) {
		t.Fatal("expected allow for matching rule")
	}
	if d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionDestroy) {
		t.Fatal("expected deny for non-matching action")
	}
}

func TestAccessibleDeniesAnonymous(t *testing.T) {
	d := NewDecider(&staticRules{}, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{})
	if d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("expected deny without acting user")
	}

	// No scope at all behaves the same.
	if d.Accessible(context.Background(), ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("expected deny without tenant scope")
	}
}

func TestAccessibleSuperAdminBypass(t *testing.T) {
	source := &staticRules{}
	d := NewDecider(source, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User: &tenant.User{ID: 1, SuperAdmin: true},
	})
	if !d.Accessible(ctx, ModuleAdmin, ResourceOrganizations, ActionUpdate) {
		t.Fatal("expected super admin allow")
	}
	if source.calls != 0 {
		t.Fatalf("super admin must not consult the rule store, got %d calls", source.calls)
	}
}

func TestAccessibleDeniesInactiveMembership(t *testing.T) {
	source := &staticRules{rules: map[string]bool{
		ruleKey(RoleBiller, ModuleClaims, ResourceClaims, ActionIndex): true,
	}}
	d := NewDecider(source, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleBiller, Active: false},
	})
	if d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("expected deny for inactive membership")
	}
}

func TestAccessibleDeniesOnStoreError(t *testing.T) {
	source := &staticRules{err: errors.New("connection reset")}
	d := NewDecider(source, 0, 0, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleBiller, Active: true},
	})
	if d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("rule store failure must deny")
	}
}

func TestAccessibleCachesDecisions(t *testing.T) {
	source := &staticRules{rules: map[string]bool{
		ruleKey(RoleBiller, ModuleClaims, ResourceClaims, ActionIndex): true,
	}}
	d := NewDecider(source, 16, time.Minute, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleBiller, Active: true},
	})
	for i := 0; i < 3; i++ {
		if !d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
			t.Fatal("expected allow")
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected 1 store lookup with warm cache, got %d", source.calls)
	}

	d.Invalidate()
	if !d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("expected allow after invalidation")
	}
	if source.calls != 2 {
		t.Fatalf("expected fresh lookup after invalidation, got %d calls", source.calls)
	}
}

func TestAccessibleDoesNotCacheStoreErrors(t *testing.T) {
	source := &staticRules{err: errors.New("timeout")}
	d := NewDecider(source, 16, time.Minute, testLogger(), nil)

	ctx := scopedContext(t, tenant.Context{
		User:       &tenant.User{ID: 1},
		Membership: &tenant.Membership{Role: RoleBiller, Active: true},
	})
	d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex)

	source.err = nil
	source.rules = map[string]bool{
		ruleKey(RoleBiller, ModuleClaims, ResourceClaims, ActionIndex): true,
	}
	if !d.Accessible(ctx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("recovered store must allow; the failed lookup must not be memoized")
	}
}

package tenant

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/careledger/careledger/pkg/observability"
)

func testScopeManager(dir Directory) *ScopeManager {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	resolver := NewResolver(dir, ModeProduction, nil)
	return NewScopeManager(resolver, dir, logger, nil)
}

func TestRunInScopeEstablishesContext(t *testing.T) {
	dir := newFakeDirectory()
	org := &Organization{ID: 1, Subdomain: "acme"}
	dir.addOrg(org)
	user := &User{ID: 7}
	dir.memberships[7] = []Membership{
		{ID: 3, UserID: 7, OrganizationID: 1, Role: "biller", Active: true},
	}

	m := testScopeManager(dir)
	ctx := NewRequestContext(context.Background())

	err := m.RunInScope(ctx, user, "acme.careledger.example.com", true, func(ctx context.Context) error {
		tc := Current(ctx)
		if tc.User == nil || tc.User.ID != 7 {
			t.Errorf("expected acting user 7 in scope, got %+v", tc.User)
		}
		if tc.Organization == nil || tc.Organization.ID != 1 {
			t.Errorf("expected organization 1 in scope, got %+v", tc.Organization)
		}
		if tc.Membership == nil || tc.Membership.Role != "biller" {
			t.Errorf("expected biller membership in scope, got %+v", tc.Membership)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInScope failed: %v", err)
	}

	if depth := StackFrom(ctx).Depth(); depth != 0 {
		t.Fatalf("expected empty stack after scope, depth %d", depth)
	}
}

func TestRunInScopePopsOnError(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "acme"})

	m := testScopeManager(dir)
	ctx := NewRequestContext(context.Background())

	wantErr := errors.New("handler failed")
	err := m.RunInScope(ctx, &User{ID: 1}, "acme.careledger.example.com", true, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected body error to surface, got %v", err)
	}
	if depth := StackFrom(ctx).Depth(); depth != 0 {
		t.Fatalf("expected pop on error path, depth %d", depth)
	}
}

func TestRunInScopePopsOnPanic(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "acme"})

	m := testScopeManager(dir)
	ctx := NewRequestContext(context.Background())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		m.RunInScope(ctx, &User{ID: 1}, "acme.careledger.example.com", true, func(ctx context.Context) error {
			panic("boom")
		})
	}()

	if depth := StackFrom(ctx).Depth(); depth != 0 {
		t.Fatalf("expected pop on panic path, depth %d", depth)
	}
}

func TestRunInScopeFailsClosedWithoutOrganization(t *testing.T) {
	dir := newFakeDirectory()
	m := testScopeManager(dir)

	bodyRan := false
	err := m.RunInScope(context.Background(), &User{ID: 1}, "careledger.example.com", true, func(ctx context.Context) error {
		bodyRan = true
		return nil
	})
	if !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization, got %v", err)
	}
	if bodyRan {
		t.Fatal("body must not run when tenant resolution fails")
	}
}

func TestRunInScopeNonTenantScoped(t *testing.T) {
	dir := newFakeDirectory()
	m := testScopeManager(dir)
	user := &User{ID: 4}

	// No organizations exist at all; unscoped work must still run with the
	// acting user recorded and no organization in the snapshot.
	err := m.RunInScope(context.Background(), user, "careledger.example.com", false, func(ctx context.Context) error {
		tc := Current(ctx)
		if tc.User == nil || tc.User.ID != 4 {
			t.Errorf("expected acting user in unscoped snapshot, got %+v", tc.User)
		}
		if tc.Organization != nil {
			t.Errorf("expected no organization in unscoped snapshot, got %+v", tc.Organization)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInScope failed: %v", err)
	}
}

func TestRunInScopeNested(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "acme"})
	dir.addOrg(&Organization{ID: 2, Subdomain: "beta"})

	m := testScopeManager(dir)
	ctx := NewRequestContext(context.Background())
	user := &User{ID: 1}

	err := m.RunInScope(ctx, user, "acme.careledger.example.com", true, func(ctx context.Context) error {
		return m.RunInScope(ctx, user, "beta.careledger.example.com", true, func(ctx context.Context) error {
			if tc := Current(ctx); tc.Organization == nil || tc.Organization.ID != 2 {
				t.Errorf("inner scope must see inner organization, got %+v", tc.Organization)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested RunInScope failed: %v", err)
	}
	if depth := StackFrom(ctx).Depth(); depth != 0 {
		t.Fatalf("expected empty stack after nested scopes, depth %d", depth)
	}
}

func TestRunInScopeMissingMembership(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "acme"})

	m := testScopeManager(dir)
	err := m.RunInScope(context.Background(), &User{ID: 1}, "acme.careledger.example.com", true, func(ctx context.Context) error {
		if tc := Current(ctx); tc.Membership != nil {
			t.Errorf("expected nil membership, got %+v", tc.Membership)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInScope failed: %v", err)
	}
}

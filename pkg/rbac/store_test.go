package rbac

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupRuleDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE permission_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			module TEXT NOT NULL,
			resource TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (role, module, resource, action)
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	return db
}

func TestStoreCreateAndHasRule(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	rule := &Rule{Role: RoleBiller, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionCreate}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if rule.ID == 0 {
		t.Fatal("expected generated rule ID")
	}
	if rule.CreatedAt.IsZero() {
		t.Fatal("expected populated created_at")
	}

	exists, err := store.HasRule(ctx, RoleBiller, ModuleClaims, ResourceClaims, ActionCreate)
	if err != nil {
		t.Fatalf("HasRule failed: %v", err)
	}
	if !exists {
		t.Fatal("expected rule to exist")
	}

	exists, err = store.HasRule(ctx, RoleViewer, ModuleClaims, ResourceClaims, ActionCreate)
	if err != nil {
		t.Fatalf("HasRule failed: %v", err)
	}
	if exists {
		t.Fatal("expected no rule for viewer")
	}
}

func TestStoreDuplicateRuleRejected(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	rule := &Rule{Role: RoleBiller, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionCreate}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	dup := &Rule{Role: RoleBiller, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionCreate}
	if err := store.CreateRule(ctx, dup); err == nil {
		t.Fatal("expected unique constraint violation for duplicate tuple")
	}
}

func TestStoreDeleteRule(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	rule := &Rule{Role: RoleBiller, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionCreate}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if err := store.DeleteRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}

	exists, err := store.HasRule(ctx, RoleBiller, ModuleClaims, ResourceClaims, ActionCreate)
	if err != nil {
		t.Fatalf("HasRule failed: %v", err)
	}
	if exists {
		t.Fatal("expected rule to be deleted")
	}
}

func TestStoreDeleteRulesForRole(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	for _, action := range []Action{ActionIndex, ActionShow, ActionCreate} {
		rule := &Rule{Role: RoleBiller, Module: ModuleClaims, Resource: ResourceClaims, Action: action}
		if err := store.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}
	}
	keep := &Rule{Role: RoleViewer, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionIndex}
	if err := store.CreateRule(ctx, keep); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	if err := store.DeleteRulesForRole(ctx, RoleBiller); err != nil {
		t.Fatalf("DeleteRulesForRole failed: %v", err)
	}

	rules, err := store.RulesForRole(ctx, RoleBiller)
	if err != nil {
		t.Fatalf("RulesForRole failed: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no biller rules, got %d", len(rules))
	}

	rules, err = store.RulesForRole(ctx, RoleViewer)
	if err != nil {
		t.Fatalf("RulesForRole failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected viewer rules untouched, got %d", len(rules))
	}
}

func TestStoreListRoles(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	for _, role := range []string{RoleViewer, RoleBiller} {
		rule := &Rule{Role: role, Module: ModuleClaims, Resource: ResourceClaims, Action: ActionIndex}
		if err := store.CreateRule(ctx, rule); err != nil {
			t.Fatalf("CreateRule failed: %v", err)
		}
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 2 || roles[0] != RoleBiller || roles[1] != RoleViewer {
		t.Fatalf("expected sorted distinct roles [biller viewer], got %v", roles)
	}
}

func TestSeedDefaultRulesIdempotent(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	if err := store.SeedDefaultRules(ctx); err != nil {
		t.Fatalf("SeedDefaultRules failed: %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM permission_rules`).Scan(&count); err != nil {
		t.Fatalf("Failed to count rules: %v", err)
	}
	if count != len(DefaultRules()) {
		t.Fatalf("expected %d seeded rules, got %d", len(DefaultRules()), count)
	}

	// Re-seeding must not duplicate or fail.
	if err := store.SeedDefaultRules(ctx); err != nil {
		t.Fatalf("second SeedDefaultRules failed: %v", err)
	}
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM permission_rules`).Scan(&count); err != nil {
		t.Fatalf("Failed to count rules: %v", err)
	}
	if count != len(DefaultRules()) {
		t.Fatalf("expected seed to be idempotent, got %d rules", count)
	}
}

func TestDeciderAgainstStore(t *testing.T) {
	store := NewStore(setupRuleDB(t))
	ctx := context.Background()

	if err := store.SeedDefaultRules(ctx); err != nil {
		t.Fatalf("SeedDefaultRules failed: %v", err)
	}

	d := NewDecider(store, 0, 0, testLogger(), nil)

	viewerCtx := scopedContext(t, tenantContextForRole(RoleViewer))
	if !d.Accessible(viewerCtx, ModuleClaims, ResourceClaims, ActionIndex) {
		t.Fatal("viewer must read claims under default rules")
	}
	if d.Accessible(viewerCtx, ModuleClaims, ResourceClaims, ActionCreate) {
		t.Fatal("viewer must not create claims under default rules")
	}

	billerCtx := scopedContext(t, tenantContextForRole(RoleBiller))
	if !d.Accessible(billerCtx, ModuleBilling, ResourcePayments, ActionCreate) {
		t.Fatal("biller must record payments under default rules")
	}
}

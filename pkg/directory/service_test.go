package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/careledger/careledger/pkg/tenant"
)

func setupDirectoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			super_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			subdomain TEXT NOT NULL UNIQUE,
			plan_tier TEXT NOT NULL DEFAULT 'trial',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE memberships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			organization_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, organization_id)
		)`,
		`CREATE TABLE invitations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			invited_by INTEGER NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			accepted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (organization_id, email)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create test schema: %v", err)
		}
	}
	return db
}

func TestCreateAndLookupUser(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	user := &tenant.User{Email: "Billing@Acme.Example.com", FullName: "Pat Billing"}
	if err := svc.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected generated user ID")
	}

	// Email is stored and matched lowercased.
	got, err := svc.UserByEmail(ctx, "BILLING@acme.example.com")
	if err != nil {
		t.Fatalf("UserByEmail failed: %v", err)
	}
	if got.ID != user.ID || got.Email != "billing@acme.example.com" {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, err := svc.UserByEmail(ctx, "missing@example.com"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	byID, err := svc.UserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if byID.FullName != "Pat Billing" {
		t.Fatalf("unexpected user %+v", byID)
	}
}

func TestCreateOrganizationDefaults(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	org := &tenant.Organization{Name: "Acme Health", Subdomain: "ACME"}
	if err := svc.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	if org.PlanTier != tenant.PlanTrial {
		t.Fatalf("expected trial plan default, got %s", org.PlanTier)
	}
	if org.Status != tenant.OrgStatusActive {
		t.Fatalf("expected active status default, got %s", org.Status)
	}
	if org.Subdomain != "acme" {
		t.Fatalf("expected lowercased subdomain, got %s", org.Subdomain)
	}

	got, err := svc.OrganizationBySubdomain(ctx, "Acme")
	if err != nil {
		t.Fatalf("OrganizationBySubdomain failed: %v", err)
	}
	if got.ID != org.ID {
		t.Fatalf("expected org %d, got %d", org.ID, got.ID)
	}

	if _, err := svc.OrganizationBySubdomain(ctx, "unknown"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	user := &tenant.User{Email: "doc@acme.example.com"}
	if err := svc.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	org := &tenant.Organization{Name: "Acme Health", Subdomain: "acme"}
	if err := svc.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	m := &tenant.Membership{UserID: user.ID, OrganizationID: org.ID, Role: "clinician", Active: true}
	if err := svc.CreateMembership(ctx, m); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}

	active, err := svc.ActiveMembership(ctx, user.ID, org.ID)
	if err != nil {
		t.Fatalf("ActiveMembership failed: %v", err)
	}
	if active.Role != "clinician" {
		t.Fatalf("unexpected membership %+v", active)
	}

	if err := svc.UpdateMembershipRole(ctx, m.ID, "org_admin"); err != nil {
		t.Fatalf("UpdateMembershipRole failed: %v", err)
	}
	active, err = svc.ActiveMembership(ctx, user.ID, org.ID)
	if err != nil {
		t.Fatalf("ActiveMembership failed: %v", err)
	}
	if active.Role != "org_admin" {
		t.Fatalf("expected updated role, got %s", active.Role)
	}

	if err := svc.DeactivateMembership(ctx, m.ID); err != nil {
		t.Fatalf("DeactivateMembership failed: %v", err)
	}
	if _, err := svc.ActiveMembership(ctx, user.ID, org.ID); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after deactivation, got %v", err)
	}

	// The row survives for history.
	memberships, err := svc.MembershipsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("MembershipsByUser failed: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Active {
		t.Fatalf("expected one inactive membership, got %+v", memberships)
	}

	if err := svc.UpdateMembershipRole(ctx, 9999, "viewer"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing membership, got %v", err)
	}
}

func TestMembershipsByUserOrdering(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	user := &tenant.User{Email: "multi@example.com"}
	if err := svc.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for i, sub := range []string{"first", "second", "third"} {
		org := &tenant.Organization{Name: sub, Subdomain: sub}
		if err := svc.CreateOrganization(ctx, org); err != nil {
			t.Fatalf("CreateOrganization failed: %v", err)
		}
		m := &tenant.Membership{UserID: user.ID, OrganizationID: org.ID, Role: "viewer", Active: i != 0}
		if err := svc.CreateMembership(ctx, m); err != nil {
			t.Fatalf("CreateMembership failed: %v", err)
		}
	}

	memberships, err := svc.MembershipsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("MembershipsByUser failed: %v", err)
	}
	if len(memberships) != 3 {
		t.Fatalf("expected 3 memberships, got %d", len(memberships))
	}
	for i := 1; i < len(memberships); i++ {
		if memberships[i].ID < memberships[i-1].ID {
			t.Fatalf("expected creation order, got %+v", memberships)
		}
	}
}

func TestInvitationIssueAndLookup(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	inv := &Invitation{OrganizationID: 1, Email: "New@Example.com", Role: "biller", InvitedBy: 1}
	if err := svc.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("expected generated token")
	}
	if inv.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %s", inv.Email)
	}
	if time.Until(inv.ExpiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", inv.ExpiresAt)
	}

	got, err := svc.InvitationByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("InvitationByToken failed: %v", err)
	}
	if got.ID != inv.ID || got.AcceptedAt != nil {
		t.Fatalf("unexpected invitation %+v", got)
	}

	if _, err := svc.InvitationByToken(ctx, "missing"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptInvitationExpired(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))
	ctx := context.Background()

	inv := &Invitation{
		OrganizationID: 1,
		Email:          "late@example.com",
		Role:           "viewer",
		InvitedBy:      1,
		ExpiresAt:      time.Now().UTC().Add(-time.Hour),
	}
	if err := svc.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}

	if _, err := svc.AcceptInvitation(ctx, inv.Token, 1); !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}
}

func TestAcceptInvitationAlreadyAccepted(t *testing.T) {
	db := setupDirectoryDB(t)
	svc := NewService(db)
	ctx := context.Background()

	inv := &Invitation{OrganizationID: 1, Email: "done@example.com", Role: "viewer", InvitedBy: 1}
	if err := svc.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}
	if _, err := db.Exec(
		"UPDATE invitations SET accepted_at = CURRENT_TIMESTAMP WHERE id = $1", inv.ID); err != nil {
		t.Fatalf("Failed to mark invitation accepted: %v", err)
	}

	if _, err := svc.AcceptInvitation(ctx, inv.Token, 1); !errors.Is(err, ErrInvitationAccepted) {
		t.Fatalf("expected ErrInvitationAccepted, got %v", err)
	}
}

func TestAcceptInvitationUnknownToken(t *testing.T) {
	svc := NewService(setupDirectoryDB(t))

	if _, err := svc.AcceptInvitation(context.Background(), "missing", 1); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package tenant

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDirectory is an in-memory Directory for resolver and scope tests.
type fakeDirectory struct {
	orgs        map[string]*Organization
	orgsByID    map[int64]*Organization
	memberships map[int64][]Membership
	err         error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		orgs:        make(map[string]*Organization),
		orgsByID:    make(map[int64]*Organization),
		memberships: make(map[int64][]Membership),
	}
}

func (d *fakeDirectory) addOrg(org *Organization) {
	d.orgs[org.Subdomain] = org
	d.orgsByID[org.ID] = org
}

func (d *fakeDirectory) OrganizationBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	if d.err != nil {
		return nil, d.err
	}
	org, ok := d.orgs[subdomain]
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

func (d *fakeDirectory) OrganizationByID(ctx context.Context, id int64) (*Organization, error) {
	if d.err != nil {
		return nil, d.err
	}
	org, ok := d.orgsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

func (d *fakeDirectory) MembershipsByUser(ctx context.Context, userID int64) ([]Membership, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.memberships[userID], nil
}

func (d *fakeDirectory) ActiveMembership(ctx context.Context, userID, organizationID int64) (*Membership, error) {
	if d.err != nil {
		return nil, d.err
	}
	for _, m := range d.memberships[userID] {
		if m.OrganizationID == organizationID && m.Active {
			found := m
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func TestResolveBySubdomain(t *testing.T) {
	dir := newFakeDirectory()
	acme := &Organization{ID: 1, Subdomain: "acme"}
	dir.addOrg(acme)

	r := NewResolver(dir, ModeProduction, nil)

	org, err := r.Resolve(context.Background(), nil, "acme.careledger.example.com")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if org.ID != acme.ID {
		t.Fatalf("expected org %d, got %d", acme.ID, org.ID)
	}
}

func TestResolveStripsPortAndCase(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "acme"})

	r := NewResolver(dir, ModeProduction, nil)

	org, err := r.Resolve(context.Background(), nil, "ACME.careledger.example.com:8443")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if org.ID != 1 {
		t.Fatalf("expected org 1, got %d", org.ID)
	}
}

func TestResolveSubdomainWinsOverMembership(t *testing.T) {
	dir := newFakeDirectory()
	hostOrg := &Organization{ID: 1, Subdomain: "acme"}
	memberOrg := &Organization{ID: 2, Subdomain: "other"}
	dir.addOrg(hostOrg)
	dir.addOrg(memberOrg)

	user := &User{ID: 5}
	dir.memberships[5] = []Membership{
		{UserID: 5, OrganizationID: 2, Active: true, CreatedAt: time.Now()},
	}

	r := NewResolver(dir, ModeProduction, nil)
	org, err := r.Resolve(context.Background(), user, "acme.careledger.example.com")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if org.ID != hostOrg.ID {
		t.Fatalf("subdomain must take precedence, got org %d", org.ID)
	}
}

func TestResolveReservedSubdomainFallsThrough(t *testing.T) {
	dir := newFakeDirectory()
	// An organization that happens to claim a reserved name must still not
	// resolve via the host in production.
	dir.addOrg(&Organization{ID: 1, Subdomain: "www"})
	memberOrg := &Organization{ID: 2, Subdomain: "acme"}
	dir.addOrg(memberOrg)

	user := &User{ID: 5}
	dir.memberships[5] = []Membership{
		{UserID: 5, OrganizationID: 2, Active: true},
	}

	r := NewResolver(dir, ModeProduction, nil)
	for _, host := range []string{"www.careledger.example.com", "admin.careledger.example.com"} {
		org, err := r.Resolve(context.Background(), user, host)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", host, err)
		}
		if org.ID != memberOrg.ID {
			t.Fatalf("Resolve(%s): expected membership fallback org %d, got %d", host, memberOrg.ID, org.ID)
		}
	}
}

func TestResolveReservedSubdomainInDevelopment(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "admin"})

	r := NewResolver(dir, ModeDevelopment, nil)
	org, err := r.Resolve(context.Background(), nil, "admin.localhost:3000")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if org.ID != 1 {
		t.Fatalf("development mode must not reserve subdomains, got org %d", org.ID)
	}
}

func TestResolveCustomReservedList(t *testing.T) {
	dir := newFakeDirectory()
	dir.addOrg(&Organization{ID: 1, Subdomain: "api"})

	r := NewResolver(dir, ModeProduction, []string{"api"})
	_, err := r.Resolve(context.Background(), nil, "api.careledger.example.com")
	if !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization for reserved label without memberships, got %v", err)
	}
}

func TestResolveMembershipFallbackOrdering(t *testing.T) {
	dir := newFakeDirectory()
	first := &Organization{ID: 1, Subdomain: "first"}
	second := &Organization{ID: 2, Subdomain: "second"}
	dir.addOrg(first)
	dir.addOrg(second)

	user := &User{ID: 9}
	// Directory returns memberships oldest first; the first active one wins.
	dir.memberships[9] = []Membership{
		{UserID: 9, OrganizationID: 1, Active: false},
		{UserID: 9, OrganizationID: 2, Active: true},
	}

	r := NewResolver(dir, ModeProduction, nil)
	org, err := r.Resolve(context.Background(), user, "careledger.example.com")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if org.ID != second.ID {
		t.Fatalf("expected first active membership org %d, got %d", second.ID, org.ID)
	}
}

func TestResolveNoOrganization(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, ModeProduction, nil)

	_, err := r.Resolve(context.Background(), &User{ID: 1}, "careledger.example.com")
	if !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization, got %v", err)
	}

	_, err = r.Resolve(context.Background(), nil, "careledger.example.com")
	if !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization for anonymous caller, got %v", err)
	}
}

func TestResolveDirectoryError(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = errors.New("connection refused")

	r := NewResolver(dir, ModeProduction, nil)
	_, err := r.Resolve(context.Background(), &User{ID: 1}, "acme.careledger.example.com")
	if err == nil || errors.Is(err, ErrNoOrganization) {
		t.Fatalf("expected directory error to surface, got %v", err)
	}
}

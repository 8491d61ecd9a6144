package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/careledger/careledger/pkg/tenant"
)

// Service implements tenant.Directory backed by PostgreSQL.
type Service struct {
	db *sql.DB
}

// NewService creates a directory service over db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// OrganizationBySubdomain implements tenant.Directory.
func (s *Service) OrganizationBySubdomain(ctx context.Context, subdomain string) (*tenant.Organization, error) {
	query := `
		SELECT id, name, subdomain, plan_tier, status, created_at, updated_at
		FROM organizations
		WHERE subdomain = $1`
	org := &tenant.Organization{}
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(subdomain)).Scan(
		&org.ID, &org.Name, &org.Subdomain, &org.PlanTier, &org.Status,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by subdomain: %w", err)
	}
	return org, nil
}

// OrganizationByID implements tenant.Directory.
func (s *Service) OrganizationByID(ctx context.Context, id int64) (*tenant.Organization, error) {
	query := `
		SELECT id, name, subdomain, plan_tier, status, created_at, updated_at
		FROM organizations
		WHERE id = $1`
	org := &tenant.Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Subdomain, &org.PlanTier, &org.Status,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// MembershipsByUser implements tenant.Directory. Ordering by creation time
// makes fallback organization resolution deterministic.
func (s *Service) MembershipsByUser(ctx context.Context, userID int64) ([]tenant.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, active, created_at
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []tenant.Membership
	for rows.Next() {
		var m tenant.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ActiveMembership implements tenant.Directory.
func (s *Service) ActiveMembership(ctx context.Context, userID, organizationID int64) (*tenant.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, active, created_at
		FROM memberships
		WHERE user_id = $1 AND organization_id = $2 AND active = TRUE`
	m := &tenant.Membership{}
	err := s.db.QueryRowContext(ctx, query, userID, organizationID).Scan(
		&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Active, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// CreateUser inserts a user and fills in the generated fields.
func (s *Service) CreateUser(ctx context.Context, user *tenant.User) error {
	query := `
		INSERT INTO users (email, full_name, super_admin)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		strings.ToLower(user.Email), user.FullName, user.SuperAdmin).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UserByEmail looks up a user by email.
func (s *Service) UserByEmail(ctx context.Context, email string) (*tenant.User, error) {
	query := `
		SELECT id, email, full_name, super_admin, created_at
		FROM users
		WHERE email = $1`
	user := &tenant.User{}
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&user.ID, &user.Email, &user.FullName, &user.SuperAdmin, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UserByID looks up a user by primary key.
func (s *Service) UserByID(ctx context.Context, id int64) (*tenant.User, error) {
	query := `
		SELECT id, email, full_name, super_admin, created_at
		FROM users
		WHERE id = $1`
	user := &tenant.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.FullName, &user.SuperAdmin, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateOrganization inserts an organization with defaults applied.
func (s *Service) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	if org.PlanTier == "" {
		org.PlanTier = tenant.PlanTrial
	}
	if org.Status == "" {
		org.Status = tenant.OrgStatusActive
	}
	org.Subdomain = strings.ToLower(org.Subdomain)

	query := `
		INSERT INTO organizations (name, subdomain, plan_tier, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		org.Name, org.Subdomain, org.PlanTier, org.Status).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// UpdateOrganization updates mutable organization fields.
func (s *Service) UpdateOrganization(ctx context.Context, org *tenant.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, plan_tier = $2, status = $3, updated_at = NOW()
		WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query, org.Name, org.PlanTier, org.Status, org.ID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

// CreateMembership binds a user to an organization with a role.
func (s *Service) CreateMembership(ctx context.Context, m *tenant.Membership) error {
	query := `
		INSERT INTO memberships (user_id, organization_id, role, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		m.UserID, m.OrganizationID, m.Role, m.Active).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// UpdateMembershipRole changes the role on an existing membership.
func (s *Service) UpdateMembershipRole(ctx context.Context, membershipID int64, role string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memberships SET role = $1 WHERE id = $2", role, membershipID)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

// DeactivateMembership clears the active flag. The row stays for history;
// an inactive membership never resolves a tenant or grants a permission.
func (s *Service) DeactivateMembership(ctx context.Context, membershipID int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memberships SET active = FALSE WHERE id = $1", membershipID)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

// MembershipsByOrganization lists the members of one organization.
func (s *Service) MembershipsByOrganization(ctx context.Context, organizationID int64) ([]tenant.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, active, created_at
		FROM memberships
		WHERE organization_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization memberships: %w", err)
	}
	defer rows.Close()

	var memberships []tenant.Membership
	for rows.Next() {
		var m tenant.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

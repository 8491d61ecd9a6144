package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Store persists permission rules. It implements RuleSource for the Decider
// and exposes the mutation surface used by role management.
type Store struct {
	db *sql.DB
}

// NewStore creates a new rule store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// HasRule reports whether an allow rule exists for the exact tuple.
func (s *Store) HasRule(ctx context.Context, role string, module Module, resource Resource, action Action) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM permission_rules
			WHERE role = $1 AND module = $2 AND resource = $3 AND action = $4
		)
	`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, role, module, resource, action).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check permission rule: %w", err)
	}
	return exists, nil
}

// CreateRule inserts an allow rule. Duplicate tuples are rejected by the
// unique constraint.
func (s *Store) CreateRule(ctx context.Context, rule *Rule) error {
	query := `
		INSERT INTO permission_rules (role, module, resource, action)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		rule.Role,
		rule.Module,
		rule.Resource,
		rule.Action,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create permission rule: %w", err)
	}
	return nil
}

// DeleteRule removes an allow rule by ID.
func (s *Store) DeleteRule(ctx context.Context, ruleID int64) error {
	query := `DELETE FROM permission_rules WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, ruleID); err != nil {
		return fmt.Errorf("failed to delete permission rule: %w", err)
	}
	return nil
}

// DeleteRulesForRole removes every rule granted to a role.
func (s *Store) DeleteRulesForRole(ctx context.Context, role string) error {
	query := `DELETE FROM permission_rules WHERE role = $1`
	if _, err := s.db.ExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("failed to delete rules for role %s: %w", role, err)
	}
	return nil
}

// RulesForRole lists the rules granted to a role.
func (s *Store) RulesForRole(ctx context.Context, role string) ([]Rule, error) {
	query := `
		SELECT id, role, module, resource, action, created_at
		FROM permission_rules
		WHERE role = $1
		ORDER BY module, resource, action
	`

	rows, err := s.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for role %s: %w", role, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID,
			&rule.Role,
			&rule.Module,
			&rule.Resource,
			&rule.Action,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// ListRoles returns the distinct role names that have at least one rule.
func (s *Store) ListRoles(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT role FROM permission_rules ORDER BY role`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// SeedDefaultRules inserts the built-in role grants, skipping tuples that
// already exist.
func (s *Store) SeedDefaultRules(ctx context.Context) error {
	for _, rule := range DefaultRules() {
		exists, err := s.HasRule(ctx, rule.Role, rule.Module, rule.Resource, rule.Action)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		seeded := rule
		if err := s.CreateRule(ctx, &seeded); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.Key(), err)
		}
	}
	return nil
}

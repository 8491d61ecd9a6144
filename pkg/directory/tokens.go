package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careledger/careledger/pkg/tenant"
)

// APIToken is a bearer credential for one user.
type APIToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Token      string     `json:"token,omitempty"`
	Name       string     `json:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateAPIToken mints a token for a user. The token value is only returned
// here; lookups afterwards go by value, not ID.
func (s *Service) CreateAPIToken(ctx context.Context, userID int64, name string) (*APIToken, error) {
	t := &APIToken{
		UserID: userID,
		Token:  uuid.NewString(),
		Name:   name,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		t.UserID, t.Token, t.Name).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create api token: %w", err)
	}
	return t, nil
}

// UserByToken resolves a bearer token to its user and touches the token's
// last-used timestamp.
func (s *Service) UserByToken(ctx context.Context, token string) (*tenant.User, error) {
	query := `
		SELECT u.id, u.email, u.full_name, u.super_admin, u.created_at
		FROM users u
		JOIN api_tokens t ON t.user_id = u.id
		WHERE t.token = $1`
	user := &tenant.User{}
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&user.ID, &user.Email, &user.FullName, &user.SuperAdmin, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve api token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used_at = NOW() WHERE token = $1", token); err != nil {
		return user, fmt.Errorf("failed to touch api token: %w", err)
	}
	return user, nil
}

// RevokeAPIToken deletes a token by value.
func (s *Service) RevokeAPIToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_tokens WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("failed to revoke api token: %w", err)
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

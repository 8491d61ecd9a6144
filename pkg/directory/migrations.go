package directory

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_users",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				email VARCHAR(255) NOT NULL UNIQUE,
				full_name VARCHAR(255) NOT NULL DEFAULT '',
				super_admin BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		version: 2,
		name:    "create_organizations",
		sql: `
			CREATE TABLE IF NOT EXISTS organizations (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				subdomain VARCHAR(63) NOT NULL UNIQUE,
				plan_tier VARCHAR(32) NOT NULL DEFAULT 'trial',
				status VARCHAR(32) NOT NULL DEFAULT 'active',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_organizations_subdomain ON organizations(subdomain);
		`,
	},
	{
		version: 3,
		name:    "create_memberships",
		sql: `
			CREATE TABLE IF NOT EXISTS memberships (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				role VARCHAR(64) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(user_id, organization_id)
			);
			CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_memberships_org ON memberships(organization_id);
		`,
	},
	{
		version: 4,
		name:    "create_invitations",
		sql: `
			CREATE TABLE IF NOT EXISTS invitations (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				email VARCHAR(255) NOT NULL,
				role VARCHAR(64) NOT NULL,
				token VARCHAR(64) NOT NULL UNIQUE,
				invited_by BIGINT NOT NULL REFERENCES users(id),
				expires_at TIMESTAMPTZ NOT NULL,
				accepted_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(organization_id, email)
			);
			CREATE INDEX IF NOT EXISTS idx_invitations_token ON invitations(token);
			CREATE INDEX IF NOT EXISTS idx_invitations_expires ON invitations(expires_at);
		`,
	},
	{
		version: 5,
		name:    "create_api_tokens",
		sql: `
			CREATE TABLE IF NOT EXISTS api_tokens (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token VARCHAR(64) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				last_used_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id);
		`,
	},
}

// RunMigrations applies pending directory schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS directory_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM directory_migrations WHERE version = $1)",
			m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO directory_migrations (version, name) VALUES ($1, $2)",
			m.version, m.name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}

package records

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
		name:    "create_patients",
		sql: `
			CREATE TABLE IF NOT EXISTS patients (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				first_name VARCHAR(255) NOT NULL,
				last_name VARCHAR(255) NOT NULL,
				date_of_birth DATE NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_patients_org ON patients(organization_id);
		`,
	},
	{
		version: 2,
		name:    "create_claims",
		sql: `
			CREATE TABLE IF NOT EXISTS claims (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				patient_id BIGINT NOT NULL,
				created_by_id BIGINT NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				total_cents BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_claims_org ON claims(organization_id, created_at);
		`,
	},
	{
		version: 3,
		name:    "create_invoices_payments",
		sql: `
			CREATE TABLE IF NOT EXISTS invoices (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				patient_id BIGINT NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				amount_cents BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_invoices_org ON invoices(organization_id, created_at);

			CREATE TABLE IF NOT EXISTS payments (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				invoice_id BIGINT NOT NULL,
				amount_cents BIGINT NOT NULL,
				posted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_payments_org ON payments(organization_id, posted_at);
		`,
	},
	{
		version: 4,
		name:    "create_clinical",
		sql: `
			CREATE TABLE IF NOT EXISTS encounters (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				patient_id BIGINT NOT NULL,
				provider_id BIGINT NOT NULL,
				occurred_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_encounters_org ON encounters(organization_id, occurred_at);

			CREATE TABLE IF NOT EXISTS clinical_notes (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				encounter_id BIGINT NOT NULL,
				author_id BIGINT NOT NULL,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				signed_at TIMESTAMPTZ,
				cosigned_by_id BIGINT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_clinical_notes_org ON clinical_notes(organization_id, created_at);

			CREATE TABLE IF NOT EXISTS attachments (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL,
				uploaded_by_id BIGINT NOT NULL,
				file_name VARCHAR(1024) NOT NULL,
				content_type VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_attachments_org ON attachments(organization_id);
		`,
	},
	{
		version: 5,
		name:    "create_reference_codes",
		sql: `
			CREATE TABLE IF NOT EXISTS adjustment_codes (
				id BIGSERIAL PRIMARY KEY,
				code VARCHAR(32) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				deleted_at TIMESTAMPTZ
			);

			CREATE TABLE IF NOT EXISTS diagnosis_codes (
				id BIGSERIAL PRIMARY KEY,
				code VARCHAR(32) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				deleted_at TIMESTAMPTZ
			);
		`,
	},
}

// RunMigrations applies pending domain schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records_migrations (
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
			"SELECT EXISTS(SELECT 1 FROM records_migrations WHERE version = $1)",
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
			"INSERT INTO records_migrations (version, name) VALUES ($1, $2)",
			m.version, m.name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}

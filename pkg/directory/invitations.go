package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

// DefaultInvitationTTL is how long an invitation stays redeemable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// ErrInvitationExpired indicates an accept attempt after the deadline.
var ErrInvitationExpired = errors.New("directory: invitation expired")

// ErrInvitationAccepted indicates an invitation was already redeemed.
var ErrInvitationAccepted = errors.New("directory: invitation already accepted")

// Invitation is a pending offer of organization membership.
type Invitation struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Token          string     `json:"token"`
	InvitedBy      int64      `json:"invited_by"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateInvitation issues an invitation with a fresh token and TTL.
func (s *Service) CreateInvitation(ctx context.Context, inv *Invitation) error {
	inv.Email = strings.ToLower(inv.Email)
	inv.Token = uuid.NewString()
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = time.Now().UTC().Add(DefaultInvitationTTL)
	}

	query := `
		INSERT INTO invitations (organization_id, email, role, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// InvitationByToken looks up a pending invitation.
func (s *Service) InvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, token, invited_by, expires_at, accepted_at, created_at
		FROM invitations
		WHERE token = $1`
	inv := &Invitation{}
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// AcceptInvitation redeems an invitation for userID, creating the active
// membership and marking the invitation consumed atomically.
func (s *Service) AcceptInvitation(ctx context.Context, token string, userID int64) (*tenant.Membership, error) {
	inv, err := s.InvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, ErrInvitationAccepted
	}
	if time.Now().UTC().After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m := &tenant.Membership{
		UserID:         userID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		Active:         true,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO memberships (user_id, organization_id, role, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at`,
		m.UserID, m.OrganizationID, m.Role).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership from invitation: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE invitations SET accepted_at = NOW()
		WHERE id = $1 AND accepted_at IS NULL`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrInvitationAccepted
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invitation accept: %w", err)
	}
	return m, nil
}

// CleanupExpiredInvitations deletes unaccepted invitations whose deadline
// has passed and returns the count removed.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations
		WHERE accepted_at IS NULL AND expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return result.RowsAffected()
}

// StartInvitationCleanup schedules hourly expired-invitation cleanup and
// returns the running scheduler. Callers stop it on shutdown.
func StartInvitationCleanup(svc *Service, logger *observability.Logger) *cron.Cron {
	c := cron.New()
	logger = logger.WithField("component", "invitation_cleanup")
	c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := svc.CleanupExpiredInvitations(ctx)
		if err != nil {
			logger.WithError(err).Error("expired invitation cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("expired invitations removed")
		}
	})
	c.Start()
	return c
}

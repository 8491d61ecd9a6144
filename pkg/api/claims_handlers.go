package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/policy"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

var claimColumns = []string{
	"claims.id", "claims.organization_id", "claims.patient_id",
	"claims.created_by_id", "claims.status", "claims.total_cents",
	"claims.created_at", "claims.updated_at",
}

// listClaims handles GET /claims
func (s *Server) listClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := sq.Select(claimColumns...).
		From("claims").
		OrderBy("claims.created_at DESC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceClaims), q)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	query, args, err := q.Limit(uint64(limit)).ToSql()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.WithError(err).Error("failed to list claims")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	claims := []records.Claim{}
	for rows.Next() {
		var c records.Claim
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.PatientID, &c.CreatedByID,
			&c.Status, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		claims = append(claims, c)
	}
	httputil.WriteSuccess(w, claims)
}

// createClaim handles POST /claims
func (s *Server) createClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil || tc.User == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	var req struct {
		PatientID  int64 `json:"patient_id"`
		TotalCents int64 `json:"total_cents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PatientID == 0 {
		httputil.WriteBadRequest(w, "patient_id is required")
		return
	}

	claim := records.Claim{
		OrganizationID: tc.Organization.ID,
		PatientID:      req.PatientID,
		CreatedByID:    tc.User.ID,
		Status:         records.ClaimDraft,
		TotalCents:     req.TotalCents,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO claims (organization_id, patient_id, created_by_id, status, total_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		claim.OrganizationID, claim.PatientID, claim.CreatedByID, claim.Status, claim.TotalCents).
		Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		s.logger.WithError(err).Error("failed to create claim")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, claim)
}

// getClaim handles GET /claims/{id}
func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	claim, err := s.loadClaim(r.Context(), id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	httputil.WriteSuccess(w, claim)
}

// updateClaim handles PUT /claims/{id}
func (s *Server) updateClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	if !s.allowRecord(w, r, rbac.ResourceClaims, policy.ActionUpdate, claim) {
		return
	}

	var req struct {
		TotalCents *int64 `json:"total_cents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TotalCents != nil {
		claim.TotalCents = *req.TotalCents
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE claims SET total_cents = $1, updated_at = NOW() WHERE id = $2`,
		claim.TotalCents, claim.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, claim)
}

// destroyClaim handles DELETE /claims/{id}
func (s *Server) destroyClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	if !s.allowRecord(w, r, rbac.ResourceClaims, policy.ActionDestroy, claim) {
		return
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM claims WHERE id = $1", claim.ID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// submitClaim handles POST /claims/{id}/submit
func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	s.transitionClaim(w, r, policy.ActionSubmit, records.ClaimSubmitted)
}

// voidClaim handles POST /claims/{id}/void
func (s *Server) voidClaim(w http.ResponseWriter, r *http.Request) {
	s.transitionClaim(w, r, policy.ActionVoid, records.ClaimVoided)
}

func (s *Server) transitionClaim(w http.ResponseWriter, r *http.Request, action policy.Action, to records.ClaimStatus) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	claim, err := s.loadClaim(ctx, id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	if !s.allowRecord(w, r, rbac.ResourceClaims, action, claim) {
		return
	}

	claim.Status = to
	_, err = s.db.ExecContext(ctx, `
		UPDATE claims SET status = $1, updated_at = NOW() WHERE id = $2`,
		claim.Status, claim.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, claim)
}

// loadClaim fetches one claim through the visibility scope. A claim outside
// the tenant's scope is indistinguishable from one that does not exist.
func (s *Server) loadClaim(ctx context.Context, id int64) (*records.Claim, error) {
	q := sq.Select(claimColumns...).
		From("claims").
		Where(sq.Eq{"claims.id": id}).
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceClaims), q)
	if err != nil {
		return nil, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var c records.Claim
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.OrganizationID, &c.PatientID, &c.CreatedByID,
		&c.Status, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// allowRecord re-evaluates the policy with the loaded record so state and
// authorship predicates apply. The collection-level gate decision has
// already passed by the time a handler runs.
func (s *Server) allowRecord(w http.ResponseWriter, r *http.Request, resource rbac.Resource, action policy.Action, record any) bool {
	allowed, err := s.registry.Allow(r.Context(), string(resource), action, record)
	if err != nil {
		s.logger.WithError(err).Error("record-level policy evaluation failed")
		allowed = false
	}
	if !allowed {
		if err := audit.LogDenied(r.Context(), r, string(resource), string(action), "record predicate failed"); err != nil {
			s.logger.WithError(err).Warn("failed to record denial audit event")
		}
		httputil.WriteForbidden(w, "not authorized")
		return false
	}
	return true
}

func (s *Server) writeRecordError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteNotFound(w, "not found")
		return
	}
	httputil.WriteInternalError(w, err)
}

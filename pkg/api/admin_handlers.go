package api

import (
	"errors"
	"net/http"

	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/directory"
	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/tenant"
)

// getOrganization handles GET /organization. The record is always the
// tenant's own organization; there is no cross-tenant lookup path.
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	tc := tenant.Current(r.Context())
	if tc.Organization == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}
	httputil.WriteSuccess(w, tc.Organization)
}

// updateOrganization handles PUT /organization
func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	var req struct {
		Name     *string `json:"name"`
		PlanTier *string `json:"plan_tier"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org := *tc.Organization
	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.PlanTier != nil {
		org.PlanTier = tenant.PlanTier(*req.PlanTier)
	}

	if err := s.dir.UpdateOrganization(ctx, &org); err != nil {
		s.logger.WithError(err).Error("failed to update organization")
		httputil.WriteInternalError(w, err)
		return
	}

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAdminOrgUpdate, audit.EventStatusSuccess)
	event.OrganizationID = &org.ID
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteSuccess(w, org)
}

// listMemberships handles GET /memberships
func (s *Server) listMemberships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	memberships, err := s.dir.MembershipsByOrganization(ctx, tc.Organization.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list memberships")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, memberships)
}

// inviteMember handles POST /memberships/invite
func (s *Server) inviteMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil || tc.User == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	inv := &directory.Invitation{
		OrganizationID: tc.Organization.ID,
		Email:          req.Email,
		Role:           req.Role,
		InvitedBy:      tc.User.ID,
	}
	if err := s.dir.CreateInvitation(ctx, inv); err != nil {
		s.logger.WithError(err).Error("failed to create invitation")
		httputil.WriteInternalError(w, err)
		return
	}

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAdminInvitationCreate, audit.EventStatusSuccess)
	event.OrganizationID = &inv.OrganizationID
	event.UserID = &tc.User.ID
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteCreated(w, inv)
}

// removeMember handles DELETE /memberships/{id}. Memberships are
// deactivated, never deleted, so history stays intact.
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	if err := s.dir.DeactivateMembership(ctx, id); err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			httputil.WriteNotFound(w, "membership not found")
			return
		}
		s.logger.WithError(err).Error("failed to deactivate membership")
		httputil.WriteInternalError(w, err)
		return
	}

	// The removed member's cached decisions must not outlive the membership.
	s.decider.Invalidate()
	if s.invalidation != nil {
		if err := s.invalidation.Publish(ctx, "membership_deactivated"); err != nil {
			s.logger.WithError(err).Warn("failed to publish cache invalidation")
		}
	}

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAdminMemberRemove, audit.EventStatusSuccess)
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteNoContent(w)
}

// acceptInvitation handles POST /invitations/{token}/accept. The route is
// gate-exempt: the accepting user has no organization yet.
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	token, err := httputil.ParsePathString(r, "token")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	membership, err := s.dir.AcceptInvitation(ctx, token, tc.User.ID)
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		httputil.WriteNotFound(w, "invitation not found")
		return
	case errors.Is(err, directory.ErrInvitationExpired):
		httputil.WriteErrorMessage(w, http.StatusGone, "invitation expired")
		return
	case errors.Is(err, directory.ErrInvitationAccepted):
		httputil.WriteConflict(w, "invitation already accepted")
		return
	case err != nil:
		s.logger.WithError(err).Error("failed to accept invitation")
		httputil.WriteInternalError(w, err)
		return
	}

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAdminInvitationAccept, audit.EventStatusSuccess)
	event.UserID = &tc.User.ID
	event.OrganizationID = &membership.OrganizationID
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteCreated(w, membership)
}

package api

import (
	"context"
	"net/http"

	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/rbac"
)

// listRoles handles GET /roles
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.rules.ListRoles(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list roles")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// listRoleRules handles GET /roles/{role}/rules
func (s *Server) listRoleRules(w http.ResponseWriter, r *http.Request) {
	role, err := httputil.ParsePathString(r, "role")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	rules, err := s.rules.RulesForRole(r.Context(), role)
	if err != nil {
		s.logger.WithError(err).Error("failed to list rules for role")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, rules)
}

// createRoleRule handles POST /roles/{role}/rules. Every rule change fans
// out a cache invalidation so no replica serves a stale decision past the
// cache TTL.
func (s *Server) createRoleRule(w http.ResponseWriter, r *http.Request) {
	role, err := httputil.ParsePathString(r, "role")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	ctx := r.Context()

	var req struct {
		Module   string `json:"module"`
		Resource string `json:"resource"`
		Action   string `json:"action"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Module, "module") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Resource, "resource") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Action, "action") {
		return
	}

	rule := rbac.Rule{
		Role:     role,
		Module:   rbac.Module(req.Module),
		Resource: rbac.Resource(req.Resource),
		Action:   rbac.Action(req.Action),
	}
	if err := s.rules.CreateRule(ctx, &rule); err != nil {
		s.logger.WithError(err).Error("failed to create permission rule")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateDecisions(ctx, "rule_created")

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAuthzRuleCreate, audit.EventStatusSuccess)
	event.Resource = req.Resource
	event.Action = req.Action
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteCreated(w, rule)
}

// deleteRoleRule handles DELETE /roles/{role}/rules/{id}
func (s *Server) deleteRoleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	if err := s.rules.DeleteRule(ctx, id); err != nil {
		s.logger.WithError(err).Error("failed to delete permission rule")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateDecisions(ctx, "rule_deleted")

	event := audit.NewRequestEvent(ctx, r, audit.EventTypeAuthzRuleDelete, audit.EventStatusSuccess)
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
	httputil.WriteNoContent(w)
}

// invalidateDecisions drops the local decision cache and broadcasts the
// change to other replicas.
func (s *Server) invalidateDecisions(ctx context.Context, reason string) {
	s.decider.Invalidate()
	if s.invalidation != nil {
		if err := s.invalidation.Publish(ctx, reason); err != nil {
			s.logger.WithError(err).Warn("failed to publish cache invalidation")
		}
	}
}

package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
)

// PatientPolicy gates the patient roster.
type PatientPolicy struct {
	pdp *rbac.Decider
}

// NewPatientPolicy creates the patients adapter.
func NewPatientPolicy(pdp *rbac.Decider) *PatientPolicy {
	return &PatientPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *PatientPolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy:
		return p.pdp.Accessible(ctx, rbac.ModulePatients, rbac.ResourcePatients, rbac.Action(action))
	default:
		return false
	}
}

// Scope implements Policy.
func (p *PatientPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "patients.organization_id")
}

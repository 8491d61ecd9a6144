package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
)

// ReferencePolicy gates shared lookup data (adjustment codes, diagnosis
// codes). Reference rows are not tenant-owned: the scope keeps non-deleted
// rows and applies no organization filter. Mutation is owned by an external
// catalog pipeline, so the write actions are statically denied here.
type ReferencePolicy struct {
	pdp          *rbac.Decider
	resource     rbac.Resource
	deletedAtCol string
}

// NewAdjustmentCodePolicy creates the adjustment-codes adapter.
func NewAdjustmentCodePolicy(pdp *rbac.Decider) *ReferencePolicy {
	return &ReferencePolicy{pdp: pdp, resource: rbac.ResourceAdjustmentCodes, deletedAtCol: "adjustment_codes.deleted_at"}
}

// NewDiagnosisCodePolicy creates the diagnosis-codes adapter.
func NewDiagnosisCodePolicy(pdp *rbac.Decider) *ReferencePolicy {
	return &ReferencePolicy{pdp: pdp, resource: rbac.ResourceDiagnosisCodes, deletedAtCol: "diagnosis_codes.deleted_at"}
}

// Allow implements Policy.
func (p *ReferencePolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex, ActionShow:
		return p.pdp.Accessible(ctx, rbac.ModuleReference, p.resource, rbac.Action(action))
	default:
		return false
	}
}

// Scope implements Policy.
func (p *ReferencePolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return keptScope(q, p.deletedAtCol)
}

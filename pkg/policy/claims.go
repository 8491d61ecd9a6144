package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
)

// ClaimPolicy gates the insurance-claim workflow. Claims are editable and
// submittable only in draft, voidable only after submission.
type ClaimPolicy struct {
	pdp *rbac.Decider
}

// NewClaimPolicy creates the claims adapter.
func NewClaimPolicy(pdp *rbac.Decider) *ClaimPolicy {
	return &ClaimPolicy{pdp: pdp}
}

func (p *ClaimPolicy) can(ctx context.Context, action rbac.Action) bool {
	return p.pdp.Accessible(ctx, rbac.ModuleClaims, rbac.ResourceClaims, action)
}

// Allow implements Policy.
func (p *ClaimPolicy) Allow(ctx context.Context, action Action, record any) bool {
	claim, _ := record.(*records.Claim)

	switch action {
	case ActionIndex:
		return p.can(ctx, rbac.ActionIndex)
	case ActionShow:
		return p.can(ctx, rbac.ActionShow)
	case ActionCreate:
		return p.can(ctx, rbac.ActionCreate)
	case ActionUpdate:
		if !p.can(ctx, rbac.ActionUpdate) {
			return false
		}
		return record == nil || (claim != nil && claim.Status == records.ClaimDraft)
	case ActionSubmit:
		if !p.can(ctx, rbac.ActionSubmit) {
			return false
		}
		return record == nil || (claim != nil && claim.Status == records.ClaimDraft)
	case ActionVoid:
		if !p.can(ctx, rbac.ActionVoid) {
			return false
		}
		return record == nil || (claim != nil && claim.Status == records.ClaimSubmitted)
	case ActionDestroy:
		if !p.can(ctx, rbac.ActionDestroy) {
			return false
		}
		return record == nil || (claim != nil && claim.Status == records.ClaimDraft)
	default:
		return false
	}
}

// Scope implements Policy.
func (p *ClaimPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "claims.organization_id")
}

package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
)

// InvoicePolicy gates patient invoices. Drafts are editable; only issued
// invoices can be voided. Invoices are never hard-deleted.
type InvoicePolicy struct {
	pdp *rbac.Decider
}

// NewInvoicePolicy creates the invoices adapter.
func NewInvoicePolicy(pdp *rbac.Decider) *InvoicePolicy {
	return &InvoicePolicy{pdp: pdp}
}

func (p *InvoicePolicy) can(ctx context.Context, action rbac.Action) bool {
	return p.pdp.Accessible(ctx, rbac.ModuleBilling, rbac.ResourceInvoices, action)
}

// Allow implements Policy.
func (p *InvoicePolicy) Allow(ctx context.Context, action Action, record any) bool {
	invoice, _ := record.(*records.Invoice)

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
		return record == nil || (invoice != nil && invoice.Status == records.InvoiceDraft)
	case ActionVoid:
		if !p.can(ctx, rbac.ActionVoid) {
			return false
		}
		return record == nil || (invoice != nil && invoice.Status == records.InvoiceIssued)
	case ActionDestroy:
		// Financial records are voided, never deleted.
		return false
	default:
		return false
	}
}

// Scope implements Policy.
func (p *InvoicePolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "invoices.organization_id")
}

// PaymentPolicy gates posted payments. Payments are append-only: update and
// destroy are statically denied regardless of role.
type PaymentPolicy struct {
	pdp *rbac.Decider
}

// NewPaymentPolicy creates the payments adapter.
func NewPaymentPolicy(pdp *rbac.Decider) *PaymentPolicy {
	return &PaymentPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *PaymentPolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex:
		return p.pdp.Accessible(ctx, rbac.ModuleBilling, rbac.ResourcePayments, rbac.ActionIndex)
	case ActionShow:
		return p.pdp.Accessible(ctx, rbac.ModuleBilling, rbac.ResourcePayments, rbac.ActionShow)
	case ActionCreate:
		return p.pdp.Accessible(ctx, rbac.ModuleBilling, rbac.ResourcePayments, rbac.ActionCreate)
	case ActionUpdate, ActionDestroy:
		return false
	default:
		return false
	}
}

// Scope implements Policy.
func (p *PaymentPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "payments.organization_id")
}

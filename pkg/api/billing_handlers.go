package api

import (
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

// listInvoices handles GET /invoices
func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := sq.Select(
		"invoices.id", "invoices.organization_id", "invoices.patient_id",
		"invoices.status", "invoices.amount_cents", "invoices.created_at").
		From("invoices").
		OrderBy("invoices.created_at DESC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceInvoices), q)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	query, args, err := q.ToSql()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.WithError(err).Error("failed to list invoices")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	invoices := []records.Invoice{}
	for rows.Next() {
		var inv records.Invoice
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.PatientID,
			&inv.Status, &inv.AmountCents, &inv.CreatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		invoices = append(invoices, inv)
	}
	httputil.WriteSuccess(w, invoices)
}

// getInvoice handles GET /invoices/{id}
func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	q := sq.Select(
		"invoices.id", "invoices.organization_id", "invoices.patient_id",
		"invoices.status", "invoices.amount_cents", "invoices.created_at").
		From("invoices").
		Where(sq.Eq{"invoices.id": id}).
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceInvoices), q)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	query, args, err := q.ToSql()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var inv records.Invoice
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&inv.ID, &inv.OrganizationID, &inv.PatientID,
		&inv.Status, &inv.AmountCents, &inv.CreatedAt)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// listPayments handles GET /payments
func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := sq.Select(
		"payments.id", "payments.organization_id", "payments.invoice_id",
		"payments.amount_cents", "payments.posted_at").
		From("payments").
		OrderBy("payments.posted_at DESC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourcePayments), q)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	query, args, err := q.ToSql()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.WithError(err).Error("failed to list payments")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	payments := []records.Payment{}
	for rows.Next() {
		var p records.Payment
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.InvoiceID,
			&p.AmountCents, &p.PostedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		payments = append(payments, p)
	}
	httputil.WriteSuccess(w, payments)
}

// createPayment handles POST /payments. Payments are append-only; there is
// no update or destroy route.
func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	var req struct {
		InvoiceID   int64 `json:"invoice_id"`
		AmountCents int64 `json:"amount_cents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.InvoiceID == 0 {
		httputil.WriteBadRequest(w, "invoice_id is required")
		return
	}
	if req.AmountCents <= 0 {
		httputil.WriteBadRequest(w, "amount_cents must be positive")
		return
	}

	payment := records.Payment{
		OrganizationID: tc.Organization.ID,
		InvoiceID:      req.InvoiceID,
		AmountCents:    req.AmountCents,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO payments (organization_id, invoice_id, amount_cents, posted_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, posted_at`,
		payment.OrganizationID, payment.InvoiceID, payment.AmountCents).
		Scan(&payment.ID, &payment.PostedAt)
	if err != nil {
		s.logger.WithError(err).Error("failed to create payment")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, payment)
}

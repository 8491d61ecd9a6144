package api

import (
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

var patientColumns = []string{
	"patients.id", "patients.organization_id", "patients.first_name",
	"patients.last_name", "patients.date_of_birth", "patients.created_at",
}

// listPatients handles GET /patients
func (s *Server) listPatients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := sq.Select(patientColumns...).
		From("patients").
		OrderBy("patients.last_name ASC, patients.first_name ASC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourcePatients), q)
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
		s.logger.WithError(err).Error("failed to list patients")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	patients := []records.Patient{}
	for rows.Next() {
		var p records.Patient
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.FirstName,
			&p.LastName, &p.DateOfBirth, &p.CreatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		patients = append(patients, p)
	}
	httputil.WriteSuccess(w, patients)
}

// createPatient handles POST /patients
func (s *Server) createPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.Organization == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	var req struct {
		FirstName   string    `json:"first_name"`
		LastName    string    `json:"last_name"`
		DateOfBirth time.Time `json:"date_of_birth"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.FirstName, "first_name") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.LastName, "last_name") {
		return
	}

	patient := records.Patient{
		OrganizationID: tc.Organization.ID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DateOfBirth:    req.DateOfBirth,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO patients (organization_id, first_name, last_name, date_of_birth)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		patient.OrganizationID, patient.FirstName, patient.LastName, patient.DateOfBirth).
		Scan(&patient.ID, &patient.CreatedAt)
	if err != nil {
		s.logger.WithError(err).Error("failed to create patient")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, patient)
}

// getPatient handles GET /patients/{id}
func (s *Server) getPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	q := sq.Select(patientColumns...).
		From("patients").
		Where(sq.Eq{"patients.id": id}).
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourcePatients), q)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	query, args, err := q.ToSql()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var p records.Patient
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.OrganizationID, &p.FirstName, &p.LastName,
		&p.DateOfBirth, &p.CreatedAt)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

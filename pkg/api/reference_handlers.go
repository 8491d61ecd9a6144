package api

import (
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
)

// listAdjustmentCodes handles GET /adjustment_codes
func (s *Server) listAdjustmentCodes(w http.ResponseWriter, r *http.Request) {
	s.listReferenceCodes(w, r, rbac.ResourceAdjustmentCodes, "adjustment_codes")
}

// listDiagnosisCodes handles GET /diagnosis_codes
func (s *Server) listDiagnosisCodes(w http.ResponseWriter, r *http.Request) {
	s.listReferenceCodes(w, r, rbac.ResourceDiagnosisCodes, "diagnosis_codes")
}

// listReferenceCodes serves shared reference data. The policy scope filters
// out soft-deleted rows rather than restricting by tenant.
func (s *Server) listReferenceCodes(w http.ResponseWriter, r *http.Request, resource rbac.Resource, table string) {
	ctx := r.Context()

	q := sq.Select(
		table+".id", table+".code", table+".description", table+".deleted_at").
		From(table).
		OrderBy(table + ".code ASC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(resource), q)
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
		s.logger.WithError(err).Error("failed to list reference codes")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	codes := []records.AdjustmentCode{}
	for rows.Next() {
		var c records.AdjustmentCode
		if err := rows.Scan(&c.ID, &c.Code, &c.Description, &c.DeletedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		codes = append(codes, c)
	}
	httputil.WriteSuccess(w, codes)
}

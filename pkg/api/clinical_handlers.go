package api

import (
	"context"
	"net/http"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/policy"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

var noteColumns = []string{
	"clinical_notes.id", "clinical_notes.organization_id",
	"clinical_notes.encounter_id", "clinical_notes.author_id",
	"clinical_notes.status", "clinical_notes.signed_at",
	"clinical_notes.cosigned_by_id", "clinical_notes.created_at",
}

// listNotes handles GET /clinical_notes
func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := sq.Select(noteColumns...).
		From("clinical_notes").
		OrderBy("clinical_notes.created_at DESC").
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceClinicalNotes), q)
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
		s.logger.WithError(err).Error("failed to list clinical notes")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	notes := []records.ClinicalNote{}
	for rows.Next() {
		var n records.ClinicalNote
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.EncounterID, &n.AuthorID,
			&n.Status, &n.SignedAt, &n.CosignedByID, &n.CreatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		notes = append(notes, n)
	}
	httputil.WriteSuccess(w, notes)
}

// getNote handles GET /clinical_notes/{id}
func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	note, err := s.loadNote(r.Context(), id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	httputil.WriteSuccess(w, note)
}

// signNote handles POST /clinical_notes/{id}/sign. Only the author may sign,
// and only from draft.
func (s *Server) signNote(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	note, err := s.loadNote(ctx, id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	if !s.allowRecord(w, r, rbac.ResourceClinicalNotes, policy.ActionSign, note) {
		return
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE clinical_notes SET status = $1, signed_at = NOW()
		WHERE id = $2
		RETURNING signed_at`,
		records.NoteSigned, note.ID).Scan(&note.SignedAt)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	note.Status = records.NoteSigned
	httputil.WriteSuccess(w, note)
}

// cosignNote handles POST /clinical_notes/{id}/cosign. The cosigner must be
// a different clinician and the note must already be signed.
func (s *Server) cosignNote(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	tc := tenant.Current(ctx)
	if tc.User == nil {
		httputil.WriteUnauthorized(w, "unauthenticated tenant context")
		return
	}

	note, err := s.loadNote(ctx, id)
	if err != nil {
		s.writeRecordError(w, err)
		return
	}
	if !s.allowRecord(w, r, rbac.ResourceClinicalNotes, policy.ActionCosign, note) {
		return
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE clinical_notes SET status = $1, cosigned_by_id = $2
		WHERE id = $3`,
		records.NoteCosigned, tc.User.ID, note.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	note.Status = records.NoteCosigned
	note.CosignedByID = &tc.User.ID
	httputil.WriteSuccess(w, note)
}

func (s *Server) loadNote(ctx context.Context, id int64) (*records.ClinicalNote, error) {
	q := sq.Select(noteColumns...).
		From("clinical_notes").
		Where(sq.Eq{"clinical_notes.id": id}).
		PlaceholderFormat(sq.Dollar)
	q, err := s.registry.Scope(ctx, string(rbac.ResourceClinicalNotes), q)
	if err != nil {
		return nil, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var n records.ClinicalNote
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&n.ID, &n.OrganizationID, &n.EncounterID, &n.AuthorID,
		&n.Status, &n.SignedAt, &n.CosignedByID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

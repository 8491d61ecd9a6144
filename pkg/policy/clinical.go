package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/records"
	"github.com/careledger/careledger/pkg/tenant"
)

// EncounterPolicy gates patient-visit records.
type EncounterPolicy struct {
	pdp *rbac.Decider
}

// NewEncounterPolicy creates the encounters adapter.
func NewEncounterPolicy(pdp *rbac.Decider) *EncounterPolicy {
	return &EncounterPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *EncounterPolicy) Allow(ctx context.Context, action Action, record any) bool {
	switch action {
	case ActionIndex, ActionShow, ActionCreate, ActionUpdate:
		return p.pdp.Accessible(ctx, rbac.ModuleClinical, rbac.ResourceEncounters, rbac.Action(action))
	case ActionDestroy:
		// Visit history is part of the medical record; never deletable.
		return false
	default:
		return false
	}
}

// Scope implements Policy.
func (p *EncounterPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "encounters.organization_id")
}

// NotePolicy gates clinical documentation. A note is editable only while in
// draft; signing is restricted to its author; cosigning requires a signed
// note and a different clinician.
type NotePolicy struct {
	pdp *rbac.Decider
}

// NewNotePolicy creates the clinical-notes adapter.
func NewNotePolicy(pdp *rbac.Decider) *NotePolicy {
	return &NotePolicy{pdp: pdp}
}

func (p *NotePolicy) can(ctx context.Context, action rbac.Action) bool {
	return p.pdp.Accessible(ctx, rbac.ModuleClinical, rbac.ResourceClinicalNotes, action)
}

// Allow implements Policy.
func (p *NotePolicy) Allow(ctx context.Context, action Action, record any) bool {
	note, _ := record.(*records.ClinicalNote)

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
		return record == nil || (note != nil && note.Status == records.NoteDraft)
	case ActionSign:
		if !p.can(ctx, rbac.ActionSign) {
			return false
		}
		if record == nil {
			return true
		}
		if note == nil || note.Status != records.NoteDraft {
			return false
		}
		user := tenant.Current(ctx).User
		return user != nil && user.ID == note.AuthorID
	case ActionCosign:
		if !p.can(ctx, rbac.ActionCosign) {
			return false
		}
		if record == nil {
			return true
		}
		if note == nil || note.Status != records.NoteSigned {
			return false
		}
		user := tenant.Current(ctx).User
		return user != nil && user.ID != note.AuthorID
	case ActionDestroy:
		// Clinical documentation is never deletable.
		return false
	default:
		return false
	}
}

// Scope implements Policy.
func (p *NotePolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "clinical_notes.organization_id")
}

// AttachmentPolicy gates uploaded documents. Only the uploader may remove an
// attachment, and only when their role allows destroy at all.
type AttachmentPolicy struct {
	pdp *rbac.Decider
}

// NewAttachmentPolicy creates the attachments adapter.
func NewAttachmentPolicy(pdp *rbac.Decider) *AttachmentPolicy {
	return &AttachmentPolicy{pdp: pdp}
}

// Allow implements Policy.
func (p *AttachmentPolicy) Allow(ctx context.Context, action Action, record any) bool {
	attachment, _ := record.(*records.Attachment)

	switch action {
	case ActionIndex, ActionShow, ActionCreate:
		return p.pdp.Accessible(ctx, rbac.ModuleClinical, rbac.ResourceAttachments, rbac.Action(action))
	case ActionDestroy:
		if !p.pdp.Accessible(ctx, rbac.ModuleClinical, rbac.ResourceAttachments, rbac.ActionDestroy) {
			return false
		}
		if record == nil {
			return true
		}
		if attachment == nil {
			return false
		}
		user := tenant.Current(ctx).User
		return user != nil && user.ID == attachment.UploadedByID
	default:
		return false
	}
}

// Scope implements Policy.
func (p *AttachmentPolicy) Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder {
	return tenantScope(ctx, q, "attachments.organization_id")
}

// Package records defines the row snapshots that policy adapters evaluate
// record-level predicates against. These are read models: the owning
// services load and persist them, policies only inspect state and
// authorship.
package records

import "time"

// ClaimStatus represents the lifecycle state of a claim
type ClaimStatus string

const (
	ClaimDraft     ClaimStatus = "draft"
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimPaid      ClaimStatus = "paid"
	ClaimVoided    ClaimStatus = "voided"
)

// Claim is an insurance claim owned by one organization
type Claim struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	PatientID      int64       `json:"patient_id"`
	CreatedByID    int64       `json:"created_by_id"`
	Status         ClaimStatus `json:"status"`
	TotalCents     int64       `json:"total_cents"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoided InvoiceStatus = "voided"
)

// Invoice is a patient-facing bill owned by one organization
type Invoice struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organization_id"`
	PatientID      int64         `json:"patient_id"`
	Status         InvoiceStatus `json:"status"`
	AmountCents    int64         `json:"amount_cents"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Payment records money received against an invoice
type Payment struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	InvoiceID      int64     `json:"invoice_id"`
	AmountCents    int64     `json:"amount_cents"`
	PostedAt       time.Time `json:"posted_at"`
}

// Patient is a person receiving care, owned by one organization
type Patient struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	CreatedAt      time.Time `json:"created_at"`
}

// Encounter is a single patient visit
type Encounter struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	PatientID      int64     `json:"patient_id"`
	ProviderID     int64     `json:"provider_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// NoteStatus represents the signing state of a clinical note
type NoteStatus string

const (
	NoteDraft    NoteStatus = "draft"
	NoteSigned   NoteStatus = "signed"
	NoteCosigned NoteStatus = "cosigned"
)

// ClinicalNote is clinical documentation for an encounter. Once signed it is
// immutable except for cosigning.
type ClinicalNote struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	EncounterID    int64      `json:"encounter_id"`
	AuthorID       int64      `json:"author_id"`
	Status         NoteStatus `json:"status"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	CosignedByID   *int64     `json:"cosigned_by_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Attachment is an uploaded document tied to an organization
type Attachment struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	UploadedByID   int64     `json:"uploaded_by_id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// AdjustmentCode is shared reference data; it is not tenant-owned.
// DeletedAt soft-deletes a code while keeping historic rows valid.
type AdjustmentCode struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// DiagnosisCode is shared reference data; it is not tenant-owned.
type DiagnosisCode struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

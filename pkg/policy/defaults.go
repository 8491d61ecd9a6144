package policy

import "github.com/careledger/careledger/pkg/rbac"

// DefaultRegistry builds a registry with every built-in adapter registered
// under its resource name. The names match the resources seeded by
// rbac.DefaultRules so gate lookups and permission rows line up.
func DefaultRegistry(pdp *rbac.Decider) *Registry {
	r := NewRegistry()
	r.Register(string(rbac.ResourceClaims), NewClaimPolicy(pdp))
	r.Register(string(rbac.ResourceInvoices), NewInvoicePolicy(pdp))
	r.Register(string(rbac.ResourcePayments), NewPaymentPolicy(pdp))
	r.Register(string(rbac.ResourcePatients), NewPatientPolicy(pdp))
	r.Register(string(rbac.ResourceEncounters), NewEncounterPolicy(pdp))
	r.Register(string(rbac.ResourceClinicalNotes), NewNotePolicy(pdp))
	r.Register(string(rbac.ResourceAttachments), NewAttachmentPolicy(pdp))
	r.Register(string(rbac.ResourceAdjustmentCodes), NewAdjustmentCodePolicy(pdp))
	r.Register(string(rbac.ResourceDiagnosisCodes), NewDiagnosisCodePolicy(pdp))
	r.Register(string(rbac.ResourceOrganizations), NewOrganizationPolicy(pdp))
	r.Register(string(rbac.ResourceMemberships), NewMembershipPolicy(pdp))
	r.Register(string(rbac.ResourceRoles), NewRolePolicy(pdp))
	return r
}

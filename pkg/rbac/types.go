package rbac

import (
	"context"
	"time"
)

// Module represents a feature module in the system
type Module string

const (
	ModuleClaims    Module = "claims"
	ModuleBilling   Module = "billing"
	ModuleClinical  Module = "clinical"
	ModulePatients  Module = "patients"
	ModuleAdmin     Module = "admin"
	ModuleReference Module = "reference"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceClaims          Resource = "claims"
	ResourceInvoices        Resource = "invoices"
	ResourcePayments        Resource = "payments"
	ResourcePatients        Resource = "patients"
	ResourceEncounters      Resource = "encounters"
	ResourceClinicalNotes   Resource = "clinical_notes"
	ResourceAttachments     Resource = "attachments"
	ResourceAdjustmentCodes Resource = "adjustment_codes"
	ResourceDiagnosisCodes  Resource = "diagnosis_codes"
	ResourceOrganizations   Resource = "organizations"
	ResourceMemberships     Resource = "memberships"
	ResourceRoles           Resource = "roles"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	ActionSubmit  Action = "submit"
	ActionVoid    Action = "void"
	ActionSign    Action = "sign"
	ActionCosign  Action = "cosign"
	ActionInvite  Action = "invite"
)

// Rule grants a role one action on one resource within one module. Absence
// of a rule means deny.
type Rule struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Module    Module    `json:"module"`
	Resource  Resource  `json:"resource"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the canonical cache key for the rule's tuple.
func (r Rule) Key() string {
	return ruleKey(r.Role, r.Module, r.Resource, r.Action)
}

func ruleKey(role string, module Module, resource Resource, action Action) string {
	return role + "|" + string(module) + "|" + string(resource) + "|" + string(action)
}

// RuleSource is the read contract the decision point depends on. Owned and
// mutated entirely outside this package.
type RuleSource interface {
	HasRule(ctx context.Context, role string, module Module, resource Resource, action Action) (bool, error)
}

// Built-in role names
const (
	RoleOrgAdmin  = "org_admin"
	RoleBiller    = "biller"
	RoleClinician = "clinician"
	RoleFrontDesk = "front_desk"
	RoleViewer    = "viewer"
)

// DefaultRules returns the rule set seeded for the built-in roles.
func DefaultRules() []Rule {
	grant := func(role string, module Module, resource Resource, actions ...Action) []Rule {
		rules := make([]Rule, 0, len(actions))
		for _, action := range actions {
			rules = append(rules, Rule{Role: role, Module: module, Resource: resource, Action: action})
		}
		return rules
	}

	var rules []Rule

	// org_admin: full access across modules except statically denied actions
	// (organization destroy, payment destroy) which no rule can re-enable.
	rules = append(rules, grant(RoleOrgAdmin, ModuleClaims, ResourceClaims,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy, ActionSubmit, ActionVoid)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleBilling, ResourceInvoices,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionVoid)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleBilling, ResourcePayments,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate)...)
	rules = append(rules, grant(RoleOrgAdmin, ModulePatients, ResourcePatients,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleClinical, ResourceEncounters,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleClinical, ResourceClinicalNotes,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionSign, ActionCosign)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleClinical, ResourceAttachments,
		ActionIndex, ActionShow, ActionCreate, ActionDestroy)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleAdmin, ResourceOrganizations,
		ActionShow, ActionUpdate)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleAdmin, ResourceMemberships,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy, ActionInvite)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleAdmin, ResourceRoles,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleReference, ResourceAdjustmentCodes,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleOrgAdmin, ModuleReference, ResourceDiagnosisCodes,
		ActionIndex, ActionShow)...)

	// biller: claims and billing workflows
	rules = append(rules, grant(RoleBiller, ModuleClaims, ResourceClaims,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionSubmit)...)
	rules = append(rules, grant(RoleBiller, ModuleBilling, ResourceInvoices,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate)...)
	rules = append(rules, grant(RoleBiller, ModuleBilling, ResourcePayments,
		ActionIndex, ActionShow, ActionCreate)...)
	rules = append(rules, grant(RoleBiller, ModulePatients, ResourcePatients,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleBiller, ModuleReference, ResourceAdjustmentCodes,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleBiller, ModuleReference, ResourceDiagnosisCodes,
		ActionIndex, ActionShow)...)

	// clinician: clinical documentation
	rules = append(rules, grant(RoleClinician, ModuleClinical, ResourceEncounters,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate)...)
	rules = append(rules, grant(RoleClinician, ModuleClinical, ResourceClinicalNotes,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionSign, ActionCosign)...)
	rules = append(rules, grant(RoleClinician, ModuleClinical, ResourceAttachments,
		ActionIndex, ActionShow, ActionCreate)...)
	rules = append(rules, grant(RoleClinician, ModulePatients, ResourcePatients,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleClinician, ModuleReference, ResourceDiagnosisCodes,
		ActionIndex, ActionShow)...)

	// front_desk: patient intake and scheduling-adjacent access
	rules = append(rules, grant(RoleFrontDesk, ModulePatients, ResourcePatients,
		ActionIndex, ActionShow, ActionCreate, ActionUpdate)...)
	rules = append(rules, grant(RoleFrontDesk, ModuleClinical, ResourceEncounters,
		ActionIndex, ActionShow, ActionCreate)...)

	// viewer: read-only
	rules = append(rules, grant(RoleViewer, ModuleClaims, ResourceClaims,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleViewer, ModuleBilling, ResourceInvoices,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleViewer, ModulePatients, ResourcePatients,
		ActionIndex, ActionShow)...)
	rules = append(rules, grant(RoleViewer, ModuleReference, ResourceDiagnosisCodes,
		ActionIndex, ActionShow)...)

	return rules
}

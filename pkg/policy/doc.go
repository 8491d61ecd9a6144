// Package policy implements the per-resource authorization adapters. Each
// adapter maps named actions onto permission decisions, optionally combined
// with record-level predicates (state gates, authorship gates) and static
// denials, and exposes a Scope that restricts list queries to records the
// current tenant may see.
//
// Adapters receive the record under decision when one exists. A nil record
// means a collection-level check (the gate runs these before a handler has
// loaded anything); actions whose predicates depend on record state are
// re-checked by the handler with the loaded record, and deny when the record
// is required but absent.
//
// Scopes fail closed: with no organization in context the query matches
// nothing. Reference-data adapters restrict to non-deleted rows instead of a
// tenant filter; that choice is explicit per adapter, never inferred.
package policy

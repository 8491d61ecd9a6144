// Package rbac implements the permission decision point: the allow-list
// lookup that answers whether the current tenant context may perform an
// action on a resource within a module.
//
// Rules are exact (role, module, resource, action) keys; a missing rule means
// deny. The canonical argument order everywhere in this codebase is
// (module, resource, action) — never reorder the triple at a call-site.
//
// The Decider reads the active tenant context:
//   - super-admin users are always allowed,
//   - a missing or inactive membership always denies,
//   - otherwise the membership's role is checked against the rule store.
//
// Decisions are memoized in an in-process expirable LRU since the rule table
// does not change mid-request; a Redis-backed Invalidator broadcasts purges
// when rules are mutated elsewhere.
package rbac

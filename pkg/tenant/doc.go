// Package tenant implements the tenant context machinery: the per-request
// context stack holding the acting user, organization and membership, the
// organization resolver that picks the active organization for a request,
// and the scope manager that establishes and guarantees teardown of a
// tenant scope around a unit of work.
//
// Every request gets its own Stack, carried on context.Context. Pushing a
// Context snapshot returns a Token; popping with anything but the matching
// token is a tenant-isolation defect and fails loudly. Business logic reads
// the active snapshot with tenant.Current(ctx).
//
// Usage:
//
//	err := scopes.RunInScope(ctx, user, r.Host, true, func(ctx context.Context) error {
//	    tc := tenant.Current(ctx)
//	    // tc.Organization is never nil inside a tenant-scoped body
//	    return doWork(ctx)
//	})
package tenant

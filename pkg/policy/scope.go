package policy

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/careledger/careledger/pkg/tenant"
)

// matchNothing is the fail-closed restriction: a query that returns no rows.
var matchNothing = sq.Expr("1 = 0")

// tenantScope restricts q to rows owned by the context organization.
// Super-admins see all tenants' rows; with no organization in context the
// query matches nothing.
func tenantScope(ctx context.Context, q sq.SelectBuilder, column string) sq.SelectBuilder {
	tc := tenant.Current(ctx)
	if tc.User != nil && tc.User.SuperAdmin {
		return q
	}
	if tc.Organization == nil {
		return q.Where(matchNothing)
	}
	return q.Where(sq.Eq{column: tc.Organization.ID})
}

// keptScope restricts q to non-deleted reference rows. Reference data is not
// tenant-owned, so there is deliberately no organization filter here.
func keptScope(q sq.SelectBuilder, column string) sq.SelectBuilder {
	return q.Where(column + " IS NULL")
}

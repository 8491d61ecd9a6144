// Package directory is the PostgreSQL store for users, organizations,
// memberships, and invitations. Service implements tenant.Directory, the
// read contract the resolver depends on, plus the write operations the
// admin surface needs.
package directory

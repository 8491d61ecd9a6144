// Package api is the HTTP surface. Routes are registered with
// "<resource>.<action>" names so the authorization gate can derive the
// policy decision tuple from the matched route, and handlers apply the
// resource's visibility scope to every tenant query.
package api

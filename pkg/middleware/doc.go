// Package middleware provides the HTTP request chain: request IDs,
// authentication, and the authorization gate that establishes the tenant
// scope and evaluates the policy decision for every protected route.
package middleware

// Package audit records security-relevant events: authorization denials,
// tenant resolution failures, and administrative changes. Events flow to the
// database-backed Store in production or the application log in development.
// Handlers reach the logger through the request context.
package audit

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/httputil"
	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/policy"
	"github.com/careledger/careledger/pkg/tenant"
)

// DefaultSkipPrefixes are route paths exempt from tenant resolution and the
// policy decision. They run with the acting user only; an organization may
// not be resolvable yet (login, invitation acceptance) or the caller is not
// a user at all (webhooks, probes).
var DefaultSkipPrefixes = []string{
	"/auth/",
	"/health",
	"/webhooks/",
	"/invitations/",
}

// Gate is the controller-level authorization chokepoint. Every protected
// route passes through it: the tenant scope is established for the duration
// of the handler, the policy decision is evaluated against the route's
// resource and action, and denials are answered uniformly.
type Gate struct {
	scopes   *tenant.ScopeManager
	registry *policy.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics

	skipPrefixes []string
}

// NewGate creates the gate. skipPrefixes defaults to DefaultSkipPrefixes
// when empty.
func NewGate(scopes *tenant.ScopeManager, registry *policy.Registry, logger *observability.Logger, metrics *observability.Metrics, skipPrefixes []string) *Gate {
	if len(skipPrefixes) == 0 {
		skipPrefixes = DefaultSkipPrefixes
	}
	return &Gate{
		scopes:       scopes,
		registry:     registry,
		logger:       logger,
		metrics:      metrics,
		skipPrefixes: skipPrefixes,
	}
}

// Middleware wraps next in the gate. Routes must be registered with mux
// names of the form "<resource>.<action>"; an unnamed protected route is
// denied.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := ActingUser(r.Context())

		if g.skipped(r.URL.Path) {
			err := g.scopes.RunInScope(r.Context(), user, r.Host, false, func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				g.logger.WithError(err).Error("scope setup failed on exempt route")
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		if user == nil {
			g.unauthenticated(w, r)
			return
		}

		resource, action, ok := routeTuple(r)
		if !ok {
			g.logger.WithField("path", r.URL.Path).Error("protected route has no resource.action name")
			g.deny(w, r, "", "")
			return
		}

		ctx, span := otel.Tracer("careledger/middleware").Start(r.Context(), "authz.gate")
		span.SetAttributes(
			attribute.String("authz.resource", resource),
			attribute.String("authz.action", action),
		)
		defer span.End()

		err := g.scopes.RunInScope(ctx, user, r.Host, true, func(ctx context.Context) error {
			allowed, err := g.registry.Allow(ctx, resource, policy.Action(action), nil)
			if err != nil {
				if errors.Is(err, policy.ErrNoPolicy) {
					g.logger.WithError(err).WithField("path", r.URL.Path).Error("no policy adapter for route")
				} else {
					g.logger.WithError(err).Error("policy evaluation failed")
				}
				allowed = false
			}
			span.SetAttributes(attribute.Bool("authz.allowed", allowed))
			if !allowed {
				g.deny(w, r.WithContext(ctx), resource, action)
				return nil
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return nil
		})
		if errors.Is(err, tenant.ErrNoOrganization) {
			g.unauthenticated(w, r)
			return
		}
		if err != nil {
			g.logger.WithError(err).Error("tenant scope setup failed")
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
}

func (g *Gate) skipped(path string) bool {
	for _, prefix := range g.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// unauthenticated answers requests with no usable tenant context. Browsers
// are redirected to sign-in; API clients get a 401.
func (g *Gate) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	httputil.WriteUnauthorized(w, "unauthenticated tenant context")
}

// deny answers a failed policy decision. The response never reveals whether
// the resource exists or which rule was missing.
func (g *Gate) deny(w http.ResponseWriter, r *http.Request, resource, action string) {
	if g.metrics != nil {
		g.metrics.DenialsTotal.WithLabelValues(resource, action).Inc()
	}
	if err := audit.LogDenied(r.Context(), r, resource, action, "not authorized"); err != nil {
		g.logger.WithError(err).Warn("failed to record denial audit event")
	}

	if wantsHTML(r) {
		target := r.Referer()
		if target == "" {
			target = "/"
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	httputil.WriteForbidden(w, "not authorized")
}

// routeTuple extracts the resource and action from the mux route name,
// e.g. "claims.index".
func routeTuple(r *http.Request) (resource, action string, ok bool) {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "", "", false
	}
	name := route.GetName()
	resource, action, found := strings.Cut(name, ".")
	if !found || resource == "" || action == "" {
		return "", "", false
	}
	return resource, action, true
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

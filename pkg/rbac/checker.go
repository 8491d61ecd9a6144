package rbac

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

const (
	// DefaultCacheSize bounds the memoized decision set.
	DefaultCacheSize = 4096

	// DefaultCacheTTL keeps memoized decisions well under the window in
	// which operators expect a rule change to take effect, even without the
	// Redis invalidation hook.
	DefaultCacheTTL = 30 * time.Second
)

// Decider is the permission decision point. It is side-effect-free from the
// caller's perspective and safe for concurrent use.
type Decider struct {
	source  RuleSource
	cache   *expirable.LRU[string, bool]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDecider creates a decision point over source. cacheSize <= 0 and
// ttl <= 0 select the defaults; metrics may be nil.
func NewDecider(source RuleSource, cacheSize int, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Decider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Decider{
		source:  source,
		cache:   expirable.NewLRU[string, bool](cacheSize, nil, ttl),
		logger:  logger,
		metrics: metrics,
	}
}

// Accessible reports whether the current tenant context may perform action on
// resource within module. Default is deny: no user, no active membership, no
// matching rule, or a rule-store failure all answer false.
func (d *Decider) Accessible(ctx context.Context, module Module, resource Resource, action Action) bool {
	tc := tenant.Current(ctx)

	if tc.User == nil {
		d.count(module, "deny")
		return false
	}
	if tc.User.SuperAdmin {
		d.count(module, "superadmin")
		return true
	}
	if tc.Membership == nil || !tc.Membership.Active {
		d.count(module, "deny")
		return false
	}

	allowed := d.lookup(ctx, tc.Membership.Role, module, resource, action)
	if allowed {
		d.count(module, "allow")
	} else {
		d.count(module, "deny")
	}
	return allowed
}

// lookup consults the memoized cache, then the rule store. Store failures
// deny and are logged; they must never fail open.
func (d *Decider) lookup(ctx context.Context, role string, module Module, resource Resource, action Action) bool {
	key := ruleKey(role, module, resource, action)
	if allowed, ok := d.cache.Get(key); ok {
		if d.metrics != nil {
			d.metrics.DecisionCacheHits.Inc()
		}
		return allowed
	}
	if d.metrics != nil {
		d.metrics.DecisionCacheMiss.Inc()
	}

	allowed, err := d.source.HasRule(ctx, role, module, resource, action)
	if err != nil {
		d.logger.WithError(err).
			WithField("role", role).
			WithField("module", string(module)).
			WithField("resource", string(resource)).
			WithField("action", string(action)).
			Error("permission rule lookup failed; denying")
		return false
	}

	d.cache.Add(key, allowed)
	return allowed
}

// Invalidate drops all memoized decisions. Called by the invalidation hook
// when permission rules change.
func (d *Decider) Invalidate() {
	d.cache.Purge()
}

func (d *Decider) count(module Module, outcome string) {
	if d.metrics != nil {
		d.metrics.DecisionsTotal.WithLabelValues(string(module), outcome).Inc()
	}
}

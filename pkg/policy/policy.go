package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
)

// Action names a policy operation. The CRUD set is shared; domain actions
// (submit, sign, cosign, void) are meaningful only to the adapters that
// declare them.
type Action string

const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	ActionSubmit  Action = "submit"
	ActionVoid    Action = "void"
	ActionSign    Action = "sign"
	ActionCosign  Action = "cosign"
	ActionInvite  Action = "invite"
)

// Policy is one resource type's authorization adapter.
type Policy interface {
	// Allow reports whether the current tenant context may perform action.
	// record carries the row under decision for record-level predicates and
	// may be nil for collection-level checks.
	Allow(ctx context.Context, action Action, record any) bool

	// Scope restricts q to the records visible to the current tenant
	// context. Never widens; with no organization in context the result
	// matches nothing.
	Scope(ctx context.Context, q sq.SelectBuilder) sq.SelectBuilder
}

// ErrNoPolicy indicates a resource type with no registered adapter. The gate
// treats it as deny.
var ErrNoPolicy = errors.New("policy: no adapter registered for resource")

// Registry dispatches by resource-type tag to the matching adapter.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds the adapter for a resource type, replacing any previous one.
func (r *Registry) Register(resource string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[resource] = p
}

// Get returns the adapter for a resource type.
func (r *Registry) Get(resource string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPolicy, resource)
	}
	return p, nil
}

// Allow resolves the adapter for resource and evaluates action against it.
func (r *Registry) Allow(ctx context.Context, resource string, action Action, record any) (bool, error) {
	p, err := r.Get(resource)
	if err != nil {
		return false, err
	}
	return p.Allow(ctx, action, record), nil
}

// Scope resolves the adapter for resource and applies its visibility
// restriction to q.
func (r *Registry) Scope(ctx context.Context, resource string, q sq.SelectBuilder) (sq.SelectBuilder, error) {
	p, err := r.Get(resource)
	if err != nil {
		return q, err
	}
	return p.Scope(ctx, q), nil
}

package tenant

import (
	"context"
	"sync"

	"github.com/careledger/careledger/pkg/contextkeys"
)

// Context is the immutable snapshot active for the current unit of work.
// A new snapshot replaces the previous one for the duration of a scope;
// snapshots are never mutated in place.
type Context struct {
	User         *User
	Organization *Organization
	Membership   *Membership
}

// IsZero reports whether no context has been established.
func (c Context) IsZero() bool {
	return c.User == nil && c.Organization == nil && c.Membership == nil
}

// Token identifies a single push and must be presented to the matching pop.
type Token uint64

// Stack holds the tenant context frames for one execution unit. Each inbound
// request owns exactly one Stack, carried on its context.Context, so writes
// from one request are never observable by another. Nested scopes within a
// request push and pop in strict LIFO order.
type Stack struct {
	mu     sync.Mutex
	frames []frame
	next   Token
}

type frame struct {
	token Token
	ctx   Context
}

// NewStack returns an empty stack for a fresh execution unit.
func NewStack() *Stack {
	return &Stack{next: 1}
}

// Push makes tc the active context and returns the token that the matching
// Pop must present.
func (s *Stack) Push(tc Context) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.next
	s.next++
	s.frames = append(s.frames, frame{token: tok, ctx: tc})
	return tok
}

// Pop restores the context that was active before the push identified by tok.
// A mismatched or repeated token returns ErrContextCorrupt and leaves the
// stack untouched; it signals a tenant-isolation bug, not a recoverable
// condition.
func (s *Stack) Pop(tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return ErrContextCorrupt
	}
	top := s.frames[len(s.frames)-1]
	if top.token != tok {
		return ErrContextCorrupt
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Current returns the active snapshot, or the zero Context when no scope has
// been established.
func (s *Stack) Current() Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return Context{}
	}
	return s.frames[len(s.frames)-1].ctx
}

// Depth returns the number of nested scopes currently active.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// NewRequestContext installs a fresh Stack on ctx. Called once per inbound
// unit of work, before any scope is established.
func NewRequestContext(ctx context.Context) context.Context {
	return contextkeys.WithTenantStack(ctx, NewStack())
}

// StackFrom returns the stack carried on ctx, or nil when the request context
// was never initialized.
func StackFrom(ctx context.Context) *Stack {
	stack, _ := ctx.Value(contextkeys.TenantStackKey).(*Stack)
	return stack
}

// Current is the leaf-level convenience accessor for the active snapshot.
// It returns the zero Context when ctx carries no stack or no scope is
// active, so callers downstream of the gate can rely on fail-closed reads.
func Current(ctx context.Context) Context {
	stack := StackFrom(ctx)
	if stack == nil {
		return Context{}
	}
	return stack.Current()
}

// Detach returns a context suitable for a background sub-unit spawned from
// the current request: a fresh stack seeded with the caller's active
// snapshot. The sub-unit's pushes and pops can then never corrupt the
// parent's stack.
func Detach(ctx context.Context) context.Context {
	seed := Current(ctx)
	stack := NewStack()
	if !seed.IsZero() {
		stack.Push(seed)
	}
	return contextkeys.WithTenantStack(ctx, stack)
}

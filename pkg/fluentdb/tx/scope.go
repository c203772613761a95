package tx

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Scope associates one logical call chain with at most one transaction
// context. It holds only the association; the context owns its handle and
// connection. Scopes may be read concurrently by chain stages, while
// bind/unbind/teardown are mutually exclusive.
type Scope struct {
	id uuid.UUID

	mu      sync.Mutex
	current *Context
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{id: uuid.New()}
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Bind associates a context with the scope. A second active context per
// scope is rejected; a terminal one is displaced.
func (s *Scope) Bind(tc *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() == StateActive {
		return ErrAlreadyActive
	}

	s.current = tc

	return nil
}

// Unbind removes the association if tc is the bound context.
func (s *Scope) Unbind(tc *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == tc {
		s.current = nil
	}
}

// Current returns the bound context when it is active, nil otherwise.
func (s *Scope) Current() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() == StateActive {
		return s.current
	}

	return nil
}

// Bound returns the bound context regardless of its state, nil when the
// scope is empty. Lifecycle calls use it so a finished transaction reports
// its terminal state instead of silently disappearing.
func (s *Scope) Bound() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Teardown rolls back a still-active bound context and clears the
// association. It is safe to call on an empty scope.
func (s *Scope) Teardown(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil && current.State() == StateActive {
		return current.Rollback(ctx)
	}

	return nil
}

type scopeKey struct{}

// WithScope installs a fresh synchronization scope on the chain and returns
// the derived context carrying it. The scope is owned by whoever installed
// it and lives no longer than the derived context.
func WithScope(ctx context.Context) (context.Context, *Scope) {
	scope := NewScope()
	return context.WithValue(ctx, scopeKey{}, scope), scope
}

// ScopeFrom returns the scope installed on the chain, if any.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	return scope, ok
}

// Ambient returns the chain's active transaction context, or nil when the
// chain has no scope or the scope has no active context. Statements without
// an ambient context fall back to auto-commit.
func Ambient(ctx context.Context) *Context {
	scope, ok := ScopeFrom(ctx)
	if !ok {
		return nil
	}

	return scope.Current()
}

// Package executor dispatches todo item actions to registered handlers.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// HandlerFunc performs one action type. It receives the full execute
// request and returns the action's payload.
type HandlerFunc func(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error)

// Registry routes items to handlers by action type and implements
// ports.Executor. Handlers carry the Perform phase; Gather and Verify
// are no-ops unless hooks are registered for the type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.ActionType]HandlerFunc
	gathers  map[domain.ActionType]func(ctx context.Context, req *ports.ExecuteRequest) error
	verifies map[domain.ActionType]func(ctx context.Context, req *ports.ExecuteRequest, res *ports.ExecuteResult) error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.ActionType]HandlerFunc),
		gathers:  make(map[domain.ActionType]func(context.Context, *ports.ExecuteRequest) error),
		verifies: make(map[domain.ActionType]func(context.Context, *ports.ExecuteRequest, *ports.ExecuteResult) error),
	}
}

// Register adds a Perform handler for an action type. Registering the
// same type twice overwrites the previous handler.
func (r *Registry) Register(t domain.ActionType, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = fn
}

// RegisterGather adds a pre-execution hook for an action type.
func (r *Registry) RegisterGather(t domain.ActionType, fn func(ctx context.Context, req *ports.ExecuteRequest) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gathers[t] = fn
}

// RegisterVerify adds a post-execution check for an action type.
func (r *Registry) RegisterVerify(t domain.ActionType, fn func(ctx context.Context, req *ports.ExecuteRequest, res *ports.ExecuteResult) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifies[t] = fn
}

// Gather implements ports.Executor.
func (r *Registry) Gather(ctx context.Context, req *ports.ExecuteRequest) error {
	r.mu.RLock()
	fn, ok := r.gathers[req.Item.Action.Type]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return fn(ctx, req)
}

// Perform implements ports.Executor.
func (r *Registry) Perform(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	r.mu.RLock()
	fn, ok := r.handlers[req.Item.Action.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for action type %q: %w",
			req.Item.Action.Type, domain.ErrPlanBlocked)
	}
	return fn(ctx, req)
}

// Verify implements ports.Executor.
func (r *Registry) Verify(ctx context.Context, req *ports.ExecuteRequest, res *ports.ExecuteResult) error {
	r.mu.RLock()
	fn, ok := r.verifies[req.Item.Action.Type]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return fn(ctx, req, res)
}

var _ ports.Executor = (*Registry)(nil)

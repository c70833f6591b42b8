// Package middleware provides composable StateStore wrappers: at-rest
// encryption and parameter masking for session snapshots.
package middleware

import "github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies middlewares right to left, so the first listed wraps
// outermost.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

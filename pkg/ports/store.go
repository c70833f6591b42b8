package ports

import (
	"context"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// StateStore persists session snapshots. This enables durable sessions
// ("stop & resume"): the manager saves a snapshot after every mutation
// and can rebuild a loop from one.
type StateStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.SessionState) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SessionState, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the known session IDs.
	List(ctx context.Context) ([]string, error)
}

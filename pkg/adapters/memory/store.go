// Package memory provides the in-memory ports.StateStore, suitable for
// tests and single-process deployments without durability needs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.SessionState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.SessionState),
	}
}

// Save persists a deep copy of the snapshot so later caller mutations
// never leak into the store.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	copied, err := deepCopy(state)
	if err != nil {
		return fmt.Errorf("copying session state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves a deep copy of the snapshot.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	s.mu.RLock()
	state, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	copied, err := deepCopy(state)
	if err != nil {
		return nil, fmt.Errorf("copying session state: %w", err)
	}
	return copied, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the known session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// deepCopy isolates snapshots through a JSON round trip, matching what a
// durable store would do on the wire.
func deepCopy(state *domain.SessionState) (*domain.SessionState, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var out domain.SessionState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

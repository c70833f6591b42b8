// Package control tracks who currently drives a session (user or AI) and
// the collaboration mode. Mode changes cascade into the checkpoint rule
// engine's active preset; the controller value is advisory for
// collaborating UIs and is never used as a lock.
package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// ModeHook is invoked after a successful mode change, outside any
// internal lock, so it may safely swap rule presets or publish events.
type ModeHook func(mode domain.Mode)

// ControllerHook is invoked when the controller flips.
type ControllerHook func(state domain.ControllerState)

// Manager owns one session's controller state.
// Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	state domain.ControllerState

	onMode       ModeHook
	onController ControllerHook
}

// Option configures the Manager.
type Option func(*Manager)

// WithModeHook registers the rule-preset cascade callback.
func WithModeHook(h ModeHook) Option {
	return func(m *Manager) { m.onMode = h }
}

// WithControllerHook registers a controller-change callback.
func WithControllerHook(h ControllerHook) Option {
	return func(m *Manager) { m.onController = h }
}

// NewManager creates a manager starting under user control in the given
// mode. An invalid mode falls back to assisted.
func NewManager(mode domain.Mode, opts ...Option) *Manager {
	if !mode.Valid() {
		mode = domain.ModeAssisted
	}
	m := &Manager{
		state: domain.ControllerState{
			Controller: domain.ControllerUser,
			Mode:       mode,
			ChangedAt:  time.Now(),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a copy of the current controller state.
func (m *Manager) State() domain.ControllerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Controller returns who currently owns the session.
func (m *Manager) Controller() domain.Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Controller
}

// Mode returns the current collaboration mode.
func (m *Manager) Mode() domain.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Mode
}

// SetMode changes the collaboration mode. The change takes effect for the
// next evaluated item only; it never reopens resolved checkpoints.
func (m *Manager) SetMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}

	m.mu.Lock()
	changed := m.state.Mode != mode
	m.state.Mode = mode
	m.state.ChangedAt = time.Now()
	hook := m.onMode
	m.mu.Unlock()

	if changed && hook != nil {
		hook(mode)
	}
	return nil
}

// SetController records the advisory controller value. The agent loop
// flips it to ai while executing unattended and back to user whenever a
// checkpoint opens or the loop goes idle or terminal.
func (m *Manager) SetController(c domain.Controller) {
	m.mu.Lock()
	changed := m.state.Controller != c
	m.state.Controller = c
	m.state.ChangedAt = time.Now()
	state := m.state
	hook := m.onController
	m.mu.Unlock()

	if changed && hook != nil {
		hook(state)
	}
}

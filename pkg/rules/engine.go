// Package rules implements the checkpoint rule engine: an ordered,
// swappable rule set deciding whether a todo item needs human approval
// before it executes. User rules are evaluated before the active preset;
// an item matching no rule fails safe toward asking the human.
package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// Verdict is the result of evaluating an item against the rule set.
type Verdict struct {
	Action domain.RuleAction
	// RuleID names the rule that decided, empty for the fail-safe default.
	RuleID string
}

// Engine holds the active preset plus user-added rules.
// Safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	preset PresetName
	base   []domain.CheckpointRule
	user   []domain.CheckpointRule
}

// NewEngine creates a rule engine with the preset for the given mode.
func NewEngine(mode domain.Mode) *Engine {
	name := PresetForMode(mode)
	return &Engine{
		preset: name,
		base:   presetRules(name),
	}
}

// Preset returns the name of the active preset.
func (e *Engine) Preset() PresetName {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.preset
}

// Evaluate walks user rules first, then the preset, and returns the first
// matching rule's action. No rule matching defaults to require_confirm.
// Rules are pure predicates; Evaluate never mutates the item.
func (e *Engine) Evaluate(item *domain.TodoItem) Verdict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.user {
		if r.Trigger.Matches(item) {
			return Verdict{Action: r.Action, RuleID: r.ID}
		}
	}
	for _, r := range e.base {
		if r.Trigger.Matches(item) {
			return Verdict{Action: r.Action, RuleID: r.ID}
		}
	}
	return Verdict{Action: domain.RuleRequireConfirm}
}

// SwitchModeRules atomically replaces the active preset for the given
// mode while preserving user-added rules. It only affects items evaluated
// after the call; resolved checkpoints are never reopened.
func (e *Engine) SwitchModeRules(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}
	name := PresetForMode(mode)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.preset = name
	e.base = presetRules(name)
	return nil
}

// AddUserRules validates and appends rules. A rule whose id already
// exists overwrites the existing rule in place, keeping its position.
func (e *Engine) AddUserRules(incoming []domain.CheckpointRule) error {
	for i, r := range incoming {
		if r.ID == "" || r.Name == "" {
			return fmt.Errorf("%w: rule %d needs id and name", domain.ErrValidation, i)
		}
		if r.Trigger.Empty() {
			// User rules outrank the preset; an unconstrained trigger
			// would match every item.
			return fmt.Errorf("%w: rule %q needs a trigger", domain.ErrValidation, r.ID)
		}
		if !r.Action.Valid() {
			return fmt.Errorf("%w: rule %q has unknown action %q", domain.ErrValidation, r.ID, r.Action)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range incoming {
		r.Source = domain.RuleSourceUser
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		replaced := false
		for i := range e.user {
			if e.user[i].ID == r.ID {
				e.user[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			e.user = append(e.user, r)
		}
	}
	return nil
}

// SetUserRules replaces the whole user rule list (used when restoring a
// session snapshot).
func (e *Engine) SetUserRules(rules []domain.CheckpointRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.user = append([]domain.CheckpointRule(nil), rules...)
}

// Rules returns a copy of the full evaluation order: user rules first,
// then the active preset.
func (e *Engine) Rules() []domain.CheckpointRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.CheckpointRule, 0, len(e.user)+len(e.base))
	out = append(out, e.user...)
	out = append(out, e.base...)
	return out
}

// UserRules returns a copy of just the user-added rules.
func (e *Engine) UserRules() []domain.CheckpointRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.CheckpointRule(nil), e.user...)
}

package domain

import (
	"slices"
	"time"
)

// RuleAction is the verdict a checkpoint rule produces for an item.
type RuleAction string

const (
	RuleAutoPass               RuleAction = "auto_pass"
	RuleRequireConfirm         RuleAction = "require_confirm"
	RuleRequireDetailedConfirm RuleAction = "require_detailed_confirm"
)

// Valid reports whether the action is one of the closed set.
func (a RuleAction) Valid() bool {
	switch a {
	case RuleAutoPass, RuleRequireConfirm, RuleRequireDetailedConfirm:
		return true
	}
	return false
}

// RequiresCheckpoint reports whether the verdict opens a checkpoint.
func (a RuleAction) RequiresCheckpoint() bool {
	return a == RuleRequireConfirm || a == RuleRequireDetailedConfirm
}

// RuleSource records where a rule came from.
type RuleSource string

const (
	RuleSourcePreset RuleSource = "preset"
	RuleSourceUser   RuleSource = "user"
)

// RuleTrigger is a pure predicate over the action described by a TodoItem.
// Empty fields match everything; set fields are AND-ed together.
type RuleTrigger struct {
	ActionTypes   []ActionType `json:"action_types,omitempty" mapstructure:"action_types"`
	ResourceTypes []string     `json:"resource_types,omitempty" mapstructure:"resource_types"`
	Risks         []RiskLevel  `json:"risks,omitempty" mapstructure:"risks"`

	// Destructive restricts the trigger to destructive actions when true.
	Destructive bool `json:"destructive,omitempty" mapstructure:"destructive"`

	// Declared restricts the trigger to items whose planner marked a
	// checkpoint as required.
	Declared bool `json:"declared,omitempty" mapstructure:"declared"`
}

// Empty reports whether the trigger has no constraints at all.
func (t RuleTrigger) Empty() bool {
	return len(t.ActionTypes) == 0 && len(t.ResourceTypes) == 0 &&
		len(t.Risks) == 0 && !t.Destructive && !t.Declared
}

// Matches evaluates the trigger against an item. Side-effect free.
func (t RuleTrigger) Matches(item *TodoItem) bool {
	if item == nil {
		return false
	}
	if len(t.ActionTypes) > 0 && !slices.Contains(t.ActionTypes, item.Action.Type) {
		return false
	}
	if len(t.ResourceTypes) > 0 && !slices.Contains(t.ResourceTypes, item.Action.ResourceType) {
		return false
	}
	if len(t.Risks) > 0 && !slices.Contains(t.Risks, item.Action.Risk) {
		return false
	}
	if t.Destructive && !item.Action.Type.Destructive() && item.Action.Risk != RiskHigh {
		return false
	}
	if t.Declared && (item.Checkpoint == nil || !item.Checkpoint.Required) {
		return false
	}
	return true
}

// CheckpointRule pairs a trigger with the action taken when it matches.
type CheckpointRule struct {
	ID        string      `json:"id" mapstructure:"id"`
	Name      string      `json:"name" mapstructure:"name"`
	Trigger   RuleTrigger `json:"trigger" mapstructure:"trigger"`
	Action    RuleAction  `json:"action" mapstructure:"action"`
	Source    RuleSource  `json:"source,omitempty" mapstructure:"-"`
	CreatedAt time.Time   `json:"created_at,omitempty" mapstructure:"-"`
}

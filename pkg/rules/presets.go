package rules

import (
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// PresetName identifies a baseline rule set.
type PresetName string

const (
	// PresetStep confirms every single item.
	PresetStep PresetName = "step"
	// PresetSmart is rule-driven: destructive and high-risk items need
	// detailed confirmation, writes need confirmation, reads pass.
	PresetSmart PresetName = "smart"
	// PresetAuto only stops for destructive or irreversible items.
	PresetAuto PresetName = "auto"
)

// PresetForMode maps a collaboration mode to its baseline preset.
func PresetForMode(mode domain.Mode) PresetName {
	switch mode {
	case domain.ModeManual:
		return PresetStep
	case domain.ModeAuto:
		return PresetAuto
	default:
		return PresetSmart
	}
}

// presetRules returns the ordered baseline rules for a preset. The
// returned slice is freshly allocated; callers may not share it.
func presetRules(name PresetName) []domain.CheckpointRule {
	switch name {
	case PresetStep:
		return []domain.CheckpointRule{
			{
				ID:      "step-destructive",
				Name:    "detailed confirmation for destructive steps",
				Trigger: domain.RuleTrigger{Destructive: true},
				Action:  domain.RuleRequireDetailedConfirm,
				Source:  domain.RuleSourcePreset,
			},
			{
				ID:      "step-all",
				Name:    "confirm every step",
				Trigger: domain.RuleTrigger{},
				Action:  domain.RuleRequireConfirm,
				Source:  domain.RuleSourcePreset,
			},
		}
	case PresetAuto:
		return []domain.CheckpointRule{
			{
				ID:      "auto-destructive",
				Name:    "destructive actions always stop",
				Trigger: domain.RuleTrigger{Destructive: true},
				Action:  domain.RuleRequireDetailedConfirm,
				Source:  domain.RuleSourcePreset,
			},
			{
				ID:      "auto-declared",
				Name:    "planner-declared checkpoints stop",
				Trigger: domain.RuleTrigger{Declared: true},
				Action:  domain.RuleRequireConfirm,
				Source:  domain.RuleSourcePreset,
			},
			{
				ID:      "auto-pass",
				Name:    "everything else runs unattended",
				Trigger: domain.RuleTrigger{},
				Action:  domain.RuleAutoPass,
				Source:  domain.RuleSourcePreset,
			},
		}
	default: // PresetSmart
		return []domain.CheckpointRule{
			{
				ID:      "smart-destructive",
				Name:    "detailed confirmation for destructive steps",
				Trigger: domain.RuleTrigger{Destructive: true},
				Action:  domain.RuleRequireDetailedConfirm,
				Source:  domain.RuleSourcePreset,
			},
			{
				ID:      "smart-declared",
				Name:    "planner-declared checkpoints stop",
				Trigger: domain.RuleTrigger{Declared: true},
				Action:  domain.RuleRequireConfirm,
				Source:  domain.RuleSourcePreset,
			},
			{
				ID:   "smart-writes",
				Name: "confirm create/update/execute",
				Trigger: domain.RuleTrigger{
					ActionTypes: []domain.ActionType{
						domain.ActionCreate, domain.ActionUpdate, domain.ActionExecute,
					},
				},
				Action: domain.RuleRequireConfirm,
				Source: domain.RuleSourcePreset,
			},
			{
				// High-risk reads were already caught by smart-destructive.
				ID:   "smart-reads",
				Name: "reads and navigation pass",
				Trigger: domain.RuleTrigger{
					ActionTypes: []domain.ActionType{domain.ActionQuery, domain.ActionNavigate},
				},
				Action: domain.RuleAutoPass,
				Source: domain.RuleSourcePreset,
			},
		}
	}
}

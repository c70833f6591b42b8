package intent

import (
	"strings"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// Thresholds map a combined confidence score to a pipeline action.
type Thresholds struct {
	AutoExecute float64
	Confirm     float64
	Clarify     float64
}

// DefaultThresholds are the stock score boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoExecute: 0.9, Confirm: 0.7, Clarify: 0.4}
}

// Assessment is the evaluator's verdict on a parsed intent.
type Assessment struct {
	Score   float64
	Action  domain.ConfidenceAction
	Missing []domain.EntityType
	// Ambiguous is set when two equally strong resource-name candidates
	// exist; it caps the action at clarify regardless of score.
	Ambiguous bool
	// Candidates holds the competing names when Ambiguous.
	Candidates []string
}

// requiredEntities lists what each category needs before it can run.
var requiredEntities = map[domain.IntentCategory][]domain.EntityType{
	domain.IntentCreate:   {domain.EntityResourceType},
	domain.IntentQuery:    {domain.EntityResourceType},
	domain.IntentUpdate:   {domain.EntityResourceType, domain.EntityResourceName},
	domain.IntentDelete:   {domain.EntityResourceType, domain.EntityResourceName},
	domain.IntentExecute:  {domain.EntityResourceName},
	domain.IntentNavigate: {domain.EntityResourceType},
}

// Evaluator combines entity confidence, completeness and contextual
// signals into a single score, then maps it through the thresholds.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an Evaluator. Zero thresholds use the defaults.
func NewEvaluator(t Thresholds) *Evaluator {
	if t.AutoExecute == 0 && t.Confirm == 0 && t.Clarify == 0 {
		t = DefaultThresholds()
	}
	return &Evaluator{thresholds: t}
}

// Score components. Each required entity contributes a positive term, so
// adding a matching required entity can only raise the score.
const (
	categoryBase  = 0.3
	requiredShare = 0.6
	contextBonus  = 0.05
)

// Evaluate scores the intent and maps the score to an action.
func (e *Evaluator) Evaluate(intent *domain.ParsedIntent, rctx Context) Assessment {
	if intent == nil {
		return Assessment{Action: domain.ConfidenceReject}
	}

	var score float64
	required := requiredEntities[intent.Category]
	var missing []domain.EntityType

	if intent.Category != domain.IntentUnknown {
		score += categoryBase
	}

	if len(required) > 0 {
		share := requiredShare / float64(len(required))
		for _, want := range required {
			if best := bestConfidence(intent, want); best > 0 {
				score += share * best
			} else {
				missing = append(missing, want)
			}
		}
	}

	score += e.contextBonus(intent, rctx)
	if score > 1 {
		score = 1
	}

	ambiguous, candidates := detectAmbiguity(intent)

	action := e.mapAction(score)
	if intent.Category == domain.IntentUnknown && action == domain.ConfidenceAutoExecute {
		action = domain.ConfidenceClarify
	}
	if ambiguous && (action == domain.ConfidenceAutoExecute || action == domain.ConfidenceConfirm) {
		action = domain.ConfidenceClarify
	}

	return Assessment{
		Score:      score,
		Action:     action,
		Missing:    missing,
		Ambiguous:  ambiguous,
		Candidates: candidates,
	}
}

func (e *Evaluator) mapAction(score float64) domain.ConfidenceAction {
	switch {
	case score >= e.thresholds.AutoExecute:
		return domain.ConfidenceAutoExecute
	case score >= e.thresholds.Confirm:
		return domain.ConfidenceConfirm
	case score >= e.thresholds.Clarify:
		return domain.ConfidenceClarify
	default:
		return domain.ConfidenceReject
	}
}

// contextBonus rewards agreement between the utterance and the current
// UI situation. Bonuses are additive but small so they can nudge an
// action over a boundary, never dominate it.
func (e *Evaluator) contextBonus(intent *domain.ParsedIntent, rctx Context) float64 {
	var bonus float64
	if rctx.Page != "" {
		if typeEnt := intent.Entity(domain.EntityResourceType); typeEnt != nil &&
			strings.Contains(strings.ToLower(rctx.Page), typeEnt.ResourceType) {
			bonus += contextBonus
		}
	}
	if rctx.Selection != "" {
		if nameEnt := intent.Entity(domain.EntityResourceName); nameEnt != nil &&
			strings.EqualFold(rctx.Selection, nameEnt.Value) {
			bonus += contextBonus
		}
	}
	return bonus
}

// bestConfidence returns the strongest confidence among entities of the
// given type, 0 when absent.
func bestConfidence(intent *domain.ParsedIntent, t domain.EntityType) float64 {
	var best float64
	for _, e := range intent.Entities {
		if e.Type == t && e.Confidence > best {
			best = e.Confidence
		}
	}
	return best
}

// detectAmbiguity reports two resource-name candidates whose confidences
// are within the ambiguity window of each other.
func detectAmbiguity(intent *domain.ParsedIntent) (bool, []string) {
	names := intent.EntitiesOf(domain.EntityResourceName)
	if len(names) < 2 {
		return false, nil
	}
	var top, second *domain.EntityMatch
	for i := range names {
		e := &names[i]
		switch {
		case top == nil || e.Confidence > top.Confidence:
			second = top
			top = e
		case second == nil || e.Confidence > second.Confidence:
			second = e
		}
	}
	if top != nil && second != nil && top.Confidence-second.Confidence <= ambiguityWindow {
		return true, []string{top.Value, second.Value}
	}
	return false, nil
}

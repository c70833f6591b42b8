package intent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/fuzzy"
)

// DefaultMaxRounds bounds how often the dialog asks before giving up.
const DefaultMaxRounds = 3

// Outcome is the result of one clarification round.
type Outcome struct {
	Intent     *domain.ParsedIntent
	Assessment Assessment

	// State is the continuing clarification, nil when resolved.
	State *domain.ClarificationState

	// GaveUp is set when the round budget is exhausted or the human
	// declined; the pipeline reports "unable to understand" instead of
	// looping forever.
	GaveUp bool
}

// Dialog generates targeted questions for insufficiently confident
// intents and folds the human's replies back in.
type Dialog struct {
	eval      *Evaluator
	maxRounds int
}

// DialogOption configures the Dialog.
type DialogOption func(*Dialog)

// WithMaxRounds overrides the clarification round budget.
func WithMaxRounds(n int) DialogOption {
	return func(d *Dialog) {
		if n > 0 {
			d.maxRounds = n
		}
	}
}

// NewDialog creates a Dialog bound to an evaluator.
func NewDialog(eval *Evaluator, opts ...DialogOption) *Dialog {
	d := &Dialog{eval: eval, maxRounds: DefaultMaxRounds}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Begin opens a clarification for an intent the evaluator flagged. The
// question type is chosen from what is actually wrong: ambiguity first,
// then a missing resource name with known candidates, then missing
// parameters, then a plain operation confirmation.
func (d *Dialog) Begin(intent *domain.ParsedIntent, assessment Assessment, rctx Context) *domain.ClarificationState {
	state := &domain.ClarificationState{
		Round:     0,
		MaxRounds: d.maxRounds,
		Intent:    intent,
	}

	switch {
	case assessment.Ambiguous:
		state.Type = domain.ClarifyDisambiguation
		state.Options = assessment.Candidates
		state.Question = fmt.Sprintf("Did you mean %s?", orList(assessment.Candidates))

	case missingType(assessment, domain.EntityResourceName):
		candidates := candidateNames(intent, rctx)
		if len(candidates) > 0 {
			state.Type = domain.ClarifyResourceSelection
			state.Options = candidates
			state.Question = fmt.Sprintf("Which one do you mean? %s", orList(candidates))
		} else {
			state.Type = domain.ClarifyParameterConfirm
			state.Question = "Which resource should this apply to? Please give its name."
		}

	case missingType(assessment, domain.EntityResourceType):
		state.Type = domain.ClarifyParameterConfirm
		state.Question = "What kind of resource is this about (prompt, dataset, model, task, evaluator)?"

	default:
		state.Type = domain.ClarifyOperationConfirm
		state.Question = fmt.Sprintf("Should I go ahead with: %s?", intent.RawText)
	}

	return state
}

// ProcessResponse folds the human's reply into the held intent and
// re-evaluates. Each call consumes one round; when rounds run out
// without reaching at least confirm confidence, the dialog gives up.
func (d *Dialog) ProcessResponse(state *domain.ClarificationState, reply string, rctx Context) Outcome {
	if state == nil || state.Intent == nil {
		return Outcome{GaveUp: true, Assessment: Assessment{Action: domain.ConfidenceReject}}
	}

	state.Round++
	reply = strings.TrimSpace(reply)
	intent := state.Intent

	switch state.Type {
	case domain.ClarifyDisambiguation, domain.ClarifyResourceSelection:
		if choice, ok := resolveChoice(reply, state.Options); ok {
			setResolvedName(intent, choice, rctx)
		}

	case domain.ClarifyParameterConfirm:
		if reply != "" {
			foldFreeText(intent, reply, rctx)
		}

	case domain.ClarifyOperationConfirm:
		if isNegative(reply) {
			return Outcome{Intent: intent, GaveUp: true,
				Assessment: Assessment{Action: domain.ConfidenceReject}}
		}
		if isAffirmative(reply) {
			// The confirmation answers the operation, not which resource;
			// a still ambiguous reference falls through to its own round.
			assessment := d.eval.Evaluate(intent, rctx)
			if !assessment.Ambiguous {
				assessment.Action = domain.ConfidenceAutoExecute
				return Outcome{Intent: intent, Assessment: assessment}
			}
		}
	}

	assessment := d.eval.Evaluate(intent, rctx)
	if assessment.Action == domain.ConfidenceAutoExecute || assessment.Action == domain.ConfidenceConfirm {
		return Outcome{Intent: intent, Assessment: assessment}
	}

	if state.Exhausted() {
		return Outcome{Intent: intent, Assessment: assessment, GaveUp: true}
	}

	// Still unclear: re-derive the next question from the fresh
	// assessment and keep going.
	next := d.Begin(intent, assessment, rctx)
	next.Round = state.Round
	next.MaxRounds = state.MaxRounds
	return Outcome{Intent: intent, Assessment: assessment, State: next}
}

func missingType(a Assessment, t domain.EntityType) bool {
	for _, m := range a.Missing {
		if m == t {
			return true
		}
	}
	return false
}

// resolveChoice matches a reply against the offered options: option
// number first, then fuzzy name matching.
func resolveChoice(reply string, options []string) (string, bool) {
	if reply == "" || len(options) == 0 {
		return "", false
	}
	if n, err := strconv.Atoi(reply); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	if m, ok := fuzzy.Best(reply, options, 0); ok {
		return m.Candidate, true
	}
	return "", false
}

// setResolvedName replaces all name candidates with the human's pick at
// full confidence.
func setResolvedName(intent *domain.ParsedIntent, name string, rctx Context) {
	resolved := domain.EntityMatch{
		Type:       domain.EntityResourceName,
		Value:      name,
		Confidence: 1.0,
	}
	for _, r := range rctx.Resources {
		if strings.EqualFold(r.Name, name) {
			resolved.ResourceType = r.Type
			resolved.ResourceID = r.ID
			break
		}
	}

	kept := intent.Entities[:0]
	for _, e := range intent.Entities {
		if e.Type != domain.EntityResourceName {
			kept = append(kept, e)
		}
	}
	intent.Entities = append(kept, resolved)
}

// foldFreeText re-recognizes the reply and merges any new entities into
// the intent, preferring the fresh ones.
func foldFreeText(intent *domain.ParsedIntent, reply string, rctx Context) {
	for _, e := range Recognize(reply, rctx) {
		if e.Type == domain.EntityAction {
			continue // the operation was already established
		}
		replaceEntity(intent, e)
	}
	// A bare reply that matched nothing still names the resource.
	if intent.Entity(domain.EntityResourceName) == nil {
		if m, ok := fuzzy.Best(reply, resourceNames(rctx, typeOf(intent)), 0); ok {
			setResolvedName(intent, m.Candidate, rctx)
		}
	}
}

func replaceEntity(intent *domain.ParsedIntent, e domain.EntityMatch) {
	for i := range intent.Entities {
		if intent.Entities[i].Type == e.Type {
			intent.Entities[i] = e
			return
		}
	}
	intent.Entities = append(intent.Entities, e)
}

// candidateNames returns up to five known names to offer as choices.
func candidateNames(intent *domain.ParsedIntent, rctx Context) []string {
	names := resourceNames(rctx, typeOf(intent))
	if len(names) > 5 {
		names = names[:5]
	}
	return names
}

func typeOf(intent *domain.ParsedIntent) string {
	if e := intent.Entity(domain.EntityResourceType); e != nil {
		return e.ResourceType
	}
	return ""
}

func resourceNames(rctx Context, typ string) []string {
	var names []string
	for _, r := range rctx.resourcesOf(typ) {
		names = append(names, r.Name)
	}
	return names
}

func orList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}

func isAffirmative(reply string) bool {
	switch strings.ToLower(reply) {
	case "y", "yes", "ok", "sure", "confirm", "是", "好", "确认", "同意":
		return true
	}
	return false
}

func isNegative(reply string) bool {
	switch strings.ToLower(reply) {
	case "n", "no", "cancel", "stop", "否", "不", "取消", "不同意":
		return true
	}
	return false
}

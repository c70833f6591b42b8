package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// ruleFloor is the confidence below which the rule path is treated as a
// miss and the model path is consulted.
const defaultRuleFloor = 0.55

// Parser is the hybrid rule/model intent parser. Strategies are an
// ordered chain: the deterministic rule path first, then the injected
// model capability on a miss.
type Parser struct {
	llm    ports.LLMInvoker
	floor  float64
	logger *slog.Logger
}

// ParserOption configures the Parser.
type ParserOption func(*Parser)

// WithLLM injects the model fallback. Without it the parser is
// rules-only.
func WithLLM(llm ports.LLMInvoker) ParserOption {
	return func(p *Parser) { p.llm = llm }
}

// WithRuleFloor overrides the rule-path confidence floor.
func WithRuleFloor(floor float64) ParserOption {
	return func(p *Parser) { p.floor = floor }
}

// WithParserLogger sets a structured logger.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = logger }
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		floor:  defaultRuleFloor,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseByRules attempts the deterministic path: alias tables plus fuzzy
// resource matching. Returns nil when no rule fires with acceptable
// confidence.
func (p *Parser) ParseByRules(text string, rctx Context) *domain.ParsedIntent {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	category, _ := RecognizeCategory(text)
	entities := Recognize(text, rctx)
	if category == domain.IntentUnknown && len(entities) == 0 {
		return nil
	}

	intent := &domain.ParsedIntent{
		Category:   category,
		Entities:   entities,
		Confidence: matchQuality(entities),
		RawText:    text,
		Source:     domain.IntentSourceRules,
	}
	if intent.Confidence < p.floor {
		return nil
	}
	return intent
}

// Parse runs the strategy chain: rules first, then the model fallback.
// A malformed model response is a recoverable failure; callers receive
// domain.ErrUnparsable, never a panic or a raw provider error.
func (p *Parser) Parse(ctx context.Context, text string, rctx Context) (*domain.ParsedIntent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrValidation)
	}

	if intent := p.ParseByRules(text, rctx); intent != nil {
		return intent, nil
	}

	if p.llm == nil {
		return nil, fmt.Errorf("%w: no rule matched and no model configured", domain.ErrUnparsable)
	}

	intent, err := p.parseByModel(ctx, text, rctx)
	if err != nil {
		p.logger.Warn("model intent parse failed", "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnparsable, err)
	}
	return intent, nil
}

// matchQuality scores the rule path by what the aliases and the fuzzy
// matcher found: the mean entity confidence scaled by how much of the
// expected structure (action + resource type) is present.
func matchQuality(entities []domain.EntityMatch) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	var hasAction, hasType bool
	for _, e := range entities {
		sum += e.Confidence
		switch e.Type {
		case domain.EntityAction:
			hasAction = true
		case domain.EntityResourceType:
			hasType = true
		}
	}
	coverage := 0.5
	if hasAction {
		coverage += 0.25
	}
	if hasType {
		coverage += 0.25
	}
	return (sum / float64(len(entities))) * coverage
}

// modelPayload is the structured response shape requested from the model.
type modelPayload struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Entities   []struct {
		Type         string  `json:"type"`
		ResourceType string  `json:"resource_type"`
		Value        string  `json:"value"`
		Confidence   float64 `json:"confidence"`
	} `json:"entities"`
}

func (p *Parser) parseByModel(ctx context.Context, text string, rctx Context) (*domain.ParsedIntent, error) {
	user := fmt.Sprintf("Utterance: %s", text)
	if rctx.Page != "" {
		user = fmt.Sprintf("Current page: %s\n%s", rctx.Page, user)
	}
	if len(rctx.Resources) > 0 {
		var names []string
		for _, r := range rctx.Resources {
			names = append(names, fmt.Sprintf("%s(%s)", r.Name, r.Type))
		}
		user = fmt.Sprintf("%s\nKnown resources: %s", user, strings.Join(names, ", "))
	}

	raw, err := p.llm.Invoke(ctx, intentSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("invoking model: %w", err)
	}

	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	category := domain.IntentCategory(payload.Category)
	if !category.Valid() {
		category = domain.IntentUnknown
	}

	intent := &domain.ParsedIntent{
		Category:   category,
		Confidence: clamp01(payload.Confidence),
		RawText:    text,
		Source:     domain.IntentSourceModel,
	}
	for _, e := range payload.Entities {
		intent.Entities = append(intent.Entities, domain.EntityMatch{
			Type:         domain.EntityType(e.Type),
			ResourceType: e.ResourceType,
			Value:        e.Value,
			Confidence:   clamp01(e.Confidence),
		})
	}
	return intent, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSONObject finds the first JSON object in the text, handling
// optional markdown code fences around it.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

const intentSystemPrompt = `You are an intent parser for a prompt engineering tool.

Resource types: prompt, dataset, model, task, evaluator.
Categories: create, query, update, delete, execute, navigate, unknown.
Entity types: action, resource_type, resource_name, parameter.

Given a user utterance (possibly in Chinese), respond with ONLY a JSON
object in this exact shape:

{
  "category": "create",
  "confidence": 0.8,
  "entities": [
    {"type": "resource_type", "resource_type": "task", "value": "task", "confidence": 0.9},
    {"type": "resource_name", "resource_type": "task", "value": "nightly-eval", "confidence": 0.7}
  ]
}

Only list entities you actually see. Use "unknown" when the utterance is
not a command about these resources.`

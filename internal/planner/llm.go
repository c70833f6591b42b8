// Package planner provides Planner implementations: a model-backed one
// that decomposes goals through an LLM, and a scripted one for demos
// and tests.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// LLMPlanner asks a model to decompose a goal into ordered steps.
type LLMPlanner struct {
	llm    ports.LLMInvoker
	logger *slog.Logger
}

// LLMOption configures the LLMPlanner.
type LLMOption func(*LLMPlanner)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(p *LLMPlanner) { p.logger = logger }
}

// NewLLMPlanner creates a model-backed planner.
func NewLLMPlanner(llm ports.LLMInvoker, opts ...LLMOption) *LLMPlanner {
	p := &LLMPlanner{llm: llm, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// planItem is the wire shape one step arrives in.
type planItem struct {
	Content string `json:"content"`
	Action  struct {
		Type         string         `json:"type"`
		ResourceType string         `json:"resource_type"`
		ResourceName string         `json:"resource_name"`
		Params       map[string]any `json:"params"`
		Risk         string         `json:"risk"`
	} `json:"action"`
	Checkpoint *struct {
		Required bool   `json:"required"`
		Message  string `json:"message"`
	} `json:"checkpoint"`
	Critical bool `json:"critical"`
}

// Plan implements ports.Planner.
func (p *LLMPlanner) Plan(ctx context.Context, req ports.PlanRequest) (*ports.Plan, error) {
	began := time.Now()

	user := fmt.Sprintf("Goal: %s", req.Goal)
	if len(req.Context) > 0 {
		if raw, err := json.Marshal(req.Context); err == nil {
			user = fmt.Sprintf("%s\nContext: %s", user, raw)
		}
	}

	raw, err := p.llm.Invoke(ctx, planSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("invoking planning model: %w", err)
	}

	jsonStr := extractJSONArray(raw)
	if jsonStr == "" {
		p.logger.Warn("planner response carried no JSON array", "session_id", req.SessionID)
		return nil, fmt.Errorf("no plan array in model response")
	}

	var wire []planItem
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if len(wire) == 0 {
		return nil, fmt.Errorf("model produced an empty plan")
	}

	plan := &ports.Plan{Latency: time.Since(began)}
	var warnings []string
	for i, w := range wire {
		item := &domain.TodoItem{
			ID:      fmt.Sprintf("step-%d", i+1),
			Content: strings.TrimSpace(w.Content),
			Status:  domain.ItemPending,
			Action: domain.ActionSpec{
				Type:         domain.ActionType(w.Action.Type),
				ResourceType: w.Action.ResourceType,
				ResourceName: w.Action.ResourceName,
				Params:       w.Action.Params,
				Risk:         domain.RiskLevel(w.Action.Risk),
			},
			Critical: w.Critical,
		}
		if item.Content == "" {
			item.Content = fmt.Sprintf("step %d", i+1)
		}
		if !validActionType(item.Action.Type) {
			warnings = append(warnings,
				fmt.Sprintf("step %d has unknown action type %q, treating as execute", i+1, w.Action.Type))
			item.Action.Type = domain.ActionExecute
		}
		if w.Checkpoint != nil {
			item.Checkpoint = &domain.CheckpointSpec{
				Required: w.Checkpoint.Required,
				Message:  w.Checkpoint.Message,
			}
		}
		plan.Items = append(plan.Items, item)
	}
	plan.Warnings = warnings
	plan.Analysis = fmt.Sprintf("decomposed into %d steps", len(plan.Items))
	return plan, nil
}

func validActionType(t domain.ActionType) bool {
	switch t {
	case domain.ActionCreate, domain.ActionQuery, domain.ActionUpdate,
		domain.ActionDelete, domain.ActionExecute, domain.ActionNavigate:
		return true
	}
	return false
}

// extractJSONArray finds the first JSON array in the text, stripping
// markdown code fences when present.
func extractJSONArray(s string) string {
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

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

const planSystemPrompt = `You are a planner for a prompt engineering tool.
Decompose the user's goal into an ordered list of executable steps.

Resource types: prompt, dataset, model, task, evaluator.
Action types: create, query, update, delete, execute, navigate.
Risk levels: low, medium, high.

Respond with ONLY a JSON array in this exact shape:

[
  {
    "content": "create the evaluation task",
    "action": {"type": "create", "resource_type": "task", "resource_name": "nightly-eval", "params": {}, "risk": "low"},
    "checkpoint": {"required": false, "message": ""},
    "critical": false
  }
]

Mark a step critical when later steps cannot succeed without it. Declare
a checkpoint on steps a careful human would want to approve.`

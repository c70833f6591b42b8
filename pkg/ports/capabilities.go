package ports

import (
	"context"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// PlanRequest asks the planner to decompose a goal into a todo list.
type PlanRequest struct {
	SessionID string
	Goal      string
	Context   map[string]any
}

// Plan is the planner's output. Items arrive in execution order with
// pending status; the loop assigns ids to items that lack one.
type Plan struct {
	Items    []*domain.TodoItem
	Analysis string
	Warnings []string
	Usage    domain.TokenUsage
	Latency  time.Duration
}

// Planner turns a goal into an ordered todo list. A nil/empty plan or an
// error is a recoverable planning failure; the loop stays retryable.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*Plan, error)
}

// ExecuteRequest carries one item's execution inputs. Feedback and
// SelectedResourceID are set when a human approved a checkpoint with
// additional input.
type ExecuteRequest struct {
	SessionID          string
	Item               *domain.TodoItem
	Feedback           string
	SelectedResourceID string
	Context            map[string]any
}

// ExecuteResult is the payload of a performed action.
type ExecuteResult struct {
	Payload any
	Usage   domain.TokenUsage
}

// Executor performs one item's action in three phases: gather required
// inputs, perform the side effect, verify the outcome. Each phase may
// block on network or model calls; these are the loop's only suspension
// points. An executor that cannot continue the plan at all should return
// an error wrapping domain.ErrPlanBlocked.
type Executor interface {
	Gather(ctx context.Context, req *ExecuteRequest) error
	Perform(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error)
	Verify(ctx context.Context, req *ExecuteRequest, res *ExecuteResult) error
}

// LLMInvoker is the opaque model capability used by the intent parser's
// fallback path and by LLM-backed planners.
type LLMInvoker interface {
	Invoke(ctx context.Context, system, user string) (string, error)
}

// LLMInvokerFunc adapts a function to the LLMInvoker interface.
type LLMInvokerFunc func(ctx context.Context, system, user string) (string, error)

// Invoke implements LLMInvoker.
func (f LLMInvokerFunc) Invoke(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

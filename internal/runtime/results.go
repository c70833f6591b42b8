package runtime

import (
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// StartResult is the boundary response of Loop.Start. It carries either
// the created plan or a structured error, never both.
type StartResult struct {
	Success      bool              `json:"success"`
	Status       domain.LoopStatus `json:"status"`
	Todo         *domain.TodoList  `json:"todo,omitempty"`
	GoalAnalysis string            `json:"goal_analysis,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	Usage        domain.TokenUsage `json:"usage"`
	LatencyMS    int64             `json:"latency_ms"`

	// Checkpoint is set when execution suspended on the first waiting
	// item before Start returned.
	Checkpoint *domain.Checkpoint `json:"checkpoint,omitempty"`

	Err *domain.CodedError `json:"error,omitempty"`
}

// StepResult describes where the loop stands after a step or a
// checkpoint resolution.
type StepResult struct {
	Status domain.LoopStatus `json:"status"`

	// Done is set when every item is terminal and the loop finished.
	Done bool `json:"done"`

	// Waiting is set when a checkpoint is open; Checkpoint carries it.
	Waiting    bool               `json:"waiting"`
	Checkpoint *domain.Checkpoint `json:"checkpoint,omitempty"`

	// CurrentItem is the active or most recently settled item.
	CurrentItem *domain.TodoItem `json:"current_item,omitempty"`

	Note string `json:"note,omitempty"`
}

// ApproveRequest carries the human's approval of an open checkpoint.
// ID accepts either the checkpoint id or the owning item id.
type ApproveRequest struct {
	ID                 string `json:"id"`
	Feedback           string `json:"feedback,omitempty"`
	SelectedResourceID string `json:"selected_resource_id,omitempty"`
}

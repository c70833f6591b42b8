package domain

import (
	"fmt"
	"time"
)

// ItemStatus is the lifecycle status of a single TodoItem.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemWaiting    ItemStatus = "waiting" // Checkpoint open, needs human resolution
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemSkipped    ItemStatus = "skipped"
)

// Terminal reports whether the status is final. Terminal items are never
// mutated again, only read.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemSkipped
}

// ActionType categorizes what an item does to a resource.
type ActionType string

const (
	ActionCreate   ActionType = "create"
	ActionQuery    ActionType = "query"
	ActionUpdate   ActionType = "update"
	ActionDelete   ActionType = "delete"
	ActionExecute  ActionType = "execute"
	ActionNavigate ActionType = "navigate"
)

// Destructive reports whether the action is irreversible. Destructive
// actions require confirmation even in fully autonomous mode.
func (a ActionType) Destructive() bool {
	return a == ActionDelete
}

// RiskLevel is the planner's assessment of how dangerous an item is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ActionSpec describes the concrete operation a TodoItem performs.
type ActionSpec struct {
	Type         ActionType     `json:"type"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceName string         `json:"resource_name,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Risk         RiskLevel      `json:"risk,omitempty"`
}

// CheckpointOption is one choice offered to the human at a checkpoint.
type CheckpointOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CheckpointSpec is the planner-declared checkpoint descriptor on an item.
// Whether a checkpoint actually opens is decided by the rule engine; the
// spec contributes the message and options shown to the human.
type CheckpointSpec struct {
	Required bool               `json:"required"`
	Message  string             `json:"message,omitempty"`
	Options  []CheckpointOption `json:"options,omitempty"`
}

// ItemResult is the outcome payload of a completed or failed item.
type ItemResult struct {
	Success     bool      `json:"success"`
	Payload     any       `json:"payload,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// TodoItem is one executable unit of a plan. Items are created during
// planning and never deleted; status transitions are the only mutation.
type TodoItem struct {
	ID      string     `json:"id"`
	Content string     `json:"content"`
	Action  ActionSpec `json:"action"`
	Status  ItemStatus `json:"status"`

	// Checkpoint is the planner-declared descriptor (may be nil).
	Checkpoint *CheckpointSpec `json:"checkpoint,omitempty"`

	// CheckpointID is set when the item enters waiting, so the derived
	// Checkpoint view stays stable for one waiting episode.
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// Critical marks an item whose failure blocks the rest of the plan.
	Critical bool `json:"critical,omitempty"`

	Attempts   int         `json:"attempts,omitempty"`
	SkipReason string      `json:"skip_reason,omitempty"`
	Result     *ItemResult `json:"result,omitempty"`
}

// Checkpoint is the ephemeral view materialized when a waiting item is
// reported. It is derived from the owning TodoItem, never stored alone.
type Checkpoint struct {
	ID        string             `json:"id"`
	ItemID    string             `json:"item_id"`
	Reason    string             `json:"reason"`
	Options   []CheckpointOption `json:"options,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// MaterializeCheckpoint builds the reportable view for a waiting item.
// Returns nil if the item is not waiting.
func MaterializeCheckpoint(item *TodoItem) *Checkpoint {
	if item == nil || item.Status != ItemWaiting {
		return nil
	}
	reason := "confirmation required before executing this step"
	var opts []CheckpointOption
	if item.Checkpoint != nil {
		if item.Checkpoint.Message != "" {
			reason = item.Checkpoint.Message
		}
		opts = item.Checkpoint.Options
	}
	return &Checkpoint{
		ID:        item.CheckpointID,
		ItemID:    item.ID,
		Reason:    reason,
		Options:   opts,
		CreatedAt: time.Now(),
	}
}

// DeriveCheckpointID produces the checkpoint id for an item entering
// waiting: item id plus the creation timestamp in unix milliseconds.
func DeriveCheckpointID(itemID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", itemID, at.UnixMilli())
}

// TodoList is the ordered plan for one goal. Membership and order are
// immutable after planning; items are mutated in place as execution
// proceeds.
type TodoList struct {
	Items []*TodoItem `json:"items"`
}

// NextPending returns the first pending item in order, or nil.
func (l *TodoList) NextPending() *TodoItem {
	for _, it := range l.Items {
		if it.Status == ItemPending {
			return it
		}
	}
	return nil
}

// Active returns the single in_progress or waiting item, or nil.
// The engine maintains the invariant that at most one exists.
func (l *TodoList) Active() *TodoItem {
	for _, it := range l.Items {
		if it.Status == ItemInProgress || it.Status == ItemWaiting {
			return it
		}
	}
	return nil
}

// ItemByID returns the item with the given id, or nil.
func (l *TodoList) ItemByID(id string) *TodoItem {
	for _, it := range l.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Done reports whether every item has reached a terminal status.
func (l *TodoList) Done() bool {
	for _, it := range l.Items {
		if !it.Status.Terminal() {
			return false
		}
	}
	return true
}

// Progress returns completed-ish (terminal) and total counts.
func (l *TodoList) Progress() (terminal, total int) {
	for _, it := range l.Items {
		if it.Status.Terminal() {
			terminal++
		}
	}
	return terminal, len(l.Items)
}

// Clone returns a deep copy so readers can't mutate the engine's list.
func (l *TodoList) Clone() *TodoList {
	if l == nil {
		return nil
	}
	out := &TodoList{Items: make([]*TodoItem, len(l.Items))}
	for i, it := range l.Items {
		cp := *it
		if it.Checkpoint != nil {
			spec := *it.Checkpoint
			spec.Options = append([]CheckpointOption(nil), it.Checkpoint.Options...)
			cp.Checkpoint = &spec
		}
		if it.Result != nil {
			res := *it.Result
			cp.Result = &res
		}
		if it.Action.Params != nil {
			cp.Action.Params = make(map[string]any, len(it.Action.Params))
			for k, v := range it.Action.Params {
				cp.Action.Params[k] = v
			}
		}
		out.Items[i] = &cp
	}
	return out
}

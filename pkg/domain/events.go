package domain

import "time"

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventStatusChanged       EventType = "status_changed"
	EventPlanCreated         EventType = "plan_created"
	EventStepCompleted       EventType = "step_completed"
	EventCheckpointCreated   EventType = "checkpoint_created"
	EventCheckpointResolved  EventType = "checkpoint_resolved"
	EventControlTransferred  EventType = "control_transferred"
	EventIntentParsed        EventType = "intent_parsed"
	EventUnderstandingUpdate EventType = "understanding_updated"
)

// Event is one state transition published through the sync layer.
// Delivery is best-effort and at-most-once; losing a subscriber never
// blocks the agent loop.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, sessionID string, payload any) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now(), Payload: payload}
}

// StatusChange is the payload of EventStatusChanged.
type StatusChange struct {
	From LoopStatus `json:"from"`
	To   LoopStatus `json:"to"`
}

// PlanCreated is the payload of EventPlanCreated.
type PlanCreated struct {
	Goal      string `json:"goal"`
	ItemCount int    `json:"item_count"`
	Analysis  string `json:"analysis,omitempty"`
}

// StepCompleted is the payload of EventStepCompleted. It is also emitted
// for failed and skipped steps; Status disambiguates.
type StepCompleted struct {
	ItemID  string     `json:"item_id"`
	Content string     `json:"content"`
	Status  ItemStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
}

// CheckpointCreated is the payload of EventCheckpointCreated.
type CheckpointCreated struct {
	Checkpoint *Checkpoint `json:"checkpoint"`
	RuleID     string      `json:"rule_id,omitempty"`
	Action     RuleAction  `json:"action"`
}

// CheckpointResolved is the payload of EventCheckpointResolved.
type CheckpointResolved struct {
	CheckpointID string `json:"checkpoint_id"`
	ItemID       string `json:"item_id"`
	Approved     bool   `json:"approved"`
	Reason       string `json:"reason,omitempty"`
}

// ControlTransferred is the payload of EventControlTransferred.
type ControlTransferred struct {
	Controller Controller `json:"controller"`
	Mode       Mode       `json:"mode"`
}

// IntentParsed is the payload of EventIntentParsed.
type IntentParsed struct {
	Category   IntentCategory   `json:"category"`
	Confidence float64          `json:"confidence"`
	Source     IntentSource     `json:"source"`
	Action     ConfidenceAction `json:"action"`
}

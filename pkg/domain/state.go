package domain

import "time"

// LoopStatus is the agent loop's state machine status.
type LoopStatus string

const (
	LoopIdle      LoopStatus = "idle"
	LoopPlanning  LoopStatus = "planning"
	LoopExecuting LoopStatus = "executing"
	LoopWaiting   LoopStatus = "waiting" // Checkpoint open
	LoopCompleted LoopStatus = "completed"
	LoopFailed    LoopStatus = "failed"
)

// Terminal reports whether the loop has finished.
func (s LoopStatus) Terminal() bool {
	return s == LoopCompleted || s == LoopFailed
}

// TokenUsage accumulates model token consumption across planner and
// intent calls for one session.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// Understanding is the shared, read-mostly projection of what the AI
// currently believes about the session. It is derived from loop state,
// never a source of truth.
type Understanding struct {
	Summary           string    `json:"summary"`
	CurrentGoal       string    `json:"current_goal"`
	SelectedResources []string  `json:"selected_resources,omitempty"`
	CurrentPhase      string    `json:"current_phase"`
	Confidence        float64   `json:"confidence"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SessionState is the persistable snapshot of one collaboration session.
// It is saved after every mutation so a session survives process restart.
type SessionState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	ModelID   string `json:"model_id,omitempty"`

	Status     LoopStatus      `json:"status"`
	Goal       string          `json:"goal,omitempty"`
	Todo       *TodoList       `json:"todo,omitempty"`
	Control    ControllerState `json:"control"`
	UserRules  []CheckpointRule `json:"user_rules,omitempty"`
	Usage      TokenUsage      `json:"usage"`
	Understand Understanding   `json:"understanding"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Sealed carries the encrypted payload when an encrypting store
	// middleware is active; empty for plaintext snapshots.
	Sealed string `json:"sealed,omitempty"`
}

// NewSessionState creates a fresh idle snapshot in assisted mode.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		Status:    LoopIdle,
		Control: ControllerState{
			Controller: ControllerUser,
			Mode:       ModeAssisted,
			ChangedAt:  time.Now(),
		},
		UpdatedAt: time.Now(),
	}
}

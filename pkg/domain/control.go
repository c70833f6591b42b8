package domain

import "time"

// Controller identifies who currently drives the session. The value is
// advisory for collaborating UIs; it is not a lock.
type Controller string

const (
	ControllerUser Controller = "user"
	ControllerAI   Controller = "ai"
)

// Mode is the collaboration autonomy level of a session.
type Mode string

const (
	// ModeManual forces a checkpoint before every step.
	ModeManual Mode = "manual"
	// ModeAssisted lets the rule engine decide per step.
	ModeAssisted Mode = "assisted"
	// ModeAuto only checkpoints destructive or irreversible steps.
	ModeAuto Mode = "auto"
)

// Valid reports whether the mode is one of the closed set.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeAssisted, ModeAuto:
		return true
	}
	return false
}

// ControllerState is the per-session record of controller and mode.
type ControllerState struct {
	Controller Controller `json:"controller"`
	Mode       Mode       `json:"mode"`
	ChangedAt  time.Time  `json:"changed_at"`
}

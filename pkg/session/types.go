package session

import (
	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
)

// Aliases so embedders can name the loop's request and result types
// without reaching into internal packages.
type (
	StartResult    = runtime.StartResult
	StepResult     = runtime.StepResult
	ApproveRequest = runtime.ApproveRequest
)

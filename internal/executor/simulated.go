package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// NewSimulated returns a registry with handlers that fake every action
// type. Used by the interactive demo and local serving when no real
// backend is wired.
func NewSimulated() *Registry {
	reg := NewRegistry()

	describe := func(verb string) HandlerFunc {
		return func(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
			action := req.Item.Action
			target := action.ResourceName
			if target == "" {
				target = action.ResourceType
			}
			payload := map[string]any{
				"action":   verb,
				"resource": target,
				"at":       time.Now().Format(time.RFC3339),
			}
			if req.Feedback != "" {
				payload["feedback"] = req.Feedback
			}
			return &ports.ExecuteResult{Payload: payload}, nil
		}
	}

	reg.Register(domain.ActionCreate, describe("created"))
	reg.Register(domain.ActionQuery, describe("queried"))
	reg.Register(domain.ActionUpdate, describe("updated"))
	reg.Register(domain.ActionDelete, describe("deleted"))
	reg.Register(domain.ActionExecute, describe("executed"))
	reg.Register(domain.ActionNavigate, describe("navigated"))

	reg.RegisterVerify(domain.ActionDelete, func(ctx context.Context, req *ports.ExecuteRequest, res *ports.ExecuteResult) error {
		if req.Item.Action.ResourceName == "" && req.SelectedResourceID == "" {
			return fmt.Errorf("delete without a resolved resource name")
		}
		return nil
	})

	return reg
}

package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/executor"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/planner"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/memory"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := executor.NewRegistry()
	for _, at := range []domain.ActionType{
		domain.ActionCreate, domain.ActionQuery, domain.ActionUpdate,
		domain.ActionDelete, domain.ActionExecute, domain.ActionNavigate,
	} {
		reg.Register(at, func(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
			return &ports.ExecuteResult{Payload: "ok"}, nil
		})
	}

	manager := session.NewManager(memory.NewStore(), planner.NewScripted(), reg)
	return NewServer(manager, "test")
}

func TestStartCreatesSessionAndPlans(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-1",
		"goal":       "创建一个测试任务",
		"mode":       "manual",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.LoopWaiting, result.Status)
	require.NotNil(t, result.Checkpoint)
}

func TestApproveDrivesToCompletion(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	started, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-2",
		"goal":       "创建一个测试任务",
		"mode":       "manual",
	})
	require.NoError(t, err)
	require.NotNil(t, started.Checkpoint)

	step, err := s.handleApprove(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-2",
		"id":         started.Checkpoint.ID,
	})
	require.NoError(t, err)
	require.True(t, step.Waiting)

	step, err = s.handleApprove(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-2",
		"id":         step.Checkpoint.ID,
	})
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, domain.LoopCompleted, step.Status)
}

func TestRejectSkipsItem(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	started, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-3",
		"goal":       "创建一个测试任务",
		"mode":       "manual",
	})
	require.NoError(t, err)
	require.NotNil(t, started.Checkpoint)

	// Rejecting without a reason fails before any mutation.
	_, err = s.handleReject(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-3",
		"id":         started.Checkpoint.ItemID,
	})
	require.Error(t, err)

	step, err := s.handleReject(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-3",
		"id":         started.Checkpoint.ItemID,
		"reason":     "用户不同意",
	})
	require.NoError(t, err)
	assert.NotEqual(t, domain.LoopFailed, step.Status)
}

func TestStatusReportsView(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-4",
		"goal":       "创建一个测试任务",
		"mode":       "manual",
	})
	require.NoError(t, err)

	status, err := s.handleStatus(ctx, mcp.CallToolRequest{}, map[string]any{
		"session_id": "mcp-4",
	})
	require.NoError(t, err)
	assert.Equal(t, "mcp-4", status.SessionID)
	assert.Equal(t, domain.LoopWaiting, status.Status)
	assert.Equal(t, domain.ModeManual, status.Mode)
	require.NotNil(t, status.Todo)
	require.NotNil(t, status.Checkpoint)
}

func TestStepUnknownSession(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleStep(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"session_id": "missing",
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

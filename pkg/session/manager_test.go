package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/memory"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

// goalPlanner derives a one-or-two item plan from the goal text so tests
// can steer checkpoint behavior through action types.
type goalPlanner struct{}

func (goalPlanner) Plan(ctx context.Context, req ports.PlanRequest) (*ports.Plan, error) {
	items := []*domain.TodoItem{{
		ID:      "step-1",
		Content: req.Goal,
		Action:  domain.ActionSpec{Type: domain.ActionCreate, ResourceType: "task"},
	}}
	if category, ok := req.Context["category"].(string); ok && category == "delete" {
		items[0].Action.Type = domain.ActionDelete
	}
	return &ports.Plan{Items: items, Analysis: "one step"}, nil
}

type recordingExecutor struct {
	mu        sync.Mutex
	performed []string
}

func (e *recordingExecutor) Gather(ctx context.Context, req *ports.ExecuteRequest) error { return nil }

func (e *recordingExecutor) Perform(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.performed = append(e.performed, req.Item.ID)
	return &ports.ExecuteResult{}, nil
}

func (e *recordingExecutor) Verify(ctx context.Context, req *ports.ExecuteRequest, res *ports.ExecuteResult) error {
	return nil
}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	m := session.NewManager(store, goalPlanner{}, &recordingExecutor{}, opts...)
	return m, store
}

func TestManager_CreateAndGet(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "s-1", domain.ModeManual)
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID())
	assert.Equal(t, domain.LoopIdle, s.Status())

	got, err := m.Get("s-1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	// The initial snapshot was persisted.
	state, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeManual, state.Control.Mode)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_CreateGeneratesID(t *testing.T) {
	m, _ := newManager(t)
	s, err := m.Create(context.Background(), "", domain.ModeAuto)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
}

func TestManager_DuplicateLiveSessionRejected(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "dup", domain.ModeManual)
	require.NoError(t, err)
	s.Start(ctx, "创建一个测试任务", nil) // now waiting, non-terminal

	_, err = m.Create(ctx, "dup", domain.ModeManual)
	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestManager_StartPersistsAndResumes(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "persist", domain.ModeManual)
	require.NoError(t, err)

	res := s.Start(ctx, "创建一个测试任务", nil)
	require.True(t, res.Success)
	require.Equal(t, domain.LoopWaiting, res.Status)
	require.NotNil(t, res.Checkpoint)

	// A fresh manager over the same store resumes at the checkpoint.
	exec := &recordingExecutor{}
	m2 := session.NewManager(store, goalPlanner{}, exec)
	resumed, err := m2.Resume(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, domain.LoopWaiting, resumed.Status())
	assert.Equal(t, domain.ModeManual, resumed.Control().Mode())

	cp := resumed.Loop().OpenCheckpoint()
	require.NotNil(t, cp)
	step, err := resumed.Approve(ctx, runtime.ApproveRequest{ID: cp.ID})
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, []string{"step-1"}, exec.performed)
}

func TestManager_ResumeUnknownSession(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Resume(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_RemoveDeletesSnapshot(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "gone", domain.ModeAuto)
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, "gone"))

	assert.False(t, m.Has("gone"))
	_, err = store.Load(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Removing twice is fine.
	assert.NoError(t, m.Remove(ctx, "gone"))
}

func TestManager_ListMergesLiveAndStored(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "live-1", domain.ModeAuto)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "stored-1", domain.NewSessionState("stored-1")))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "live-1")
	assert.Contains(t, ids, "stored-1")
}

func TestSession_ModeSwitchCascadesToRules(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "cascade", domain.ModeAuto)
	require.NoError(t, err)

	require.NoError(t, s.SetMode(ctx, domain.ModeManual))

	// Under manual rules even a plain create requires confirmation.
	verdict := s.Rules().Evaluate(&domain.TodoItem{
		Action: domain.ActionSpec{Type: domain.ActionCreate, ResourceType: "task"},
	})
	assert.True(t, verdict.Action.RequiresCheckpoint())
}

func TestSession_AddRulesPersisted(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "ruled", domain.ModeAuto)
	require.NoError(t, err)

	err = s.AddRules(ctx, []domain.CheckpointRule{{
		ID:     "no-model-writes",
		Name:   "confirm model changes",
		Action: domain.RuleRequireConfirm,
		Trigger: domain.RuleTrigger{
			ResourceTypes: []string{"model"},
		},
	}})
	require.NoError(t, err)

	state, err := store.Load(ctx, "ruled")
	require.NoError(t, err)
	require.Len(t, state.UserRules, 1)
	assert.Equal(t, "no-model-writes", state.UserRules[0].ID)
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// RunStateStoreContract runs a suite of tests verifying that a StateStore
// implementation adheres to the interface contract. Store adapters call
// this from their own test files.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewSessionState(sessionID)
		state.Goal = "create a test task"
		state.Status = domain.LoopExecuting
		state.Todo = &domain.TodoList{Items: []*domain.TodoItem{
			{ID: "item-1", Content: "collect parameters", Status: domain.ItemCompleted},
			{ID: "item-2", Content: "create the task", Status: domain.ItemPending,
				Action: domain.ActionSpec{Type: domain.ActionCreate, ResourceType: "task"}},
		}}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Goal, loaded.Goal)
		assert.Equal(t, domain.LoopExecuting, loaded.Status)
		require.NotNil(t, loaded.Todo)
		require.Len(t, loaded.Todo.Items, 2)
		assert.Equal(t, domain.ItemCompleted, loaded.Todo.Items[0].Status)
		assert.Equal(t, domain.ActionCreate, loaded.Todo.Items[1].Action.Type)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionState(id1))
		_ = store.Save(ctx, id2, domain.NewSessionState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})

	t.Run("Isolation", func(t *testing.T) {
		state := domain.NewSessionState(sessionID)
		state.Todo = &domain.TodoList{Items: []*domain.TodoItem{
			{ID: "iso-1", Status: domain.ItemPending},
		}}
		require.NoError(t, store.Save(ctx, sessionID, state))

		// Mutating what we saved must not leak into the store.
		state.Todo.Items[0].Status = domain.ItemFailed

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemPending, loaded.Todo.Items[0].Status)

		_ = store.Delete(ctx, sessionID)
	})
}

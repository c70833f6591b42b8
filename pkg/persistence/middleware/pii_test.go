package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/persistence/middleware"
)

func TestPIIMiddleware_MasksItemParams(t *testing.T) {
	underlying := NewMockStore()
	mw := middleware.NewPIIMiddleware([]string{"password", "api_key"})
	secure := mw(underlying)
	ctx := context.Background()

	state := domain.NewSessionState("pii")
	state.Todo = &domain.TodoList{Items: []*domain.TodoItem{{
		ID: "step-1",
		Action: domain.ActionSpec{
			Type: domain.ActionCreate,
			Params: map[string]any{
				"name":         "nightly-eval",
				"api_key":      "sk-very-secret",
				"provider_cfg": map[string]any{"password": "hunter2", "region": "us"},
			},
		},
	}}}

	require.NoError(t, secure.Save(ctx, "pii", state))

	// The live state is untouched.
	assert.Equal(t, "sk-very-secret", state.Todo.Items[0].Action.Params["api_key"])

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	params := stored.Todo.Items[0].Action.Params
	assert.Equal(t, "nightly-eval", params["name"])
	assert.Equal(t, "***", params["api_key"])

	nested := params["provider_cfg"].(map[string]any)
	assert.Equal(t, "***", nested["password"])
	assert.Equal(t, "us", nested["region"])
}

package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretState(id string) *domain.SessionState {
	state := domain.NewSessionState(id)
	state.Goal = "删除生产数据集"
	state.Todo = &domain.TodoList{Items: []*domain.TodoItem{{
		ID:     "step-1",
		Action: domain.ActionSpec{Type: domain.ActionDelete, ResourceName: "prod-dataset"},
		Status: domain.ItemPending,
	}}}
	return state
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := NewMockStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secure := mw(underlying)
	ctx := context.Background()

	original := secretState("enc-session")
	require.NoError(t, secure.Save(ctx, "enc-session", original))

	// The raw store sees only the envelope: no goal, no plan, just the
	// sealed blob and monitoring fields.
	stored, err := underlying.Load(ctx, "enc-session")
	require.NoError(t, err)
	assert.Empty(t, stored.Goal)
	assert.Nil(t, stored.Todo)
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, original.Status, stored.Status)

	// Through the middleware everything comes back.
	loaded, err := secure.Load(ctx, "enc-session")
	require.NoError(t, err)
	assert.Equal(t, "删除生产数据集", loaded.Goal)
	require.NotNil(t, loaded.Todo)
	assert.Equal(t, "prod-dataset", loaded.Todo.Items[0].Action.ResourceName)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, "rot", secretState("rot")))

	// New active key with the old one as fallback still reads old data.
	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "rot")
	require.NoError(t, err)
	assert.Equal(t, "删除生产数据集", loaded.Goal)

	// Re-saving re-seals with the new key, locking the old-only reader out.
	require.NoError(t, newStore.Save(ctx, "rot", loaded))
	_, err = oldStore.Load(ctx, "rot")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlaintextSnapshot(t *testing.T) {
	underlying := NewMockStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	// A snapshot written without encryption must not pass as trusted.
	require.NoError(t, underlying.Save(ctx, "plain", secretState("plain")))
	_, err := secure.Load(ctx, "plain")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

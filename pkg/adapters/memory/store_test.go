package memory_test

import (
	"testing"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/memory"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

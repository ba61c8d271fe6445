package memory_test

import (
	"testing"

	"github.com/arcnem/agentgraph/internal/adapters/memory"
	"github.com/arcnem/agentgraph/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.New()
	ports.RunGraphStoreContract(t, store, store)
}

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunRunStoreContract(t, store)
}

func TestMemoryStore_SaveIsolatesRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	run := domain.NewRunRecord("r1", "quiz", "main", nil)
	require.NoError(t, store.Save(ctx, run))

	run.Steps = append(run.Steps, domain.StepRecord{Prompt: "ask"})
	run.Status = domain.RunFailed

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Steps)
	assert.Equal(t, domain.RunRunning, loaded.Status)
}

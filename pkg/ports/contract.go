package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		run := domain.NewRunRecord(runID, "quiz", "main", map[string]any{"topic": "go"})
		run.Steps = append(run.Steps, domain.StepRecord{
			Prompt: "ask",
			Visit:  1,
			Text:   "> question(text): why?\nnext: done",
			Data:   map[string]any{"question": "why?"},
			Counts: map[string]int{"choices": 4},
			Next:   "done",
		})
		run.Status = domain.RunCompleted

		err := store.Save(ctx, run)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, runID, loaded.ID)
		assert.Equal(t, domain.RunCompleted, loaded.Status)
		assert.Equal(t, "go", loaded.Inputs["topic"])
		require.Len(t, loaded.Steps, 1)
		assert.Equal(t, "why?", loaded.Steps[0].Data["question"])
		assert.Equal(t, 4, loaded.Steps[0].Counts["choices"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewRunRecord(runID, "quiz", "main", nil))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, domain.NewRunRecord(id1, "quiz", "main", nil))
		_ = store.Save(ctx, domain.NewRunRecord(id2, "quiz", "main", nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

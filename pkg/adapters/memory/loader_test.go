package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/domain"
)

func TestNewFromPrompts(t *testing.T) {
	first := &domain.Prompt{Name: "ask"}
	second := &domain.Prompt{Name: "check"}

	loader, err := memory.NewFromPrompts("quiz", first, second)
	require.NoError(t, err)

	prog, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "quiz", prog.Name)
	assert.Equal(t, "ask", prog.Entries[domain.DefaultEntry])
	assert.Equal(t, []string{"ask", "check"}, prog.PromptNames())

	_, err = memory.NewFromPrompts("dup", first, first)
	assert.Error(t, err)
}

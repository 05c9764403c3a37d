package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/domain"
)

func TestOutputsMarkdown(t *testing.T) {
	md := OutputsMarkdown(map[string]any{"b": []any{1, 2}, "a": "blue"})
	assert.Equal(t, "## Outputs\n\n- **a**: blue\n- **b**: `[1,2]`\n", md)
	assert.Contains(t, OutputsMarkdown(nil), "_none_")
}

func TestRunMarkdown(t *testing.T) {
	rec := domain.NewRunRecord("r1", "quiz", "main", nil)
	rec.Steps = []domain.StepRecord{{Prompt: "ask", Visit: 1, Text: "> a(text): x\n", Next: "done"}}
	rec.Status = domain.RunCompleted
	rec.Outputs = map[string]any{"a": "x"}

	md := RunMarkdown(rec)
	assert.Contains(t, md, "# Run r1")
	assert.Contains(t, md, "## 1. ask (visit 1) → done")
	assert.Contains(t, md, "```\n> a(text): x\n```")
	assert.Contains(t, md, "- **a**: x")
}

func TestRenderer_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	out, err := NewRenderer(&buf)("# title")
	require.NoError(t, err)
	assert.Equal(t, "# title", out)

	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|___/")
	assert.NotContains(t, buf.String(), "\x1b[")
}

package loam

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/internal/testutils"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/schema"
)

func seed(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	_, repo := testutils.SeedRepo(t, files)
	l := New(loam.NewTypedRepository[Metadata](repo))
	l.Name = "essay"
	return l
}

func TestLoader_Load(t *testing.T) {
	l := seed(t, map[string]string{
		"program.md": `---
inputs:
  subject: string
formats:
  tone:
    kind: enum
    values: [dry, warm]
---
Essay writing.`,
		"main.md": `---
fields:
  - name: topic
  - name: tone
    format: tone
channels:
  - kind: input
    target: topic
    source: subject
flows:
  - label: write
    prompt: write
    limit: 1
---
Pick a topic.

Keep it short.`,
		"write.md": `---
fields:
  - name: paragraphs
    range: "[1:3]"
    format: text(80)
channels:
  - kind: dataflow
    target: paragraphs
    prompt: main
    source: topic
---
Write the essay.`,
	})

	prog, err := l.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, schema.ValidateProgram(prog))

	assert.Equal(t, "essay", prog.Name)
	assert.Equal(t, "Essay writing.", prog.Desc)
	assert.Equal(t, map[string]string{"main": "main"}, prog.Entries)
	assert.Equal(t, "string", prog.Inputs["subject"])

	main := prog.Prompts["main"]
	require.NotNil(t, main)
	assert.Equal(t, []string{"Pick a topic.", "Keep it short."}, main.Desc)
	assert.Equal(t, "tone", main.Fields[1].Format.Ref)
	assert.Equal(t, domain.Flow{Label: "write", Kind: domain.FlowControl, Prompt: "write", Limit: 1}, main.Flows[0])

	write := prog.Prompts["write"]
	require.NotNil(t, write)
	assert.Equal(t, &domain.Range{Min: 1, Max: 3}, write.Fields[0].Range)
	assert.Equal(t, 80, write.Fields[0].Format.Length)
	assert.Equal(t, domain.ChannelDataflow, write.Channels[0].Kind)
}

func TestLoader_DefaultEntryIsFirstPrompt(t *testing.T) {
	l := seed(t, map[string]string{
		"b.md": "---\nfields:\n  - name: x\n---\nB",
		"a.md": "---\nfields:\n  - name: y\n---\nA",
	})
	doc, err := l.Document(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Prompts, 2)
	assert.Equal(t, "a", doc.Prompts[0].Name)
	assert.Equal(t, map[string]string{"main": "a"}, doc.Entries)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	l := seed(t, map[string]string{
		"foo.md": "---\nfields:\n  - name: x\n---\nFoo",
		"bar.md": "---\nname: foo\nfields:\n  - name: y\n---\nBar",
	})
	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

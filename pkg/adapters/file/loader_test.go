package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/adapters/file"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/schema"
)

const quiz = `
desc: Color quizzes.
inputs:
  options: "[string]"
formats:
  color:
    kind: enum
    values: [red, green, blue]
    desc: a primary color
prompts:
  - name: ask
    desc: Write a question about colors.
    fields:
      - name: question
        format: text(40)
      - name: choices
        range: "[4]"
      - name: answer
        format: select(.choices)
      - name: hint
        format: color
      - name: notes
        range: "[0:2]"
        fields:
          - name: author
          - name: body
    channels:
      - kind: input
        target: choices
        source: options
    flows:
      - label: done
        return:
          - name: answer
`

func writeProgram(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "quiz.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoader_Load(t *testing.T) {
	prog, err := file.NewLoader(writeProgram(t, quiz)).Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, schema.ValidateProgram(prog))

	assert.Equal(t, "quiz", prog.Name)
	assert.Equal(t, map[string]string{"main": "ask"}, prog.Entries)
	assert.Equal(t, "[string]", prog.Inputs["options"])

	ask := prog.Prompts["ask"]
	require.NotNil(t, ask)
	assert.Equal(t, []string{"Write a question about colors."}, ask.Desc)

	labels := make([]string, len(ask.Fields))
	for i, f := range ask.Fields {
		labels[i] = f.Label()
	}
	assert.Equal(t, []string{"question", "choices", "answer", "hint", "notes", "notes.author", "notes.body"}, labels)

	assert.Equal(t, 40, ask.Fields[0].Format.Length)
	assert.Equal(t, &domain.Range{Min: 4, Max: 4}, ask.Fields[1].Range)
	assert.Equal(t, domain.FormatCompletion, ask.Fields[1].Format.Kind)
	assert.Equal(t, domain.ChoiceSelect, ask.Fields[2].Format.Mode)
	assert.Equal(t, "choices", ask.Fields[2].Format.Path.Label())
	assert.Equal(t, "color", ask.Fields[3].Format.Ref)
	assert.Equal(t, []string{"red", "green", "blue"}, ask.Fields[3].Format.Values)
	assert.True(t, ask.Fields[4].IsRecord())
	assert.Equal(t, 2, ask.Fields[6].Depth)
	assert.Same(t, ask.Fields[4], ask.Fields[6].Parent)

	require.Len(t, ask.Channels, 1)
	assert.Equal(t, domain.ChannelInput, ask.Channels[0].Kind)
	require.Len(t, ask.Flows, 1)
	assert.Equal(t, domain.FlowReturn, ask.Flows[0].Kind)
	assert.Equal(t, "answer", ask.Flows[0].Fields[0].Path.Label())
}

func TestLoader_ReportsEveryError(t *testing.T) {
	_, err := file.NewLoader(writeProgram(t, `
prompts:
  - name: a
    fields:
      - name: x
        range: "4"
      - name: y
        format: wobble
`)).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `malformed range "4"`)
	assert.Contains(t, err.Error(), `unknown format "wobble"`)
}

func TestLoader_RejectsUnknownKeys(t *testing.T) {
	_, err := file.NewLoader(writeProgram(t, "prompts:\n  - name: a\n    feilds: []\n")).Load(context.Background())
	assert.Error(t, err)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := file.NewLoader(filepath.Join(t.TempDir(), "none.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/internal/automaton"
	"github.com/aretw0/cogflow/internal/presentation/graph"
	"github.com/aretw0/cogflow/pkg/domain"
)

func quiz() *domain.Prompt {
	text := &domain.Format{Kind: domain.FormatCompletion}
	notes := &domain.Field{Name: "notes", Depth: 1, Index: 1, Range: &domain.Range{Min: 0, Max: 2}}
	return &domain.Prompt{
		Name: "ask",
		Fields: []*domain.Field{
			{Name: "question", Depth: 1, Index: 0, Format: text},
			notes,
			{Name: "body", Depth: 2, Index: 0, Format: text, Parent: notes},
		},
		Flows: []domain.Flow{
			{Label: "again", Kind: domain.FlowControl, Prompt: "ask", Limit: 2},
			{Label: "done", Kind: domain.FlowReturn},
		},
	}
}

func compile(t *testing.T) *automaton.Automaton {
	t.Helper()
	a, err := automaton.Compile(quiz(), domain.DefaultSyntax())
	require.NoError(t, err)
	return a
}

func TestProgram(t *testing.T) {
	prog := &domain.Program{
		Name:    "quiz",
		Entries: map[string]string{"main": "ask"},
		Prompts: map[string]*domain.Prompt{"ask": quiz()},
	}
	out := graph.Program(prog, &graph.GraphOverlay{VisitedNodes: []string{"ask", "ask"}, CurrentNode: "ask"})

	for _, want := range []string{
		"graph TD",
		`entry_main(("main"))`,
		"entry_main --> ask",
		`ask["ask"]`,
		`ask -- "again ≤2" --> ask`,
		`ask -- "done" --> end_`,
		`end_(("end"))`,
		"class ask visited;",
		"class ask current;",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "class ask visited;"))
}

func TestOverlayFromRun(t *testing.T) {
	rec := domain.NewRunRecord("r1", "quiz", "main", nil)
	rec.Steps = []domain.StepRecord{{Prompt: "outline"}, {Prompt: "write"}}
	o := graph.OverlayFromRun(rec)
	assert.Equal(t, []string{"outline", "write"}, o.VisitedNodes)
	assert.Equal(t, "write", o.CurrentNode)

	rec.Status = domain.RunCompleted
	assert.Empty(t, graph.OverlayFromRun(rec).CurrentNode)
}

func TestAbstract(t *testing.T) {
	out := graph.Abstract(compile(t))
	assert.Contains(t, out, `a0(("root"))`)
	assert.Contains(t, out, `a1["question"]`)
	assert.Contains(t, out, `a2[["notes"]]`)
	assert.Contains(t, out, `a0 -- "flow" --> a1`)
	assert.Contains(t, out, `a1 -. exit .-> a2`)
	assert.Contains(t, out, `a2 -- "flow" --> a3`)
}

func TestConcrete(t *testing.T) {
	out := graph.Concrete(compile(t))
	assert.Contains(t, out, `c0(("root"))`)
	assert.Contains(t, out, "c0 --> c1")
	assert.Contains(t, out, `end_(("end"))`)
	assert.Contains(t, out, "classDef record")
}

func TestActions(t *testing.T) {
	a := compile(t)
	g, err := a.Instantiate(a.NewFrame(), map[string]int{"ask": 1})
	require.NoError(t, err)

	out := graph.Actions(g)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `next_field["next: "]`)
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, `next_choice{"choose 2"}`)
}

package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/internal/runtime"
	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/lm"
	"github.com/aretw0/cogflow/pkg/orchestrator"
)

func text() *domain.Format { return &domain.Format{Kind: domain.FormatCompletion} }

func top(index int, name string, rng *domain.Range, f *domain.Format) *domain.Field {
	return &domain.Field{Name: name, Depth: 1, Index: index, Range: rng, Format: f}
}

func program(name string, prompts ...*domain.Prompt) *domain.Program {
	prog := &domain.Program{
		Name:    name,
		Entries: map[string]string{domain.DefaultEntry: prompts[0].Name},
		Prompts: map[string]*domain.Prompt{},
	}
	for _, p := range prompts {
		prog.Prompts[p.Name] = p
	}
	return prog
}

func quizProgram() *domain.Program {
	prog := program("quiz", &domain.Prompt{
		Name: "ask",
		Desc: []string{"Write a question about colors."},
		Fields: []*domain.Field{
			top(0, "question", nil, text()),
			top(1, "choices", &domain.Range{Min: 4, Max: 4}, text()),
			top(2, "answer", nil, &domain.Format{
				Kind: domain.FormatChoice, Mode: domain.ChoiceSelect, Path: domain.MustParsePath("choices"),
			}),
		},
		Channels: []domain.Channel{{
			Kind: domain.ChannelInput, Target: domain.MustParsePath("choices"), Source: domain.MustParsePath("options"),
		}},
		Flows: []domain.Flow{{
			Label: "done",
			Kind:  domain.FlowReturn,
			Fields: []domain.ReturnField{
				{Name: "question", Path: domain.MustParsePath("question")},
				{Name: "answer", Path: domain.MustParsePath("answer")},
			},
		}},
	})
	prog.Inputs = map[string]string{"options": "[string]"}
	return prog
}

func TestRunner_QuizWithKnownChoices(t *testing.T) {
	model := lm.NewOracle(
		"> question(text): Which is blue?\n" +
			"> choices(text)[1]: red\n> choices(text)[2]: green\n> choices(text)[3]: blue\n> choices(text)[4]: gray\n" +
			"> answer(select(.choices)): 3\nnext: done")
	store := memory.NewStore()

	var entered, left []string
	hooks := domain.LifecycleHooks{
		OnPromptEnter: func(_ context.Context, e *domain.PromptEvent) { entered = append(entered, e.Prompt) },
		OnPromptLeave: func(_ context.Context, e *domain.PromptEvent) { left = append(left, e.Next) },
	}

	r, err := runtime.New(quizProgram(), model, runtime.WithStore(store), runtime.WithLifecycleHooks(hooks))
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "", map[string]any{"options": []any{"red", "green", "blue", "gray"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"question": "Which is blue?", "answer": 3}, out)
	assert.Equal(t, []string{"ask"}, entered)
	assert.Equal(t, []string{"done"}, left)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	rec, err := store.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rec.Status)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, 4, rec.Steps[0].Counts["choices"])
	assert.Contains(t, rec.Steps[0].Text, "> answer(select(.choices)): 3")
}

func TestRunner_RejectsMissingInput(t *testing.T) {
	r, err := runtime.New(quizProgram(), lm.NewOracle())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "main", nil)
	assert.Error(t, err)
}

func TestRunner_UnknownEntry(t *testing.T) {
	r, err := runtime.New(quizProgram(), lm.NewOracle())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, domain.ErrPromptNotFound))
}

func TestRunner_DataflowBetweenPrompts(t *testing.T) {
	prog := program("essay",
		&domain.Prompt{
			Name:   "outline",
			Fields: []*domain.Field{top(0, "topic", nil, text())},
			Flows:  []domain.Flow{{Label: "write", Kind: domain.FlowControl, Prompt: "write"}},
		},
		&domain.Prompt{
			Name:   "write",
			Fields: []*domain.Field{top(0, "topic", nil, text()), top(1, "body", nil, text())},
			Channels: []domain.Channel{{
				Kind: domain.ChannelDataflow, Prompt: "outline",
				Target: domain.MustParsePath("topic"), Source: domain.MustParsePath("topic"),
			}},
		},
	)
	model := lm.NewOracle(
		"> topic(text): bees\nnext: write",
		"> topic(text): bees\n> body(text): they buzz\nnext: return",
	)
	r, err := runtime.New(prog, model)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "bees", "body": "they buzz"}, out)
}

func TestRunner_VisitLimitForcesReturn(t *testing.T) {
	prog := program("loop", &domain.Prompt{
		Name:   "loop",
		Fields: []*domain.Field{top(0, "n", nil, text())},
		Flows: []domain.Flow{
			{Label: "again", Kind: domain.FlowControl, Prompt: "loop", Limit: 2},
			{Label: "stop", Kind: domain.FlowReturn},
		},
	})
	store := memory.NewStore()
	r, err := runtime.New(prog, lm.NewOracle("> n(text): x\nnext: again"), runtime.WithStore(store))
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": "x"}, out)

	ids, _ := store.List(context.Background())
	rec, err := store.Load(context.Background(), ids[0])
	require.NoError(t, err)
	require.Len(t, rec.Steps, 2)
	assert.Equal(t, "again", rec.Steps[0].Next)
	assert.Equal(t, "stop", rec.Steps[1].Next)
	assert.Equal(t, 2, rec.Steps[1].Visit)
}

func TestRunner_MaxSteps(t *testing.T) {
	prog := program("spin", &domain.Prompt{
		Name:   "spin",
		Fields: []*domain.Field{top(0, "n", nil, text())},
		Flows:  []domain.Flow{{Label: "again", Kind: domain.FlowControl, Prompt: "spin"}},
	})
	store := memory.NewStore()
	r, err := runtime.New(prog, lm.NewOracle("> n(text): x\nnext: again"), runtime.WithMaxSteps(3), runtime.WithStore(store))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "main", nil)
	require.Error(t, err)

	ids, _ := store.List(context.Background())
	rec, err := store.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Len(t, rec.Steps, 3)
}

func TestRunner_CallChannelFansOutMappedArguments(t *testing.T) {
	prog := program("calls", &domain.Prompt{
		Name: "main",
		Fields: []*domain.Field{
			top(0, "doubled", &domain.Range{Min: 0, Max: 3}, text()),
			top(1, "summary", nil, text()),
		},
		Channels: []domain.Channel{{
			Kind:   domain.ChannelCall,
			Target: domain.MustParsePath("doubled"),
			Extern: "double",
			Kwargs: []domain.Kwarg{{Name: "x", Input: true, Path: domain.MustParsePath("nums"), Mapped: true}},
			Binds:  []domain.Bind{{Name: "v", Output: "y"}},
		}},
	})
	prog.Inputs = map[string]string{"nums": "[int]"}

	reg := orchestrator.NewRegistry(orchestrator.Func("double",
		func(_ context.Context, _ string, in map[string]any) (map[string]any, error) {
			return map[string]any{"y": fmt.Sprint(in["x"].(int) * 2)}, nil
		}))
	orch := orchestrator.New(reg)

	model := lm.NewOracle("> doubled(text)[1]: 2\n> doubled(text)[2]: 4\n> summary(text): ok\nnext: return")
	r, err := runtime.New(prog, model, runtime.WithOrchestrator(orch))
	require.NoError(t, err)
	reg.Register(r)

	out, err := r.Run(context.Background(), "main", map[string]any{"nums": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"doubled": []any{"2", "4"}, "summary": "ok"}, out)

	res, err := orch.Execute(context.Background(), []domain.Job{{Cog: "calls", Inputs: map[string]any{"nums": []any{1, 2}}}}, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", res[0]["summary"])
}

func TestNew_RejectsInvalidProgram(t *testing.T) {
	prog := program("bad", &domain.Prompt{
		Name:   "main",
		Fields: []*domain.Field{top(0, "a", &domain.Range{Min: 3, Max: 1}, text())},
	})
	_, err := runtime.New(prog, lm.NewOracle())
	assert.Error(t, err)
}

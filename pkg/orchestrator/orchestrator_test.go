package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/domain"
)

func echo(tag string) CogFunc {
	return func(_ context.Context, entry string, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"cog": tag, "entry": entry, "n": inputs["n"]}, nil
	}
}

func TestExecute_KeepsJobOrder(t *testing.T) {
	slow := Func("slow", func(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
		time.Sleep(time.Duration(3-inputs["n"].(int)) * 5 * time.Millisecond)
		return map[string]any{"n": inputs["n"]}, nil
	})
	o := New(NewRegistry(slow), WithConcurrency(3))

	jobs := []domain.Job{
		{Cog: "slow", Inputs: map[string]any{"n": 0}},
		{Cog: "slow", Inputs: map[string]any{"n": 1}},
		{Cog: "slow", Inputs: map[string]any{"n": 2}},
	}
	res, err := o.Execute(context.Background(), jobs, "")
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, i, r["n"])
	}
}

func TestExecute_RespectsConcurrencyLimit(t *testing.T) {
	var running, peak int32
	c := Func("count", func(context.Context, string, map[string]any) (map[string]any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return map[string]any{}, nil
	})
	o := New(NewRegistry(c), WithConcurrency(2))

	jobs := make([]domain.Job, 8)
	for i := range jobs {
		jobs[i] = domain.Job{Cog: "count"}
	}
	_, err := o.Execute(context.Background(), jobs, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecute_UnknownCog(t *testing.T) {
	o := New(NewRegistry())
	_, err := o.Execute(context.Background(), []domain.Job{{Cog: "ghost"}}, "")
	assert.True(t, errors.Is(err, domain.ErrCogNotFound))
}

func TestExecute_FailureReturnsNoPartialResults(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(
		Func("ok", echo("ok")),
		Func("bad", func(context.Context, string, map[string]any) (map[string]any, error) { return nil, boom }),
	)
	o := New(reg)
	res, err := o.Execute(context.Background(), []domain.Job{{Cog: "ok"}, {Cog: "bad"}}, "")
	assert.True(t, errors.Is(err, boom))
	assert.Nil(t, res)
}

func TestExecute_CallTimeout(t *testing.T) {
	wait := Func("wait", func(ctx context.Context, _ string, _ map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := New(NewRegistry(wait), WithCallTimeout(10*time.Millisecond))
	_, err := o.Execute(context.Background(), []domain.Job{{Cog: "wait"}}, "")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecute_RecordsInvocationTree(t *testing.T) {
	var mu sync.Mutex
	var events []domain.EventType

	reg := NewRegistry(Func("leaf", echo("leaf")))
	var o *Orchestrator
	reg.Register(Func("parent", func(ctx context.Context, _ string, _ map[string]any) (map[string]any, error) {
		res, err := o.Execute(ctx, []domain.Job{{Cog: "leaf", Entry: "a"}, {Cog: "leaf", Entry: "b"}}, InvocationID(ctx))
		if err != nil {
			return nil, err
		}
		return map[string]any{"children": len(res)}, nil
	}))
	record := func(_ context.Context, e *domain.CallEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}
	o = New(reg, WithHooks(domain.LifecycleHooks{OnCall: record, OnCallReturn: record}))

	res, err := o.Execute(context.Background(), []domain.Job{{Cog: "parent"}}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res[0]["children"])

	roots := o.Children("")
	assert.Empty(t, roots, "top-level invocations have no parent link")

	assert.Len(t, events, 6)
	var parentID string
	for id, inv := range o.invocations {
		if inv.Cog == "parent" {
			parentID = id
		}
	}
	require.NotEmpty(t, parentID)
	kids := o.Children(parentID)
	require.Len(t, kids, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{kids[0].Entry, kids[1].Entry})

	inv, ok := o.Invocation(parentID)
	require.True(t, ok)
	assert.Equal(t, 2, inv.Outputs["children"])
	assert.False(t, inv.Finished.IsZero())
}

func TestRegistry_Tags(t *testing.T) {
	r := NewRegistry(Func("b", echo("b")), Func("a", echo("a")))
	assert.Equal(t, []string{"a", "b"}, r.Tags())
	_, err := r.Get("a")
	assert.NoError(t, err)
}

func TestExecute_BoundsRetainedInvocations(t *testing.T) {
	o := New(NewRegistry(Func("leaf", echo("leaf"))), WithRetention(8))

	for i := 0; i < 100; i++ {
		_, err := o.Execute(context.Background(), []domain.Job{{Cog: "leaf", Inputs: map[string]any{"n": i}}}, "run-1")
		require.NoError(t, err)
	}

	assert.Equal(t, 8, o.Retained())
	kids := o.Children("run-1")
	require.Len(t, kids, 8)
	assert.Equal(t, 99, kids[len(kids)-1].Inputs["n"], "the newest calls are kept")
	assert.Len(t, o.children, 1)
}

func TestExecute_ZeroRetentionKeepsNothing(t *testing.T) {
	o := New(NewRegistry(Func("leaf", echo("leaf"))), WithRetention(0))

	for i := 0; i < 10; i++ {
		_, err := o.Execute(context.Background(), []domain.Job{{Cog: "leaf"}}, "run-1")
		require.NoError(t, err)
	}
	assert.Zero(t, o.Retained())
	assert.Empty(t, o.Children("run-1"))
	assert.Empty(t, o.children)
}

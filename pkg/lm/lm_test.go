package lm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/internal/fta"
	"github.com/aretw0/cogflow/pkg/domain"
)

// flaky fails the first n calls of NextTokenLogProbs with rotating messages.
type flaky struct {
	charVocab
	failures int
	calls    int
	messages []string
}

func (f *flaky) NextTokenLogProbs(_ context.Context, _ []int) ([]float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New(f.messages[(f.calls-1)%len(f.messages)])
	}
	return peaked(0), nil
}

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Growth: 2, MaxDelay: 5 * time.Millisecond}
}

func TestRetry_RecoversFromTransientFailures(t *testing.T) {
	m := &flaky{failures: 2, messages: []string{"connection reset"}}
	r := WithRetry(m, fastPolicy(3))

	logps, err := r.NextTokenLogProbs(context.Background(), []int{1})
	require.NoError(t, err)
	assert.Len(t, logps, CharVocabSize)
	assert.Equal(t, 3, m.calls)
}

func TestRetry_ExhaustionNamesDistinctCauses(t *testing.T) {
	m := &flaky{failures: 10, messages: []string{"timeout", "timeout", "overloaded"}}
	r := WithRetry(m, fastPolicy(4))

	_, err := r.NextTokenLogProbs(context.Background(), []int{1})
	var merr *domain.ModelError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, 4, merr.Attempts)
	assert.Equal(t, []string{"timeout", "overloaded"}, merr.Causes)
	assert.Equal(t, "logprobs", merr.Op)
	assert.Equal(t, 4, m.calls)
}

func TestRetry_CancelledContextStops(t *testing.T) {
	calls := 0
	m := &funcModel{next: func(ctx context.Context) ([]float64, error) {
		calls++
		return nil, fmt.Errorf("request: %w", context.Canceled)
	}}
	r := WithRetry(m, fastPolicy(5))

	_, err := r.NextTokenLogProbs(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestPolicy_Defaults(t *testing.T) {
	p := Policy{}.withDefaults()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 4.0, p.Growth)

	b := p.backOff()
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
}

type funcModel struct {
	charVocab
	next func(ctx context.Context) ([]float64, error)
}

func (f *funcModel) NextTokenLogProbs(ctx context.Context, _ []int) ([]float64, error) {
	return f.next(ctx)
}

func TestCache_HitsAndEviction(t *testing.T) {
	calls := 0
	m := &funcModel{next: func(context.Context) ([]float64, error) {
		calls++
		return peaked(calls % CharVocabSize), nil
	}}
	c := NewCache(m, 2)
	ctx := context.Background()

	a1, err := c.NextTokenLogProbs(ctx, []int{1, 2})
	require.NoError(t, err)
	a2, err := c.NextTokenLogProbs(ctx, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, 1, calls)

	_, _ = c.NextTokenLogProbs(ctx, []int{3})
	_, _ = c.NextTokenLogProbs(ctx, []int{4})
	_, _ = c.NextTokenLogProbs(ctx, []int{1, 2})
	assert.Equal(t, 4, calls, "the oldest prefix was evicted")

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 4, misses)
}

func TestCharVocab_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v := charVocab{}
	toks, err := v.Tokenize(ctx, "a: {b}\n~")
	assert.Error(t, err, "'~' is outside the vocabulary")
	assert.Nil(t, toks)

	toks, err = v.Tokenize(ctx, "> x(text): 1\n")
	require.NoError(t, err)
	text, err := v.Detokenize(ctx, toks)
	require.NoError(t, err)
	assert.Equal(t, "> x(text): 1\n", text)
}

func TestRandom_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	a, err := NewRandom(7).NextTokenLogProbs(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	b, err := NewRandom(7).NextTokenLogProbs(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var sum float64
	for _, lp := range a {
		sum += math.Exp(lp)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestOracle_SteersCompletion(t *testing.T) {
	m := NewOracle("hello")
	g := fta.NewGraph()
	g.Text("root", "intro\nstart:\n")
	g.Complete("value", 20, "\n", 0, 0)
	g.Connect("root", "value")

	tree, _, err := fta.Generate(context.Background(), g, m)
	require.NoError(t, err)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "intro\nstart:\nhello", res[0].Text)
}

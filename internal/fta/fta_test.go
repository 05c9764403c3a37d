package fta

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charModel tokenizes one byte per token and asks next for the distribution
// that follows a prefix. Unlisted bytes get a tiny probability.
type charModel struct {
	next    func(prefix string) map[byte]float64
	queries int
}

func (m *charModel) Tokenize(_ context.Context, text string) ([]int, error) {
	toks := make([]int, len(text))
	for i := range text {
		toks[i] = int(text[i])
	}
	return toks, nil
}

func (m *charModel) Detokenize(_ context.Context, toks []int) (string, error) {
	var b strings.Builder
	for _, t := range toks {
		b.WriteByte(byte(t))
	}
	return b.String(), nil
}

func (m *charModel) NextTokenLogProbs(ctx context.Context, toks []int) ([]float64, error) {
	m.queries++
	prefix, _ := m.Detokenize(ctx, toks)
	dist := m.next(prefix)
	out := make([]float64, 128)
	for i := range out {
		p, ok := dist[byte(i)]
		if !ok {
			p = 1e-6
		}
		out[i] = math.Log(p)
	}
	return out, nil
}

func TestFinalize_SharesAreSumNormalized(t *testing.T) {
	tree := NewTree()
	a := tree.Add(0, "x", []int{1}, []float64{0.7})
	b := tree.Add(0, "x", []int{2}, []float64{0.3})
	tree.Finalize(0)

	assert.InDelta(t, 0.7, a.Proba.TokwiseShare.Value, 1e-9)
	assert.InDelta(t, 0.3, b.Proba.TokwiseShare.Value, 1e-9)
	assert.True(t, a.Proba.TokwiseShare.Defined)

	// Same raw split one level deeper, under a parent of probability 0.5.
	deep := NewTree()
	p := deep.Add(0, "x", []int{1}, []float64{0.5})
	deep.Finalize(0)
	c1 := deep.Add(p.ID, "y", []int{2}, []float64{0.7})
	c2 := deep.Add(p.ID, "y", []int{3}, []float64{0.3})
	deep.Finalize(p.ID)

	assert.Equal(t, 1, c1.Proba.Depth)
	assert.InDelta(t, 0.7, c1.Proba.TokwiseShare.Value, 1e-9)
	assert.InDelta(t, 0.3, c2.Proba.TokwiseShare.Value, 1e-9)
	assert.InDelta(t, math.Sqrt(0.35), c1.Proba.TokwiseProdNorm, 1e-9)
}

func TestFinalize_ZeroSumLeavesShareUndefined(t *testing.T) {
	tree := NewTree()
	a := tree.Add(0, "x", []int{1}, []float64{0})
	tree.Add(0, "x", []int{2}, []float64{0})
	tree.Finalize(0)

	assert.False(t, a.Proba.TokwiseShare.Defined)
	assert.False(t, a.Proba.LocalShare.Defined)
}

func TestResults_TiesKeepDepthFirstOrder(t *testing.T) {
	m := &charModel{}
	tree := NewTree()
	for _, tok := range []int{'a', 'b', 'c'} {
		n := tree.Add(0, "x", []int{tok}, []float64{0.5})
		n.Done = true
	}
	tree.Finalize(0)

	for i := 0; i < 3; i++ {
		res, err := tree.Results(context.Background(), m, nil)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{res[0].Text, res[1].Text, res[2].Text})
	}
}

func TestGenerate_ChooseKeepsPrefixCandidates(t *testing.T) {
	m := &charModel{next: func(prefix string) map[byte]float64 {
		if strings.HasSuffix(prefix, "1") {
			return map[byte]float64{'0': 0.9}
		}
		return map[byte]float64{'1': 0.6, '2': 0.3}
	}}
	g := NewGraph()
	g.Text("root", "n=")
	g.Choose("pick", []string{"1", "10", "2"}, 0, 0)
	g.Connect("root", "pick")

	tree, stats, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queries, "one query at the trie root, one after the shared '1'")

	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	texts := []string{res[0].Text, res[1].Text, res[2].Text}
	assert.ElementsMatch(t, []string{"n=1", "n=10", "n=2"}, texts)
	assert.Equal(t, "n=10", res[0].Text, "0.6*0.9 normalized over 4 tokens beats 0.6 over 3")
}

func TestGenerate_CompleteTrimsStop(t *testing.T) {
	m := &charModel{next: func(prefix string) map[byte]float64 {
		region := prefix[strings.Index(prefix, ":")+1:]
		if len(region) >= 2 {
			return map[byte]float64{'\n': 0.9}
		}
		return map[byte]float64{'o': 0.8}
	}}
	g := NewGraph()
	g.Text("root", "q:")
	g.Complete("value", 10, "\n", 0, 0)
	g.Text("endl", "\n")
	g.Connect("root", "value")
	g.Connect("value", "endl")

	tree, _, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "q:oo\n", res[0].Text)
}

func TestGenerate_CompleteStopsAtLength(t *testing.T) {
	m := &charModel{next: func(string) map[byte]float64 { return map[byte]float64{'z': 0.9} }}
	g := NewGraph()
	g.Complete("value", 3, "\n", 0, 0)

	tree, stats, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Queries)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Equal(t, "zzz", res[0].Text)
}

func TestGenerate_PruneWidth(t *testing.T) {
	m := &charModel{next: func(string) map[byte]float64 {
		return map[byte]float64{'a': 0.2, 'b': 0.5, 'c': 0.3}
	}}
	g := NewGraph()
	g.Choose("pick", []string{"a", "b", "c"}, 2, 0)

	tree, _, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b", res[0].Text)
	assert.Equal(t, "c", res[1].Text)
	assert.InDelta(t, 0.5/0.8, res[0].Proba.TokwiseShare.Value, 1e-9, "shares are computed over survivors")
}

func TestGenerate_PruneThreshold(t *testing.T) {
	m := &charModel{next: func(string) map[byte]float64 {
		return map[byte]float64{'a': 0.2, 'b': 0.5, 'c': 0.3}
	}}
	g := NewGraph()
	g.Choose("pick", []string{"a", "b", "c"}, 0, 0.5)

	tree, _, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Len(t, res, 2, "0.2 is below half of the best")
}

func TestGenerate_SharedContinuation(t *testing.T) {
	m := &charModel{next: func(string) map[byte]float64 {
		return map[byte]float64{'y': 0.7, 'n': 0.3}
	}}
	g := NewGraph()
	g.Choose("pick", []string{"y", "n"}, 0, 0)
	g.Text("end", "!")
	g.Connect("pick", "end")

	tree, _, err := Generate(context.Background(), g, m)
	require.NoError(t, err)
	res, err := tree.Results(context.Background(), m, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "y!", res[0].Text)
	assert.Equal(t, "n!", res[1].Text)
}

func TestGraph_ValidateRejectsFanOutMismatch(t *testing.T) {
	g := NewGraph()
	g.Choose("pick", []string{"a", "b", "c"}, 0, 0)
	g.Text("x", "x")
	g.Text("y", "y")
	g.Connect("pick", "x")
	g.Connect("pick", "y")

	assert.Error(t, g.Validate())

	empty := NewGraph()
	empty.Choose("pick", nil, 0, 0)
	assert.Error(t, empty.Validate())
}

func TestScoringByName(t *testing.T) {
	for _, name := range []string{"", "tokwise", "tokwise_norm", "tokwise_share", "tokwise_share_norm", "local"} {
		s, err := ScoringByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	_, err := ScoringByName("treewise")
	assert.Error(t, err)
}

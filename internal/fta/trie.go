package fta

import (
	"context"
	"math"

	"github.com/aretw0/cogflow/pkg/ports"
)

// trie shares the common token prefixes of a Choose action's candidates.
type trie struct {
	token    int
	children []*trie
	ends     []int // candidates whose tokenization ends here
}

func (t *trie) child(tok int) *trie {
	for _, c := range t.children {
		if c.token == tok {
			return c
		}
	}
	c := &trie{token: tok}
	t.children = append(t.children, c)
	return c
}

func buildTrie(candidates [][]int) *trie {
	root := &trie{token: -1}
	for i, toks := range candidates {
		cur := root
		for _, tok := range toks {
			cur = cur.child(tok)
		}
		cur.ends = append(cur.ends, i)
	}
	return root
}

// candidatePath is the evaluated tokenization of one candidate.
type candidatePath struct {
	index  int
	tokens []int
	probs  []float64
}

// eval walks the trie depth first. Every internal node costs one model query.
func (t *trie) eval(ctx context.Context, model ports.LanguageModel, prompt []int, stats *Stats) ([]candidatePath, error) {
	var out []candidatePath
	var walk func(node *trie, prompt, toks []int, probs []float64) error
	walk = func(node *trie, prompt, toks []int, probs []float64) error {
		for _, idx := range node.ends {
			out = append(out, candidatePath{index: idx, tokens: toks, probs: probs})
		}
		if len(node.children) == 0 {
			return nil
		}
		logps, err := model.NextTokenLogProbs(ctx, prompt)
		if err != nil {
			return err
		}
		stats.Queries++
		for _, c := range node.children {
			p := 0.0
			if c.token >= 0 && c.token < len(logps) {
				p = math.Exp(logps[c.token])
			}
			err := walk(c, extend(prompt, c.token), extend(toks, c.token), appendProb(probs, p))
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t, prompt, nil, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func extend(prefix []int, toks ...int) []int {
	out := make([]int, len(prefix), len(prefix)+len(toks))
	copy(out, prefix)
	return append(out, toks...)
}

func appendProb(prefix []float64, p float64) []float64 {
	out := make([]float64, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, p)
}

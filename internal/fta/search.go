package fta

import (
	"context"
	"math"
	"slices"

	"github.com/aretw0/cogflow/pkg/ports"
)

// complete runs a single-beam search: it takes the arg-max token until the stop
// sequence is produced or length tokens were generated. The stop sequence is
// trimmed from the result.
func complete(ctx context.Context, model ports.LanguageModel, prompt []int, stop []int, length int, stats *Stats) ([]int, []float64, error) {
	var toks []int
	var probs []float64
	for len(toks) < length {
		logps, err := model.NextTokenLogProbs(ctx, extend(prompt, toks...))
		if err != nil {
			return nil, nil, err
		}
		stats.Queries++
		best, bestLogp := argmax(logps)
		if best < 0 {
			break
		}
		toks = append(toks, best)
		probs = append(probs, math.Exp(bestLogp))

		if n := len(stop); n > 0 && len(toks) >= n && slices.Equal(toks[len(toks)-n:], stop) {
			toks = toks[:len(toks)-n]
			probs = probs[:len(probs)-n]
			break
		}
	}
	return toks, probs, nil
}

// argmax returns the first index holding the maximum, or -1 for an empty vector.
func argmax(v []float64) (int, float64) {
	best, bestV := -1, math.Inf(-1)
	for i, x := range v {
		if best < 0 || x > bestV {
			best, bestV = i, x
		}
	}
	return best, bestV
}

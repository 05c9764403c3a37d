package lm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// CharVocabSize is the size of the character vocabulary: the printable
// characters from ' ' to '}' plus the newline.
const CharVocabSize = 95

const newlineToken = CharVocabSize - 1

// charVocab tokenizes one character per token.
type charVocab struct{}

func (charVocab) Tokenize(_ context.Context, text string) ([]int, error) {
	toks := make([]int, 0, len(text))
	for i, r := range text {
		switch {
		case r == '\n':
			toks = append(toks, newlineToken)
		case r >= ' ' && r <= '}':
			toks = append(toks, int(r-' '))
		default:
			return nil, fmt.Errorf("character %q at offset %d is outside the vocabulary", r, i)
		}
	}
	return toks, nil
}

func (charVocab) Detokenize(_ context.Context, tokens []int) (string, error) {
	var b strings.Builder
	b.Grow(len(tokens))
	for _, t := range tokens {
		switch {
		case t == newlineToken:
			b.WriteByte('\n')
		case t >= 0 && t < newlineToken:
			b.WriteByte(byte(' ' + t))
		default:
			return "", fmt.Errorf("token %d is outside the vocabulary", t)
		}
	}
	return b.String(), nil
}

// Random is a character-level model with a pseudo-random distribution. The
// distribution only depends on the seed and the prefix, so runs are repeatable.
type Random struct {
	charVocab
	Seed uint64
}

// NewRandom returns a Random model.
func NewRandom(seed uint64) *Random { return &Random{Seed: seed} }

// NextTokenLogProbs implements ports.LanguageModel.
func (m *Random) NextTokenLogProbs(_ context.Context, tokens []int) ([]float64, error) {
	rng := rand.New(rand.NewPCG(m.Seed, prefixKey(tokens)))
	weights := make([]float64, CharVocabSize)
	var sum float64
	for i := range weights {
		weights[i] = rng.Float64() + 1e-9
		sum += weights[i]
	}
	out := make([]float64, CharVocabSize)
	for i, w := range weights {
		out[i] = math.Log(w / sum)
	}
	return out, nil
}

// OracleConfidence is the probability an Oracle gives to the expected character.
const OracleConfidence = 0.9

// Oracle is a deterministic character-level model that steers generation
// towards known texts. The generated region is what follows the last
// "\nstart:\n" of the prefix; when it is a prefix of one of the targets, the
// target's next character gets OracleConfidence and the rest is spread evenly.
// Otherwise the newline is favored so that open completions stop.
type Oracle struct {
	charVocab
	Targets []string
}

// NewOracle returns an Oracle for the given targets, tried in order.
func NewOracle(targets ...string) *Oracle { return &Oracle{Targets: targets} }

// NextTokenLogProbs implements ports.LanguageModel.
func (m *Oracle) NextTokenLogProbs(ctx context.Context, tokens []int) ([]float64, error) {
	prefix, err := m.Detokenize(ctx, tokens)
	if err != nil {
		return nil, err
	}
	region := prefix
	if i := strings.LastIndex(prefix, "\nstart:\n"); i >= 0 {
		region = prefix[i+len("\nstart:\n"):]
	}

	expected := newlineToken
	for _, t := range m.Targets {
		if len(t) > len(region) && strings.HasPrefix(t, region) {
			toks, err := m.Tokenize(ctx, t[len(region):len(region)+1])
			if err != nil {
				return nil, err
			}
			expected = toks[0]
			break
		}
	}
	return peaked(expected), nil
}

func peaked(expected int) []float64 {
	rest := math.Log((1 - OracleConfidence) / float64(CharVocabSize-1))
	out := make([]float64, CharVocabSize)
	for i := range out {
		out[i] = rest
	}
	out[expected] = math.Log(OracleConfidence)
	return out
}


package ports

import "context"

// LanguageModel is the model backend contract.
// Tokens are vocabulary ids; NextTokenLogProbs returns one log-probability per id.
type LanguageModel interface {
	Tokenize(ctx context.Context, text string) ([]int, error)
	Detokenize(ctx context.Context, tokens []int) (string, error)
	NextTokenLogProbs(ctx context.Context, tokens []int) ([]float64, error)
}

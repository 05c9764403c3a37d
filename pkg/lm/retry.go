// Package lm provides language model decorators and small local models.
package lm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

// Policy bounds the retries of a failing model call.
// The delay before attempt n+1 is BaseDelay * Growth^(n-1), capped at MaxDelay.
type Policy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`
	Growth      float64       `json:"growth" yaml:"growth" mapstructure:"growth"`
	MaxDelay    time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
}

// DefaultPolicy retries three times, waiting 1s then 4s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Growth: 4, MaxDelay: time.Minute}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Growth < 1 {
		p.Growth = d.Growth
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = d.MaxDelay
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Growth,
		MaxInterval:         p.MaxDelay,
	}
	b.Reset()
	return b
}

// Retrying wraps a model so that every call is retried under a Policy.
// Exhausting the policy returns a *domain.ModelError.
type Retrying struct {
	model  ports.LanguageModel
	policy Policy
	logger *slog.Logger
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithRetryLogger logs every failed attempt at warn level.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(r *Retrying) { r.logger = l }
}

// WithRetry decorates model with the given policy. Zero fields take defaults.
func WithRetry(model ports.LanguageModel, policy Policy, opts ...RetryOption) *Retrying {
	r := &Retrying{model: model, policy: policy.withDefaults(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tokenize implements ports.LanguageModel.
func (r *Retrying) Tokenize(ctx context.Context, text string) ([]int, error) {
	return retry(ctx, r, "tokenize", func() ([]int, error) { return r.model.Tokenize(ctx, text) })
}

// Detokenize implements ports.LanguageModel.
func (r *Retrying) Detokenize(ctx context.Context, tokens []int) (string, error) {
	return retry(ctx, r, "detokenize", func() (string, error) { return r.model.Detokenize(ctx, tokens) })
}

// NextTokenLogProbs implements ports.LanguageModel.
func (r *Retrying) NextTokenLogProbs(ctx context.Context, tokens []int) ([]float64, error) {
	return retry(ctx, r, "logprobs", func() ([]float64, error) { return r.model.NextTokenLogProbs(ctx, tokens) })
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	var (
		attempts int
		causes   []string
		seen     = make(map[string]bool)
	)
	operation := func() (T, error) {
		attempts++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if msg := err.Error(); !seen[msg] {
			seen[msg] = true
			causes = append(causes, msg)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.policy.backOff()),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("model call failed, retrying", "op", op, "attempt", attempts, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return v, &domain.ModelError{Op: op, Attempts: attempts, Causes: causes, Last: err}
	}
	return v, nil
}

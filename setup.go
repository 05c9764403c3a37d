package cogflow

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/aretw0/cogflow/internal/config"
	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/adapters/file"
	"github.com/aretw0/cogflow/pkg/adapters/llamacpp"
	"github.com/aretw0/cogflow/pkg/adapters/memory"
	"github.com/aretw0/cogflow/pkg/adapters/process"
	"github.com/aretw0/cogflow/pkg/adapters/redis"
	"github.com/aretw0/cogflow/pkg/lm"
	"github.com/aretw0/cogflow/pkg/persistence/middleware"
	"github.com/aretw0/cogflow/pkg/ports"
)

// Options turns a configuration into engine options: model, store, tools,
// generation defaults and limits. The returned close function releases the
// store connection.
func Options(cfg config.Config, logger *slog.Logger) ([]Option, func() error, error) {
	closer := func() error { return nil }
	if logger == nil {
		logger = logging.NewNop()
	}

	model, err := NewModel(cfg, logger)
	if err != nil {
		return nil, closer, err
	}
	store, closer, err := NewStore(cfg.Store)
	if err != nil {
		return nil, closer, err
	}

	syntax := cfg.Syntax
	syntax.ZeroIndex = syntax.ZeroIndex || cfg.Generation.ZeroIndex

	opts := []Option{
		WithModel(model),
		WithStore(store),
		WithLogger(logger),
		WithSyntax(syntax),
		WithScoring(cfg.Generation.Scoring),
		WithGeneration(Generation{
			CompletionLength: cfg.Generation.CompletionLength,
			Width:            cfg.Generation.Width,
			Threshold:        cfg.Generation.Threshold,
		}),
	}
	if cfg.Generation.MaxSteps > 0 {
		opts = append(opts, WithMaxSteps(cfg.Generation.MaxSteps))
	}
	if cfg.Generation.MaxNodes > 0 {
		opts = append(opts, WithMaxNodes(cfg.Generation.MaxNodes))
	}
	if cfg.Orchestrator.Concurrency > 0 {
		opts = append(opts, WithConcurrency(cfg.Orchestrator.Concurrency))
	}
	if cfg.Orchestrator.Retention > 0 {
		opts = append(opts, WithRetention(cfg.Orchestrator.Retention))
	}
	if cfg.Orchestrator.CallTimeout > 0 {
		opts = append(opts, WithCallTimeout(cfg.Orchestrator.CallTimeout))
	}

	if cfg.Tools != "" {
		tools, err := process.LoadTools(cfg.Tools)
		if err != nil {
			return nil, closer, err
		}
		opts = append(opts, WithCogs(process.Cogs(tools, process.WithLogger(logger))...))
	}
	return opts, closer, nil
}

// NewModel builds the configured model. Remote models are wrapped with the
// retry policy, then with the log-prob cache.
func NewModel(cfg config.Config, logger *slog.Logger) (ports.LanguageModel, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var model ports.LanguageModel
	switch cfg.Model.Kind {
	case "random":
		model = lm.NewRandom(uint64(cfg.Model.Seed))
	case "oracle":
		model = lm.NewOracle(cfg.Model.Script...)
	case "llamacpp", "":
		opts := []llamacpp.Option{llamacpp.WithLogger(logger)}
		if cfg.Model.TopK > 0 {
			opts = append(opts, llamacpp.WithTopK(cfg.Model.TopK))
		}
		if cfg.Model.Timeout > 0 {
			opts = append(opts, llamacpp.WithTimeout(cfg.Model.Timeout))
		}
		client := llamacpp.New(cfg.Model.Endpoint, cfg.Model.VocabSize, opts...)
		model = lm.WithRetry(client, lm.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Growth:      cfg.Retry.Growth,
			MaxDelay:    cfg.Retry.MaxDelay,
		}, lm.WithRetryLogger(logger))
	default:
		return nil, fmt.Errorf("unknown model kind %q", cfg.Model.Kind)
	}
	if cfg.Cache.Size > 0 {
		model = lm.NewCache(model, cfg.Cache.Size)
	}
	return model, nil
}

// NewStore builds the configured run store with its middleware: masking
// first, then encryption.
func NewStore(cfg config.StoreConfig) (ports.RunStore, func() error, error) {
	closer := func() error { return nil }

	var store ports.RunStore
	switch cfg.Kind {
	case "memory", "":
		store = memory.NewStore()
	case "file":
		store = file.NewStore(cfg.Path)
	case "redis":
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		rs := redis.New(cfg.Addr, cfg.Password, cfg.DB, opts...)
		store, closer = rs, rs.Close
	default:
		return nil, closer, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	var mws []middleware.Middleware
	if len(cfg.Mask) > 0 {
		for _, p := range cfg.Mask {
			if _, err := regexp.Compile(p); err != nil {
				return nil, closer, fmt.Errorf("invalid mask pattern: %w", err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Mask))
	}
	if cfg.EncryptionKey != "" {
		key, err := ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, closer, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), closer, nil
}

// ParseKey reads an AES-256 key given as base64 or as 32 raw characters.
func ParseKey(s string) ([]byte, error) {
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("encryption key must be 32 bytes, raw or base64")
}

// Package cli holds the logic behind the cogflow commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/internal/config"
	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
)

// Options are the flags shared by every command.
type Options struct {
	// ProgramPath is a YAML program file or a loam directory.
	ProgramPath string
	// ConfigPath defaults to config.DefaultPath; a missing file means defaults.
	ConfigPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
	Debug    bool
}

// LoadConfig reads the configuration and applies the flag overrides.
func LoadConfig(opts Options) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// CreateLogger builds the stderr logger for level.
func CreateLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// Session is a configured engine with what it holds open.
type Session struct {
	Engine *cogflow.Engine
	Config config.Config
	Logger *slog.Logger

	closeStore func() error
}

// Close releases the run store.
func (s *Session) Close() error { return s.closeStore() }

// CreateEngine loads the configuration and the program and wires them
// together. extra options are applied last.
func CreateEngine(opts Options, extra ...cogflow.Option) (*Session, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := CreateLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	engineOpts, closeStore, err := cogflow.Options(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error configuring engine: %w", err)
	}
	if opts.Debug {
		engineOpts = append(engineOpts, cogflow.WithLifecycleHooks(createDebugHooks(logger)))
	}
	engineOpts = append(engineOpts, extra...)

	eng, err := cogflow.New(opts.ProgramPath, engineOpts...)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return &Session{Engine: eng, Config: cfg, Logger: logger, closeStore: closeStore}, nil
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPromptEnter: func(ctx context.Context, e *domain.PromptEvent) {
			logger.Debug("Enter Prompt", "run_id", e.RunID, "prompt", e.Prompt, "visit", e.Visit)
		},
		OnPromptLeave: func(ctx context.Context, e *domain.PromptEvent) {
			logger.Debug("Leave Prompt", "run_id", e.RunID, "prompt", e.Prompt, "next", e.Next,
				"actions", e.Actions, "queries", e.Queries, "duration", e.Duration)
		},
		OnCall: func(ctx context.Context, e *domain.CallEvent) {
			logger.Debug("Call", "cog", e.Cog, "entry", e.Entry, "invocation", e.InvocationID)
		},
		OnCallReturn: func(ctx context.Context, e *domain.CallEvent) {
			if e.IsError {
				logger.Debug("Call Return (Error)", "cog", e.Cog, "invocation", e.InvocationID)
			} else {
				logger.Debug("Call Return (Success)", "cog", e.Cog, "duration", e.Duration)
			}
		},
	}
}

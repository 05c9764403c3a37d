// Package process exposes local commands as cogs.
//
// Only commands declared in a tools file can run. Inputs never reach the
// command line: each one is passed as a COGFLOW_ARG_<NAME> environment
// variable, and the entry as COGFLOW_ENTRY. A JSON object printed on stdout
// becomes the outputs; any other output is returned under "result".
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/ports"
)

// ResultKey holds outputs that are not a JSON object.
const ResultKey = "result"

// ExecError reports a command that failed.
type ExecError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("tool %s: execution failed: %v. Stderr: %s", e.Tool, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Tool runs one declared command.
type Tool struct {
	config  Config
	baseDir string
	logger  *slog.Logger
}

type Option func(*Tool)

// WithBaseDir sets the working directory of the command.
func WithBaseDir(dir string) Option { return func(t *Tool) { t.baseDir = dir } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Tool) { t.logger = l } }

// New creates a cog for cfg.
func New(cfg Config, opts ...Option) *Tool {
	t := &Tool{config: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cogs creates a cog per declared tool.
func Cogs(tools []Config, opts ...Option) []ports.Cog {
	out := make([]ports.Cog, len(tools))
	for i, cfg := range tools {
		out[i] = New(cfg, opts...)
	}
	return out
}

// Tag implements ports.Cog.
func (t *Tool) Tag() string { return t.config.Name }

// Description is the declared description of the tool.
func (t *Tool) Description() string { return t.config.Description }

// Run implements ports.Cog.
func (t *Tool) Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
	cmd := exec.CommandContext(ctx, t.config.Command, t.config.Args...)
	cmd.Dir = t.baseDir

	env := cmd.Environ()
	for k, v := range t.config.Environment {
		env = append(env, k+"="+v)
	}
	if entry != "" {
		env = append(env, "COGFLOW_ENTRY="+entry)
	}
	for k, v := range inputs {
		env = append(env, fmt.Sprintf("COGFLOW_ARG_%s=%s", strings.ToUpper(k), encode(v)))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("running tool", "tool", t.config.Name, "command", t.config.Command)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExecError{Tool: t.config.Name, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return decode(stdout.String()), nil
}

// encode renders scalars as text and everything else as JSON.
func encode(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

func decode(output string) map[string]any {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			if obj, ok := v.(map[string]any); ok {
				return obj
			}
			return map[string]any{ResultKey: v}
		}
	}
	return map[string]any{ResultKey: trimmed}
}

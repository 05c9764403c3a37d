package cogflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/cogflow/internal/automaton"
	"github.com/aretw0/cogflow/internal/fta"
	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/internal/presentation/graph"
	"github.com/aretw0/cogflow/internal/runtime"
	"github.com/aretw0/cogflow/pkg/adapters/file"
	loamAdapter "github.com/aretw0/cogflow/pkg/adapters/loam"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/orchestrator"
	"github.com/aretw0/cogflow/pkg/ports"
)

// Engine is the high-level entry point of the library: one loaded program,
// the model it generates with and the cogs it may call.
type Engine struct {
	Name string

	loader       ports.ProgramLoader
	model        ports.LanguageModel
	store        ports.RunStore
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	cogs         []ports.Cog
	runtimeOpts  []runtime.Option
	orchOpts     []orchestrator.Option
	defaults     Generation
	scoringName  string
	program      *domain.Program
	runner       *runtime.Runner
	orchestrator *orchestrator.Orchestrator
}

// Generation holds the defaults applied to formats that leave them unset.
type Generation struct {
	CompletionLength int
	Width            int
	Threshold        float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader injects a ProgramLoader, bypassing path detection.
func WithLoader(l ports.ProgramLoader) Option { return func(e *Engine) { e.loader = l } }

// WithModel sets the language model. It is required.
func WithModel(m ports.LanguageModel) Option { return func(e *Engine) { e.model = m } }

// WithStore records every run.
func WithStore(s ports.RunStore) Option { return func(e *Engine) { e.store = s } }

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = e.hooks.Merge(h) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithCogs registers external cogs that call channels may target.
func WithCogs(cogs ...ports.Cog) Option {
	return func(e *Engine) { e.cogs = append(e.cogs, cogs...) }
}

// WithSyntax overrides the prompt rendering.
func WithSyntax(s domain.Syntax) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithSyntax(s)) }
}

// WithScoring selects the ranking of generated candidates by name
// (tokwise_norm, tokwise, tokwise_share, tokwise_share_norm, local).
func WithScoring(name string) Option { return func(e *Engine) { e.scoringName = name } }

// WithMaxSteps bounds the prompt invocations of one run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n)) }
}

// WithMaxNodes bounds the token tree of one prompt invocation.
func WithMaxNodes(n int) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxNodes(n)) }
}

// WithConcurrency bounds the cog calls running at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.orchOpts = append(e.orchOpts, orchestrator.WithConcurrency(n)) }
}

// WithCallTimeout bounds each cog call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.orchOpts = append(e.orchOpts, orchestrator.WithCallTimeout(d)) }
}

// WithRetention bounds the finished cog calls kept for inspection.
func WithRetention(n int) Option {
	return func(e *Engine) { e.orchOpts = append(e.orchOpts, orchestrator.WithRetention(n)) }
}

// WithGeneration sets defaults for formats that leave them unset.
func WithGeneration(g Generation) Option { return func(e *Engine) { e.defaults = g } }

// New loads the program at path and prepares it for running.
// A directory is read as a Loam repository, anything else as a YAML program
// file. With WithLoader, path only names the engine.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.model == nil {
		return nil, errors.New("no language model configured")
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		loader, err := detectLoader(path)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}

	prog, err := eng.loader.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	eng.Name = prog.Name
	if eng.Name == "" && path != "" {
		eng.Name = trimExt(filepath.Base(path))
	}
	eng.logger = eng.logger.With("program", eng.Name)
	eng.defaults.apply(prog)

	scoring, err := fta.ScoringByName(eng.scoringName)
	if err != nil {
		return nil, err
	}

	registry := orchestrator.NewRegistry(eng.cogs...)
	orchOpts := append([]orchestrator.Option{
		orchestrator.WithHooks(eng.hooks),
		orchestrator.WithLogger(eng.logger),
	}, eng.orchOpts...)
	eng.orchestrator = orchestrator.New(registry, orchOpts...)

	runtimeOpts := append([]runtime.Option{
		runtime.WithTag(eng.Name),
		runtime.WithOrchestrator(eng.orchestrator),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithScoring(scoring),
	}, eng.runtimeOpts...)
	if eng.store != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithStore(eng.store))
	}
	eng.runner, err = runtime.New(prog, eng.model, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	registry.Register(eng.runner)
	eng.program = prog
	return eng, nil
}

func detectLoader(path string) (ports.ProgramLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if info.IsDir() {
		return loamAdapter.Open(path)
	}
	return file.NewLoader(path), nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// apply fills unset format parameters of every field.
func (g Generation) apply(prog *domain.Program) {
	for _, p := range prog.Prompts {
		for _, f := range p.Fields {
			fm := f.Format
			if fm == nil {
				continue
			}
			if fm.Kind == domain.FormatCompletion && fm.Length == 0 {
				fm.Length = g.CompletionLength
			}
			if fm.Width == 0 {
				fm.Width = g.Width
			}
			if fm.Threshold == 0 {
				fm.Threshold = g.Threshold
			}
		}
	}
}

// Run executes entry with inputs and returns the program outputs.
func (e *Engine) Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
	return e.runner.Run(ctx, entry, inputs)
}

// Program returns the loaded program.
func (e *Engine) Program() *domain.Program { return e.program }

// Automaton returns the compiled form of a prompt.
func (e *Engine) Automaton(prompt string) (*automaton.Automaton, bool) {
	return e.runner.Automaton(prompt)
}

// Cogs lists the tags the orchestrator can call, the program included.
func (e *Engine) Cogs() []string { return e.orchestrator.Registry().Tags() }

// Orchestrator returns the orchestrator that routes call channels.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator { return e.orchestrator }

// Store returns the run store, nil when runs are not recorded.
func (e *Engine) Store() ports.RunStore { return e.store }

// Loader returns the program loader.
func (e *Engine) Loader() ports.ProgramLoader { return e.loader }

// Graph renders a Mermaid graph. Kind "program" ignores prompt; "abstract",
// "concrete" and "action" describe one prompt, the action graph being the one
// of a first visit with no data known.
func (e *Engine) Graph(kind, prompt string) (string, error) {
	if kind == graph.KindProgram {
		return graph.Program(e.program, nil), nil
	}
	a, ok := e.Automaton(prompt)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrPromptNotFound, prompt)
	}
	switch kind {
	case graph.KindAbstract:
		return graph.Abstract(a), nil
	case graph.KindConcrete:
		return graph.Concrete(a), nil
	case graph.KindAction:
		fr := a.NewFrame()
		if err := fr.Finalize(); err != nil {
			return "", err
		}
		g, err := a.Instantiate(fr, map[string]int{prompt: 1})
		if err != nil {
			return "", err
		}
		return graph.Actions(g), nil
	}
	return "", fmt.Errorf("unknown graph kind %q", kind)
}

// Watch reports changed documents when the loader supports it.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

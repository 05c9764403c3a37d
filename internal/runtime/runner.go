package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/cogflow/internal/automaton"
	"github.com/aretw0/cogflow/internal/fta"
	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/frame"
	"github.com/aretw0/cogflow/pkg/orchestrator"
	"github.com/aretw0/cogflow/pkg/ports"
	"github.com/aretw0/cogflow/pkg/schema"
)

// DefaultMaxSteps bounds the number of prompt invocations of one run.
const DefaultMaxSteps = 64

// Runner executes a program: it is the cog behind every compiled program.
// A Runner is immutable once built and may serve concurrent runs.
type Runner struct {
	program  *domain.Program
	automata map[string]*automaton.Automaton
	model    ports.LanguageModel

	tag          string
	syntax       domain.Syntax
	orchestrator ports.Orchestrator
	store        ports.RunStore
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	scoring      fta.Scoring
	maxSteps     int
	maxNodes     int
}

// Option configures a Runner.
type Option func(*Runner)

// WithTag sets the name other cogs use to call this program. It defaults to the program name.
func WithTag(tag string) Option { return func(r *Runner) { r.tag = tag } }

// WithSyntax overrides the prompt rendering.
func WithSyntax(s domain.Syntax) Option { return func(r *Runner) { r.syntax = s } }

// WithOrchestrator routes call channels. Without one, calls can only target the program itself.
func WithOrchestrator(o ports.Orchestrator) Option {
	return func(r *Runner) { r.orchestrator = o }
}

// WithStore persists a record of every run.
func WithStore(s ports.RunStore) Option { return func(r *Runner) { r.store = s } }

// WithLifecycleHooks registers prompt enter and leave callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(r *Runner) { r.hooks = r.hooks.Merge(h) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithScoring selects how generated candidates are ranked.
func WithScoring(s fta.Scoring) Option { return func(r *Runner) { r.scoring = s } }

// WithMaxSteps bounds the prompt invocations of one run.
func WithMaxSteps(n int) Option { return func(r *Runner) { r.maxSteps = n } }

// WithMaxNodes bounds the token tree of one prompt invocation.
func WithMaxNodes(n int) Option { return func(r *Runner) { r.maxNodes = n } }

// New validates and compiles program.
func New(program *domain.Program, model ports.LanguageModel, opts ...Option) (*Runner, error) {
	r := &Runner{
		program:  program,
		model:    model,
		tag:      program.Name,
		syntax:   domain.DefaultSyntax(),
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
		maxNodes: fta.DefaultMaxNodes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tag == "" {
		r.tag = "program"
	}
	if err := schema.ValidateProgram(program); err != nil {
		return nil, err
	}

	r.automata = make(map[string]*automaton.Automaton, len(program.Prompts))
	for _, name := range program.PromptNames() {
		a, err := automaton.Compile(program.Prompts[name], r.syntax)
		if err != nil {
			return nil, fmt.Errorf("compile prompt %s: %w", name, err)
		}
		r.automata[name] = a
	}
	if r.orchestrator == nil {
		r.orchestrator = orchestrator.New(orchestrator.NewRegistry(r))
	}
	return r, nil
}

// Tag implements ports.Cog.
func (r *Runner) Tag() string { return r.tag }

// Program returns the compiled program.
func (r *Runner) Program() *domain.Program { return r.program }

// Automaton returns the compiled form of a prompt.
func (r *Runner) Automaton(prompt string) (*automaton.Automaton, bool) {
	a, ok := r.automata[prompt]
	return a, ok
}

// run is the mutable state of one program run.
type run struct {
	id     string
	inputs map[string]any
	visits map[string]int
	frames map[string][]*frame.Frame
	record *domain.RunRecord
}

func (s *run) latest(prompt string) *frame.Frame {
	fs := s.frames[prompt]
	if len(fs) == 0 {
		return nil
	}
	return fs[len(fs)-1]
}

// Run implements ports.Cog. It starts at entry and follows the chosen flows
// until one returns.
func (r *Runner) Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
	if entry == "" {
		entry = domain.DefaultEntry
	}
	prompt, err := r.program.EntryPrompt(entry)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateInputs(r.program.Inputs, inputs); err != nil {
		return nil, err
	}

	st := &run{
		id:     uuid.NewString(),
		inputs: inputs,
		visits: make(map[string]int),
		frames: make(map[string][]*frame.Frame),
	}
	st.record = domain.NewRunRecord(st.id, r.tag, entry, inputs)
	st.record.ParentID = orchestrator.InvocationID(ctx)
	r.save(ctx, st.record)

	log := r.logger.With("run", st.id, "cog", r.tag)
	log.Debug("run started", "entry", entry, "prompt", prompt.Name)

	out, err := r.loop(ctx, st, prompt.Name, log)
	st.record.Updated = time.Now()
	if err != nil {
		st.record.Status = domain.RunFailed
		st.record.Error = err.Error()
		r.save(ctx, st.record)
		return nil, err
	}
	st.record.Status = domain.RunCompleted
	st.record.Outputs = out
	r.save(ctx, st.record)
	log.Debug("run completed", "steps", len(st.record.Steps))
	return out, nil
}

func (r *Runner) loop(ctx context.Context, st *run, name string, log *slog.Logger) (map[string]any, error) {
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step >= r.maxSteps {
			return nil, fmt.Errorf("run stopped after %d prompt steps", r.maxSteps)
		}
		a, ok := r.automata[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, name)
		}

		st.visits[name]++
		rec, fr, flow, err := r.step(ctx, st, a, log)
		if err != nil {
			return nil, err
		}
		st.frames[name] = append(st.frames[name], fr)
		st.record.Steps = append(st.record.Steps, rec)
		st.record.Updated = time.Now()
		r.save(ctx, st.record)

		if flow.Kind == domain.FlowControl {
			name = flow.Prompt
			continue
		}
		return returnValues(flow, fr)
	}
}

// step runs one prompt invocation: assemble, instantiate, generate, parse.
func (r *Runner) step(ctx context.Context, st *run, a *automaton.Automaton, log *slog.Logger) (domain.StepRecord, *frame.Frame, domain.Flow, error) {
	name := a.Prompt.Name
	visit := st.visits[name]
	started := time.Now()

	if r.hooks.OnPromptEnter != nil {
		r.hooks.OnPromptEnter(ctx, &domain.PromptEvent{
			EventBase: domain.EventBase{Timestamp: started, Type: domain.EventPromptEnter, RunID: st.id},
			Prompt:    name,
			Visit:     visit,
		})
	}
	log.Debug("prompt enter", "prompt", name, "visit", visit)

	leave := &domain.PromptEvent{
		EventBase: domain.EventBase{Type: domain.EventPromptLeave, RunID: st.id},
		Prompt:    name,
		Visit:     visit,
	}
	defer func() {
		leave.Timestamp = time.Now()
		leave.Duration = leave.Timestamp.Sub(started)
		if r.hooks.OnPromptLeave != nil {
			r.hooks.OnPromptLeave(ctx, leave)
		}
		log.Debug("prompt leave", "prompt", name, "visit", visit, "next", leave.Next, "queries", leave.Queries)
	}()

	fail := func(err error) (domain.StepRecord, *frame.Frame, domain.Flow, error) {
		leave.IsError = true
		return domain.StepRecord{}, nil, domain.Flow{}, fmt.Errorf("prompt %s (visit %d): %w", name, visit, err)
	}

	fr, err := r.assemble(ctx, st, a)
	if err != nil {
		return fail(err)
	}
	g, err := a.Instantiate(fr, st.visits)
	if err != nil {
		return fail(err)
	}
	leave.Actions = len(g.Actions())

	tree, stats, err := fta.Generate(ctx, g, r.model, fta.WithLogger(log), fta.WithMaxNodes(r.maxNodes))
	leave.Queries = stats.Queries
	if err != nil {
		return fail(err)
	}
	results, err := tree.Results(ctx, r.model, r.scoring)
	if err != nil {
		return fail(err)
	}
	if len(results) == 0 {
		return fail(domain.Invariantf("generation produced no finished candidate"))
	}
	best := results[0]

	flow, err := a.Parse(best.Text, fr, st.visits)
	if err != nil {
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			log.Error("generated text does not parse", "prompt", name, "line", perr.LineNo, "error", err)
		}
		return fail(err)
	}
	leave.Next = flow.Label

	rec := domain.StepRecord{
		Prompt: name,
		Visit:  visit,
		Text:   a.Region(best.Text),
		Score:  best.Score,
		Data:   fr.Snapshot(),
		Counts: maps.Clone(fr.Counts),
		Next:   flow.Label,
	}
	return rec, fr, flow, nil
}

// returnValues builds the outputs of a Return flow. A flow without fields returns all the data.
func returnValues(flow domain.Flow, fr *frame.Frame) (map[string]any, error) {
	if len(flow.Fields) == 0 {
		return fr.Snapshot(), nil
	}
	out := make(map[string]any, len(flow.Fields))
	for _, f := range flow.Fields {
		v, err := fr.ReadValue(f.Path)
		if err != nil {
			return nil, fmt.Errorf("return %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (r *Runner) save(ctx context.Context, rec *domain.RunRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Warn("failed to save run record", "run", rec.ID, "error", err)
	}
}

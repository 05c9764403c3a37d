// Package orchestrator schedules cog invocations.
//
// Jobs submitted together run concurrently up to a limit, each under its own
// timeout, and their results come back in submission order. Every invocation
// is recorded with a link to the invocation that requested it, so nested
// calls form a tree. Only the most recently finished invocations are kept.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
)

// DefaultConcurrency is the number of jobs of one Execute that may run at once.
const DefaultConcurrency = 4

// DefaultRetention is the number of finished invocations kept for inspection.
const DefaultRetention = 256

// Invocation is the record of one cog call.
type Invocation struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id,omitempty"`
	Cog      string         `json:"cog"`
	Entry    string         `json:"entry,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Error    string         `json:"error,omitempty"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished,omitzero"`
}

// Orchestrator runs jobs against a Registry.
type Orchestrator struct {
	registry    *Registry
	concurrency int
	callTimeout time.Duration
	retention   int
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	mu          sync.RWMutex
	invocations map[string]*Invocation
	children    map[string][]string
	finished    []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency bounds the number of jobs running at once. Values below 1 run jobs one at a time.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithCallTimeout bounds each invocation. Zero disables the timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithRetention bounds the number of finished invocations kept. Values below 1 keep none.
func WithRetention(n int) Option {
	return func(o *Orchestrator) {
		if n < 0 {
			n = 0
		}
		o.retention = n
	}
}

// WithHooks registers lifecycle hooks fired around each call.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(o *Orchestrator) { o.hooks = o.hooks.Merge(h) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		concurrency: DefaultConcurrency,
		retention:   DefaultRetention,
		logger:      logging.NewNop(),
		invocations: make(map[string]*Invocation),
		children:    make(map[string][]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the registry jobs are resolved against.
func (o *Orchestrator) Registry() *Registry { return o.registry }

type invocationKey struct{}

// InvocationID returns the id of the invocation running under ctx, if any.
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}

// ContextWithInvocation marks ctx as running under invocation id.
func ContextWithInvocation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// Execute runs jobs and returns their outputs in job order. The first failure
// cancels the jobs still running and is returned; no partial results are returned.
func (o *Orchestrator) Execute(ctx context.Context, jobs []domain.Job, parentID string) ([]map[string]any, error) {
	results := make([]map[string]any, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			out, err := o.call(gctx, job, parentID)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Cog, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) call(ctx context.Context, job domain.Job, parentID string) (map[string]any, error) {
	cog, err := o.registry.Get(job.Cog)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{
		ID:       uuid.NewString(),
		ParentID: parentID,
		Cog:      job.Cog,
		Entry:    job.Entry,
		Inputs:   maps.Clone(job.Inputs),
		Started:  time.Now(),
	}
	o.record(inv)

	callCtx := ContextWithInvocation(ctx, inv.ID)
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, o.callTimeout)
		defer cancel()
	}

	ev := &domain.CallEvent{
		EventBase:    domain.EventBase{Timestamp: inv.Started, Type: domain.EventCall, RunID: parentID},
		InvocationID: inv.ID,
		Cog:          job.Cog,
		Entry:        job.Entry,
	}
	if o.hooks.OnCall != nil {
		o.hooks.OnCall(ctx, ev)
	}
	o.logger.Debug("cog call", "cog", job.Cog, "entry", job.Entry, "invocation", inv.ID, "parent", parentID)

	out, err := cog.Run(callCtx, job.Entry, job.Inputs)

	finished := time.Now()
	o.finish(inv.ID, out, err, finished)
	ret := &domain.CallEvent{
		EventBase:    domain.EventBase{Timestamp: finished, Type: domain.EventCallReturn, RunID: parentID},
		InvocationID: inv.ID,
		Cog:          job.Cog,
		Entry:        job.Entry,
		Duration:     finished.Sub(inv.Started),
		IsError:      err != nil,
	}
	if o.hooks.OnCallReturn != nil {
		o.hooks.OnCallReturn(ctx, ret)
	}
	if err != nil {
		o.logger.Warn("cog call failed", "cog", job.Cog, "invocation", inv.ID, "error", err)
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) record(inv *Invocation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invocations[inv.ID] = inv
	if inv.ParentID != "" {
		o.children[inv.ParentID] = append(o.children[inv.ParentID], inv.ID)
	}
}

func (o *Orchestrator) finish(id string, out map[string]any, err error, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inv := o.invocations[id]
	inv.Outputs = out
	inv.Finished = at
	if err != nil {
		inv.Error = err.Error()
	}
	o.finished = append(o.finished, id)
	for len(o.finished) > o.retention {
		o.forget(o.finished[0])
		o.finished[0] = ""
		o.finished = o.finished[1:]
	}
}

// forget drops a finished invocation and its links. Callers hold o.mu.
func (o *Orchestrator) forget(id string) {
	inv, ok := o.invocations[id]
	if !ok {
		return
	}
	delete(o.invocations, id)
	delete(o.children, id)
	if inv.ParentID == "" {
		return
	}
	siblings := slices.DeleteFunc(o.children[inv.ParentID], func(c string) bool { return c == id })
	if len(siblings) == 0 {
		delete(o.children, inv.ParentID)
		return
	}
	o.children[inv.ParentID] = siblings
}

// Retained reports how many invocations are currently recorded.
func (o *Orchestrator) Retained() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.invocations)
}

// Invocation returns a copy of the record of invocation id.
func (o *Orchestrator) Invocation(id string) (Invocation, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	inv, ok := o.invocations[id]
	if !ok {
		return Invocation{}, false
	}
	return *inv, true
}

// Children returns the invocations requested by parentID, oldest first.
func (o *Orchestrator) Children(parentID string) []Invocation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.children[parentID]
	out := make([]Invocation, 0, len(ids))
	for _, id := range ids {
		if inv, ok := o.invocations[id]; ok {
			out = append(out, *inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

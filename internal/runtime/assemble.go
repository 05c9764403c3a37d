package runtime

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"github.com/aretw0/cogflow/internal/automaton"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/frame"
)

// assemble builds the frame of a prompt invocation from its channels.
func (r *Runner) assemble(ctx context.Context, st *run, a *automaton.Automaton) (*frame.Frame, error) {
	fr := a.NewFrame()
	for i, ch := range a.Prompt.Channels {
		target := a.Prompt.FieldByLabel(ch.Target.AbstractLabel())
		if target == nil {
			return nil, fmt.Errorf("channel %d: unknown target %s", i, ch.Target.Label())
		}

		var err error
		switch ch.Kind {
		case domain.ChannelInput:
			err = r.insertInput(fr, st, ch)
		case domain.ChannelDataflow:
			err = r.insertDataflow(fr, st, a.Prompt.Name, ch, target)
		case domain.ChannelCall:
			err = r.insertCall(ctx, fr, st, ch, target)
		default:
			err = fmt.Errorf("unknown kind %q", ch.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s -> %s): %w", i, ch.Kind, ch.Target.Label(), err)
		}
	}
	if err := fr.Finalize(); err != nil {
		return nil, err
	}
	return fr, nil
}

func (r *Runner) insertInput(fr *frame.Frame, st *run, ch domain.Channel) error {
	v, ok := lookup(st.inputs, ch.Source)
	if !ok {
		return fmt.Errorf("input %s is not provided", ch.Source.Label())
	}
	return fr.Insert(ch.Target, v)
}

// insertDataflow copies a value from the latest frame of another prompt, or
// from the previous frame of the same prompt. A missing source leaves the
// target unknown, except for lists, which become empty.
func (r *Runner) insertDataflow(fr *frame.Frame, st *run, self string, ch domain.Channel, target *domain.Field) error {
	src := ch.Prompt
	if src == "" {
		src = self
	}
	var v any
	found := false
	if prev := st.latest(src); prev != nil {
		if val, err := prev.ReadValue(ch.Source); err == nil {
			v, found = val, true
		}
	}
	if !found {
		if target.IsList() {
			return fr.Insert(ch.Target, []any{})
		}
		return nil
	}
	return fr.Insert(ch.Target, v)
}

// insertCall runs the jobs of a call channel and inserts their results, one
// list element per job.
func (r *Runner) insertCall(ctx context.Context, fr *frame.Frame, st *run, ch domain.Channel, target *domain.Field) error {
	jobs, err := r.jobs(st, ch)
	if err != nil {
		return err
	}
	if !target.IsList() && len(jobs) != 1 {
		return fmt.Errorf("%d jobs for single-valued target", len(jobs))
	}

	results, err := r.orchestrator.Execute(ctx, jobs, st.id)
	if err != nil {
		return err
	}
	values := make([]any, len(results))
	for i, res := range results {
		values[i] = bind(res, ch.Binds, target)
	}
	if target.IsList() {
		return fr.Insert(ch.Target, values)
	}
	return fr.Insert(ch.Target, values[0])
}

// jobs expands the kwargs of a call channel. Mapped kwargs contribute one
// value per element and the jobs are their cartesian product, first kwarg outermost.
func (r *Runner) jobs(st *run, ch domain.Channel) ([]domain.Job, error) {
	cog := ch.Extern
	if cog == "" {
		cog = r.tag
	}

	combos := []map[string]any{{}}
	for _, kw := range ch.Kwargs {
		v, err := r.kwarg(st, kw)
		if err != nil {
			return nil, err
		}
		options := []any{v}
		if kw.Mapped {
			items, ok := asSlice(v)
			if !ok {
				return nil, fmt.Errorf("mapped argument %s is not a list (%T)", kw.Name, v)
			}
			options = items
		}
		next := make([]map[string]any, 0, len(combos)*len(options))
		for _, c := range combos {
			for _, o := range options {
				m := maps.Clone(c)
				m[kw.Name] = o
				next = append(next, m)
			}
		}
		combos = next
	}

	jobs := make([]domain.Job, len(combos))
	for i, c := range combos {
		jobs[i] = domain.Job{Cog: cog, Entry: ch.Entry, Inputs: c}
	}
	return jobs, nil
}

func (r *Runner) kwarg(st *run, kw domain.Kwarg) (any, error) {
	if kw.Input {
		v, ok := lookup(st.inputs, kw.Path)
		if !ok {
			return nil, fmt.Errorf("argument %s: input %s is not provided", kw.Name, kw.Path.Label())
		}
		return v, nil
	}
	src := st.latest(kw.Prompt)
	if src == nil {
		return nil, fmt.Errorf("argument %s: prompt %s has not run yet", kw.Name, kw.Prompt)
	}
	v, err := src.ReadValue(kw.Path)
	if err != nil {
		return nil, fmt.Errorf("argument %s: %w", kw.Name, err)
	}
	return v, nil
}

// bind renames the outputs of a call. Leaf targets take the first bound value.
func bind(res map[string]any, binds []domain.Bind, target *domain.Field) any {
	if len(binds) == 0 {
		if !target.IsRecord() && len(res) == 1 {
			for _, v := range res {
				return v
			}
		}
		return res
	}
	if !target.IsRecord() {
		return res[binds[0].Output]
	}
	out := make(map[string]any, len(binds))
	for _, b := range binds {
		out[b.Name] = res[b.Output]
	}
	return out
}

// lookup reads a path from plain nested values.
func lookup(root map[string]any, path domain.Path) (any, bool) {
	var cur any = root
	for _, step := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[step.Name]; !ok {
			return nil, false
		}
		if step.Index != domain.NoIndex {
			items, ok := asSlice(cur)
			if !ok || step.Index >= len(items) {
				return nil, false
			}
			cur = items[step.Index]
		}
	}
	return cur, true
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

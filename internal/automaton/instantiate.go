package automaton

import (
	"fmt"
	"strconv"

	"github.com/aretw0/cogflow/internal/fta"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/frame"
)

// Action ids of the fixed part of every instantiated graph.
const (
	ActionRoot       = "root"
	ActionNextField  = "next.field"
	ActionNextChoice = "next.choice"
)

// NextPrefix starts the line that names the chosen flow.
const NextPrefix = "next: "

type instantiator struct {
	a     *Automaton
	fr    *frame.Frame
	g     *fta.Graph
	entry map[int]string // state id -> first action of its line
}

// Instantiate builds the action graph for one invocation. fr holds what is
// already known; visits counts how many times each prompt was entered so far
// and filters out control flows whose limit is reached.
func (a *Automaton) Instantiate(fr *frame.Frame, visits map[string]int) (*fta.Graph, error) {
	in := &instantiator{a: a, fr: fr, g: fta.NewGraph(), entry: make(map[int]string)}
	g := in.g

	g.Text(ActionRoot, a.header)
	first, err := in.branch(a.Root())
	if err != nil {
		return nil, err
	}
	if first != "" {
		g.Connect(ActionRoot, first)
	}

	// Every action left without continuation ends the field section.
	var leaves []string
	for _, act := range g.Actions() {
		if len(act.Successors) == 0 {
			leaves = append(leaves, act.ID)
		}
	}
	g.Text(ActionNextField, NextPrefix)
	for _, id := range leaves {
		g.Connect(id, ActionNextField)
	}

	labels := a.AvailableFlows(visits)
	switch len(labels) {
	case 0:
		return nil, domain.Invariantf("prompt %s: every flow reached its limit", a.Prompt.Name)
	case 1:
		g.Text(ActionNextChoice, labels[0])
	default:
		g.Choose(ActionNextChoice, labels, 0, 0)
	}
	g.Connect(ActionNextField, ActionNextChoice)

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("prompt %s: %w", a.Prompt.Name, err)
	}
	return g, nil
}

// AvailableFlows returns the labels of the flows that may still be taken.
func (a *Automaton) AvailableFlows(visits map[string]int) []string {
	var labels []string
	for _, fl := range a.Prompt.EffectiveFlows() {
		if exhausted(fl, visits) {
			continue
		}
		labels = append(labels, fl.Label)
	}
	return labels
}

func exhausted(fl domain.Flow, visits map[string]int) bool {
	return fl.Kind == domain.FlowControl && fl.Limit > 0 && visits[fl.Prompt] >= fl.Limit
}

// successors filters s's successors against the frame: unknown states are
// kept, absent ones skipped, and the first present one is kept and ends the
// scan. end reports whether the prompt may stop right after s.
func (in *instantiator) successors(s *State) (out []*State, end bool) {
	present := false
	for _, id := range s.Successors {
		t := in.a.states[id]
		st := in.fr.Get(t.Label())
		if st == frame.Absent {
			continue
		}
		out = append(out, t)
		if st == frame.Present {
			present = true
			break
		}
	}
	return out, s.CanEnd && !present
}

// branch emits the action that picks what follows s and returns its id, or
// "" when nothing follows.
func (in *instantiator) branch(s *State) (string, error) {
	succs, end := in.successors(s)
	if len(succs) == 0 {
		return "", nil
	}
	id := "branch." + s.Tag()
	if len(succs) == 1 && !end {
		in.g.Text(id, in.a.PromptText(succs[0]))
	} else {
		prompts := make([]string, 0, len(succs)+1)
		for _, t := range succs {
			prompts = append(prompts, in.a.PromptText(t))
		}
		if end {
			prompts = append(prompts, NextPrefix)
		}
		in.g.Choose(id, prompts, 0, 0)
	}

	for _, t := range succs {
		next, err := in.line(t)
		if err != nil {
			return "", err
		}
		in.g.Connect(id, next)
	}
	if end {
		in.g.Connect(id, ActionNextChoice)
	}
	return id, nil
}

// line emits the value and line terminator of t, then whatever follows it.
// It returns the id of the first emitted action; lines are built once per state.
func (in *instantiator) line(t *State) (string, error) {
	if id, ok := in.entry[t.ID]; ok {
		return id, nil
	}
	endl := "endl." + t.Tag()
	first := endl

	if !t.Field().IsRecord() {
		first = "field." + t.Tag()
		if err := in.value(first, t); err != nil {
			return "", err
		}
		in.g.Text(endl, "\n")
		in.g.Connect(first, endl)
	} else {
		in.g.Text(endl, "\n")
	}
	in.entry[t.ID] = first

	next, err := in.branch(t)
	if err != nil {
		return "", err
	}
	if next != "" {
		in.g.Connect(endl, next)
	}
	return first, nil
}

func (in *instantiator) value(id string, t *State) error {
	if in.fr.Get(t.Label()) == frame.Present {
		n, err := in.fr.Read(t.Path())
		if err != nil {
			return fmt.Errorf("known value of %s: %w", t.Label(), err)
		}
		in.g.Text(id, frame.Text(n))
		return nil
	}

	f := t.Field().Format
	switch f.Kind {
	case domain.FormatCompletion:
		in.g.Complete(id, f.Length, "\n", f.Width, f.Threshold)
	case domain.FormatEnum:
		in.g.Choose(id, f.Values, f.Width, f.Threshold)
	case domain.FormatChoice:
		choices, err := in.choices(t, f)
		if err != nil {
			return err
		}
		in.g.Choose(id, choices, f.Width, f.Threshold)
	default:
		return domain.Invariantf("field %s has unknown format %q", t.Label(), f.Kind)
	}
	return nil
}

// choices lists the candidates of a choice field. A select over a source that
// is not known yet offers every position the source can reach.
func (in *instantiator) choices(t *State, f *domain.Format) ([]string, error) {
	offset := 1
	if in.a.Syntax.ZeroIndex {
		offset = 0
	}

	nodes, err := in.fr.Ravel(f.Path)
	if err != nil {
		if f.Mode != domain.ChoiceSelect {
			return nil, fmt.Errorf("field %s: %w: source %s is not known: %v", t.Label(), domain.ErrNoChoices, f.Path.Label(), err)
		}
		n := in.a.sourceCapacity(f.Path)
		if n == 0 {
			return nil, fmt.Errorf("field %s: %w", t.Label(), domain.ErrNoChoices)
		}
		return positions(n, offset), nil
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("field %s: %w: source %s is empty", t.Label(), domain.ErrNoChoices, f.Path.Label())
	}

	if f.Mode == domain.ChoiceSelect {
		return positions(len(nodes), offset), nil
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = frame.Text(n)
	}
	return out, nil
}

func positions(n, offset int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + offset)
	}
	return out
}

// sourceCapacity is the largest number of elements a ravel of path can yield.
func (a *Automaton) sourceCapacity(path domain.Path) int {
	fld := a.Prompt.FieldByLabel(path.AbstractLabel())
	if fld == nil {
		return 0
	}
	n := 1
	for i, f := range fld.Ancestry() {
		if f.IsList() && (i >= len(path) || path[i].Index == domain.NoIndex) {
			n *= f.Range.Max
		}
	}
	return n
}

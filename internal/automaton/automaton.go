// Package automaton compiles a prompt schema into the state graphs that drive
// generation: the abstract scope graph, the concrete DAG of list-unrolled
// states, and, per invocation, the action graph handed to the token engine.
package automaton

import (
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/frame"
)

// Automaton is the compiled form of one prompt. It is immutable after Compile
// and safe to share between invocations.
type Automaton struct {
	Prompt *domain.Prompt
	Syntax domain.Syntax

	abstracts []AbstractState
	states    []*State
	header    string
}

// Compile builds the abstract and concrete graphs of p.
func Compile(p *domain.Prompt, syntax domain.Syntax) (*Automaton, error) {
	abs, err := buildAbstract(p.Fields)
	if err != nil {
		return nil, err
	}
	states, err := buildConcrete(abs)
	if err != nil {
		return nil, err
	}
	a := &Automaton{
		Prompt:    p,
		Syntax:    syntax,
		abstracts: abs,
		states:    states,
	}
	a.header = a.renderHeader()
	return a, nil
}

// Root returns the root state.
func (a *Automaton) Root() *State { return a.states[0] }

// State returns the concrete state with the given id.
func (a *Automaton) State(id int) *State { return a.states[id] }

// States returns every concrete state in main chain order, root first.
func (a *Automaton) States() []*State { return a.states }

// Abstracts returns the abstract scope graph, root first.
func (a *Automaton) Abstracts() []AbstractState { return a.abstracts }

// Labels returns the distinct concrete labels of every non-root state.
func (a *Automaton) Labels() []string {
	seen := make(map[string]bool, len(a.states))
	var out []string
	for _, s := range a.states[1:] {
		l := s.Label()
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// NewFrame returns an empty frame covering every concrete state.
func (a *Automaton) NewFrame() *frame.Frame {
	return frame.New(a.Prompt.Fields, a.Labels())
}

// Header returns the rendered prompt header.
func (a *Automaton) Header() string { return a.header }

// Package fta executes action graphs against a language model.
//
// An action graph is made of Text (fixed literal), Choose (one of a set of
// candidates) and Complete (open generation until a stop marker) actions. Running
// it produces a finite token tree whose root-to-leaf paths are the candidate
// generations, each annotated with a probability bundle.
package fta

import (
	"fmt"

	"github.com/aretw0/cogflow/pkg/domain"
)

// Kind is the variant of an Action.
type Kind int

const (
	KindText Kind = iota
	KindChoose
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChoose:
		return "choose"
	case KindComplete:
		return "complete"
	}
	return "unknown"
}

// DefaultCompletionLength bounds Complete actions declared without a length.
const DefaultCompletionLength = 64

// Action is one node of an action graph.
type Action struct {
	ID   string
	Kind Kind

	Text    string   // KindText
	Choices []string // KindChoose

	Length int    // KindComplete, in tokens
	Stop   string // KindComplete

	// Pruning of the children generated by this action.
	Width     int
	Threshold float64

	// Successors holds one id per candidate for Choose, or a single shared
	// continuation. It is empty for the final action.
	Successors []string
}

// Next returns the successor to follow after candidate i.
func (a *Action) Next(i int) (string, bool) {
	switch len(a.Successors) {
	case 0:
		return "", false
	case 1:
		return a.Successors[0], true
	}
	return a.Successors[i], true
}

// Graph is an arena of actions addressed by id.
type Graph struct {
	Root    string
	actions map[string]*Action
	order   []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{actions: make(map[string]*Action)}
}

func (g *Graph) add(a *Action) *Action {
	if _, ok := g.actions[a.ID]; !ok {
		g.order = append(g.order, a.ID)
	}
	g.actions[a.ID] = a
	if g.Root == "" {
		g.Root = a.ID
	}
	return a
}

// Text adds a literal action.
func (g *Graph) Text(id, text string) *Action {
	return g.add(&Action{ID: id, Kind: KindText, Text: text})
}

// Choose adds a choice among candidates.
func (g *Graph) Choose(id string, choices []string, width int, threshold float64) *Action {
	return g.add(&Action{ID: id, Kind: KindChoose, Choices: choices, Width: width, Threshold: threshold})
}

// Complete adds an open completion.
func (g *Graph) Complete(id string, length int, stop string, width int, threshold float64) *Action {
	if length <= 0 {
		length = DefaultCompletionLength
	}
	return g.add(&Action{ID: id, Kind: KindComplete, Length: length, Stop: stop, Width: width, Threshold: threshold})
}

// Connect appends to as a successor of from.
func (g *Graph) Connect(from, to string) {
	if a, ok := g.actions[from]; ok {
		a.Successors = append(a.Successors, to)
	}
}

// Get returns the action with the given id, or nil.
func (g *Graph) Get(id string) *Action { return g.actions[id] }

// Has reports whether id names an action.
func (g *Graph) Has(id string) bool {
	_, ok := g.actions[id]
	return ok
}

// Actions returns the actions in creation order.
func (g *Graph) Actions() []*Action {
	out := make([]*Action, len(g.order))
	for i, id := range g.order {
		out[i] = g.actions[id]
	}
	return out
}

// Count returns the number of actions of a kind.
func (g *Graph) Count(k Kind) int {
	n := 0
	for _, a := range g.actions {
		if a.Kind == k {
			n++
		}
	}
	return n
}

// Validate checks that every edge resolves and that Choose fan-out matches its candidates.
func (g *Graph) Validate() error {
	if !g.Has(g.Root) {
		return domain.Invariantf("action graph has no root")
	}
	for _, id := range g.order {
		a := g.actions[id]
		for _, s := range a.Successors {
			if !g.Has(s) {
				return domain.Invariantf("action %s: unknown successor %s", id, s)
			}
		}
		switch a.Kind {
		case KindChoose:
			if len(a.Choices) == 0 {
				return fmt.Errorf("action %s: %w", id, domain.ErrNoChoices)
			}
			if n := len(a.Successors); n > 1 && n != len(a.Choices) {
				return domain.Invariantf("action %s: %d successors for %d choices", id, n, len(a.Choices))
			}
		default:
			if len(a.Successors) > 1 {
				return domain.Invariantf("action %s: %s action with %d successors", id, a.Kind, len(a.Successors))
			}
		}
	}
	return nil
}

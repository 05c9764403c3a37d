package automaton

import "github.com/aretw0/cogflow/pkg/domain"

// None marks a missing edge.
const None = -1

// AbstractState is one node of the scope graph. State 0 is the root and wraps no field.
type AbstractState struct {
	ID    int
	Field *domain.Field
	// Flow enters the field's scope, or re-enters a list for its next element.
	Flow int
	// Exit leaves the field's scope towards the next sibling or the enclosing scope.
	Exit int
}

// Depth is 0 for the root.
func (s *AbstractState) Depth() int {
	if s.Field == nil {
		return 0
	}
	return s.Field.Depth
}

// Tag is "root" or the field tag.
func (s *AbstractState) Tag() string {
	if s.Field == nil {
		return "root"
	}
	return s.Field.Tag()
}

// Label is "root" or the field's dotted label.
func (s *AbstractState) Label() string {
	if s.Field == nil {
		return "root"
	}
	return s.Field.Label()
}

// buildAbstract turns a pre-ordered field list into a scope graph.
//
// A stack holds the states of each open scope. A field at index 0 opens a new
// scope below the previous top. A field shallower than the previous one closes
// scopes: each closed scope's last state exits to the last state of its
// enclosing scope, and the enclosing state exits to the new field. At the end the
// remaining open scopes are closed the same way, back to the root.
func buildAbstract(fields []*domain.Field) ([]AbstractState, error) {
	states := make([]AbstractState, 1, len(fields)+1)
	states[0] = AbstractState{ID: 0, Flow: None, Exit: None}
	stack := [][]int{{0}}

	last := func(level []int) int { return level[len(level)-1] }

	for _, f := range fields {
		id := len(states)
		st := AbstractState{ID: id, Field: f, Flow: None, Exit: None}
		if f.IsList() {
			st.Flow = id
		}
		states = append(states, st)

		top := last(stack[len(stack)-1])
		switch {
		case f.Index == 0:
			if f.Depth != len(stack) {
				return nil, domain.Invariantf("field %s: depth %d opens scope level %d", f.Label(), f.Depth, len(stack))
			}
			states[top].Flow = id
			stack = append(stack, []int{})

		case f.Depth < states[top].Depth():
			if f.Depth < 1 || f.Depth >= len(stack) {
				return nil, domain.Invariantf("field %s: depth %d closes no open scope", f.Label(), f.Depth)
			}
			for len(stack) > f.Depth+1 {
				closing := last(stack[len(stack)-1])
				stack = stack[:len(stack)-1]
				states[closing].Exit = last(stack[len(stack)-1])
			}
			states[last(stack[len(stack)-1])].Exit = id

		default:
			if f.Depth != len(stack)-1 {
				return nil, domain.Invariantf("field %s: depth %d is not the current depth %d", f.Label(), f.Depth, len(stack)-1)
			}
			states[top].Exit = id
		}
		stack[len(stack)-1] = append(stack[len(stack)-1], id)
	}

	for i := len(stack) - 1; i > 0; i-- {
		states[last(stack[i])].Exit = last(stack[i-1])
	}
	return states, nil
}

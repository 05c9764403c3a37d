package automaton

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/cogflow/pkg/domain"
)

// State is one (field, list-index path) instantiation of the concrete graph.
type State struct {
	ID       int
	Abstract *AbstractState
	// Indices holds one entry per depth: the list index for lists, the
	// visit count (always 0 once built) for records and scalars.
	Indices []int
	// Successors are the states that may follow, ordered by coordinates.
	Successors []int
	// CanEnd is set when the prompt may finish right after this state even
	// though it has successors (every remaining list can stop early).
	CanEnd bool
}

// IsRoot reports whether s is the root state.
func (s *State) IsRoot() bool { return s.Abstract.Field == nil }

// Field returns the wrapped field, nil for the root.
func (s *State) Field() *domain.Field { return s.Abstract.Field }

// Tag identifies the state: abstract tag and indices.
func (s *State) Tag() string {
	return makeTag(s.Abstract, s.Indices)
}

func makeTag(a *AbstractState, indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return a.Tag() + "@" + strings.Join(parts, "_")
}

// Path addresses the state's value in the frame data.
func (s *State) Path() domain.Path {
	if s.IsRoot() {
		return domain.Path{}
	}
	chain := s.Field().Ancestry()
	p := make(domain.Path, len(chain))
	for i, f := range chain {
		idx := domain.NoIndex
		if f.IsList() {
			idx = s.Indices[i]
		}
		p[i] = domain.Step{Name: f.Name, Index: idx}
	}
	return p
}

// Label is the concrete label used as frame key, e.g. "items[1].name".
func (s *State) Label() string {
	if s.IsRoot() {
		return "root"
	}
	return s.Path().Label()
}

// Coords interleave the field coordinates with the indices.
func (s *State) Coords() []int {
	if s.IsRoot() {
		return nil
	}
	fc := s.Field().Coords()
	out := make([]int, 0, 2*len(fc))
	for i, c := range fc {
		out = append(out, c, s.Indices[i])
	}
	return out
}

// rawState is a state of the unrolled graph before collapse.
type rawState struct {
	abs     int
	indices []int
	flow    int
	exit    int
}

type unroller struct {
	abs  []AbstractState
	raw  []rawState
	memo map[string]int
}

// unroll instantiates abstract state a at the given indices. indices carries a
// leading entry for the root, so len(indices) == depth+1.
func (u *unroller) unroll(a int, indices []int) (int, error) {
	st := &u.abs[a]
	if len(indices) != st.Depth()+1 {
		return None, domain.Invariantf("state %s unrolled at depth %d", st.Tag(), len(indices)-1)
	}
	count := indices[len(indices)-1]

	var flows, exits bool
	switch f := st.Field; {
	case f == nil, f.IsRecord() && !f.IsList():
		flows, exits = count == 0, count > 0
	case f.IsList():
		flows, exits = count < f.Range.Max, count >= f.Range.Min
	default:
		flows, exits = true, true
	}
	flows = flows && st.Flow != None
	exits = exits && st.Exit != None

	key := makeTag(st, indices[1:])
	if id, ok := u.memo[key]; ok {
		return id, nil
	}
	id := len(u.raw)
	u.raw = append(u.raw, rawState{abs: a, indices: slices.Clone(indices[1:]), flow: None, exit: None})
	u.memo[key] = id

	if flows {
		next := slices.Clone(indices)
		target := &u.abs[st.Flow]
		switch {
		case target.Depth() == st.Depth()+1:
			next = append(next, 0)
		case st.Flow == a:
			next[len(next)-1]++
		default:
			return None, domain.Invariantf("state %s flows to %s", st.Tag(), target.Tag())
		}
		f, err := u.unroll(st.Flow, next)
		if err != nil {
			return None, err
		}
		u.raw[id].flow = f
	}

	if exits {
		next := slices.Clone(indices)
		target := &u.abs[st.Exit]
		if delta := st.Depth() - target.Depth(); delta > 0 {
			next = next[:len(next)-delta]
			next[len(next)-1]++
		} else {
			next[len(next)-1] = 0
		}
		e, err := u.unroll(st.Exit, next)
		if err != nil {
			return None, err
		}
		u.raw[id].exit = e
	}
	return id, nil
}

// buildConcrete unrolls the abstract graph and reduces it to the final DAG.
//
// After unrolling, each raw state keeps one main successor (its flow when it
// has one, its exit otherwise) and possibly a leftover exit, which is the
// alternative of skipping that state. Following main successors from the root
// yields the main chain. Tail placeholders on it are removed: list states at
// index >= max, and record states revisited after their children. A removed
// state is resolved to the next kept state along the chain, or to the end.
// Finally the predecessor of every kept state receives the closure of that
// state's leftover exit.
func buildConcrete(abs []AbstractState) ([]*State, error) {
	u := &unroller{abs: abs, memo: make(map[string]int)}
	if _, err := u.unroll(0, []int{0}); err != nil {
		return nil, err
	}
	const root = 0

	n := len(u.raw)
	main := make([]int, n)
	left := make([]int, n)
	for id, r := range u.raw {
		main[id], left[id] = None, None
		switch {
		case r.flow != None:
			main[id], left[id] = r.flow, r.exit
		case r.exit != None && r.exit != root:
			main[id] = r.exit
		}
	}

	isTail := func(id int) bool {
		r := u.raw[id]
		f := abs[r.abs].Field
		if f == nil {
			return false
		}
		last := r.indices[len(r.indices)-1]
		if f.IsList() {
			return last >= f.Range.Max
		}
		return f.IsRecord() && last > 0
	}

	var chain []int
	onChain := make(map[int]bool)
	for cur := root; cur != None && !onChain[cur]; cur = main[cur] {
		chain = append(chain, cur)
		onChain[cur] = true
	}

	resolve := func(id int) int {
		for id != None && id != root {
			if !isTail(id) {
				return id
			}
			id = main[id]
		}
		return None
	}

	var kept []int
	for _, id := range chain {
		if !isTail(id) {
			kept = append(kept, id)
		}
	}
	remap := make(map[int]int, len(kept))
	states := make([]*State, len(kept))
	for i, id := range kept {
		remap[id] = i
		r := u.raw[id]
		states[i] = &State{ID: i, Abstract: &abs[r.abs], Indices: r.indices}
	}

	addSucc := func(s *State, raw int) {
		id := remap[raw]
		if !slices.Contains(s.Successors, id) {
			s.Successors = append(s.Successors, id)
		}
	}

	for _, id := range kept {
		if next := resolve(main[id]); next != None {
			if _, ok := remap[next]; !ok {
				return nil, domain.Invariantf("state %s resolves off the main chain", makeTag(&abs[u.raw[next].abs], u.raw[next].indices))
			}
			addSucc(states[remap[id]], next)
		}
	}

	for i := 1; i < len(kept); i++ {
		if left[kept[i]] == None {
			continue
		}
		pred := states[i-1]
		visited := make(map[int]bool)
		for e := left[kept[i]]; e != None; {
			r := resolve(e)
			if r == None {
				pred.CanEnd = true
				break
			}
			if visited[r] {
				break
			}
			if _, ok := remap[r]; !ok {
				return nil, domain.Invariantf("exit of %s resolves off the main chain", states[i].Tag())
			}
			visited[r] = true
			addSucc(pred, r)
			e = left[r]
		}
	}

	for _, s := range states {
		slices.SortStableFunc(s.Successors, func(a, b int) int {
			return slices.Compare(states[a].Coords(), states[b].Coords())
		})
		if s.CanEnd && len(s.Successors) == 0 {
			s.CanEnd = false
		}
	}
	return states, nil
}

func (s *State) String() string {
	return fmt.Sprintf("%s(%s)", s.Tag(), s.Label())
}

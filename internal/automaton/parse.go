package automaton

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/frame"
)

type parsedLine struct {
	state *State
	value string
	line  int
}

// Parse reads a generated text back into fr and resolves the chosen flow.
//
// Each line of the generated region must start with the line of one of the
// current state's successors. States seen for the first time are marked
// present and their values written; lists never entered get an empty value.
// The trailing "next:" line names the flow.
func (a *Automaton) Parse(text string, fr *frame.Frame, visits map[string]int) (domain.Flow, error) {
	lines := strings.Split(a.Region(text), "\n")

	cur := a.Root()
	visited := []*State{cur}
	var collected []parsedLine
	nextLine := -1

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), strings.TrimSpace(NextPrefix)) {
			nextLine = i
			break
		}
		t, value, ok := a.match(cur, line)
		if !ok {
			return domain.Flow{}, &domain.ParseError{
				Prompt:   a.Prompt.Name,
				LineNo:   i + 1,
				Line:     line,
				Expected: a.expected(cur),
			}
		}
		cur = t
		visited = append(visited, t)
		if fr.Get(t.Label()) == frame.Unknown {
			fr.Set(t.Label(), frame.Present)
			collected = append(collected, parsedLine{state: t, value: value, line: i + 1})
		}
	}
	if nextLine < 0 {
		return domain.Flow{}, &domain.ParseError{
			Prompt:   a.Prompt.Name,
			LineNo:   len(lines),
			Line:     lines[len(lines)-1],
			Expected: append(a.expected(cur), strings.TrimSpace(NextPrefix)),
		}
	}

	for _, pl := range collected {
		if f := pl.state.Field(); f.IsList() {
			p := pl.state.Path()
			fr.Counts[p.WithIndex(domain.NoIndex).Label()] = p[len(p)-1].Index + 1
		}
	}
	if err := a.emptyLists(fr, visited); err != nil {
		return domain.Flow{}, err
	}
	for _, pl := range collected {
		if pl.state.Field().IsRecord() {
			continue
		}
		v, err := a.coerce(pl)
		if err != nil {
			return domain.Flow{}, err
		}
		if err := fr.Write(pl.state.Path(), v); err != nil {
			return domain.Flow{}, fmt.Errorf("prompt %s line %d: %w", a.Prompt.Name, pl.line, err)
		}
	}
	for _, pl := range collected {
		if err := a.checkPosition(pl, fr); err != nil {
			return domain.Flow{}, err
		}
	}

	return a.resolveFlow(lines[nextLine], nextLine+1, visits)
}

func (a *Automaton) match(cur *State, line string) (*State, string, bool) {
	for _, id := range cur.Successors {
		t := a.states[id]
		prefix := a.Line(t)
		if strings.HasPrefix(line, prefix) {
			return t, strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return nil, "", false
}

func (a *Automaton) expected(cur *State) []string {
	out := make([]string, len(cur.Successors))
	for i, id := range cur.Successors {
		out[i] = a.Line(a.states[id])
	}
	return out
}

// emptyLists records a zero count for each list directly under a visited
// state that was never entered and has no count yet.
func (a *Automaton) emptyLists(fr *frame.Frame, visited []*State) error {
	seen := make(map[string]bool)
	for _, s := range visited {
		if !s.IsRoot() && !s.Field().IsRecord() {
			continue
		}
		base := s.Path()
		for _, f := range a.Prompt.Fields {
			if !f.IsList() || !childOf(f, s) {
				continue
			}
			p := base.Append(f.Name, domain.NoIndex)
			label := p.Label()
			if seen[label] {
				continue
			}
			seen[label] = true
			if _, ok := fr.Counts[label]; ok {
				continue
			}
			fr.Counts[label] = 0
			if err := fr.Write(p, nil); err != nil {
				return fmt.Errorf("prompt %s: empty list %s: %w", a.Prompt.Name, label, err)
			}
		}
	}
	return nil
}

func childOf(f *domain.Field, s *State) bool {
	if s.IsRoot() {
		return f.Parent == nil
	}
	return f.Parent == s.Field()
}

func (a *Automaton) coerce(pl parsedLine) (any, error) {
	f := pl.state.Field().Format
	if f.Kind != domain.FormatChoice || f.Mode != domain.ChoiceSelect {
		return pl.value, nil
	}
	n, err := strconv.Atoi(pl.value)
	if err != nil {
		return nil, &domain.ParseError{
			Prompt:   a.Prompt.Name,
			LineNo:   pl.line,
			Line:     pl.value,
			Expected: []string{"an integer position"},
			Cause:    err,
		}
	}
	return n, nil
}

// checkPosition rejects a select position past the elements its source holds
// once the whole response has been read.
func (a *Automaton) checkPosition(pl parsedLine, fr *frame.Frame) error {
	f := pl.state.Field().Format
	if f.Kind != domain.FormatChoice || f.Mode != domain.ChoiceSelect {
		return nil
	}
	offset := 1
	if a.Syntax.ZeroIndex {
		offset = 0
	}
	pos, _ := strconv.Atoi(pl.value)
	size := a.sourceCapacity(f.Path)
	if nodes, err := fr.Ravel(f.Path); err == nil {
		size = len(nodes)
	}
	if idx := pos - offset; idx < 0 || idx >= size {
		return &domain.ParseError{
			Prompt:   a.Prompt.Name,
			LineNo:   pl.line,
			Line:     pl.value,
			Expected: positions(size, offset),
			Cause:    fmt.Errorf("%w: position %d is outside %s", domain.ErrNoChoices, pos, f.Path.Label()),
		}
	}
	return nil
}

func (a *Automaton) resolveFlow(line string, lineNo int, visits map[string]int) (domain.Flow, error) {
	label := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), strings.TrimSpace(NextPrefix)))
	fl, ok := a.Prompt.Flow(label)
	if !ok {
		return domain.Flow{}, &domain.ParseError{
			Prompt:   a.Prompt.Name,
			LineNo:   lineNo,
			Line:     line,
			Expected: a.AvailableFlows(visits),
			Cause:    fmt.Errorf("%w %q", domain.ErrUnknownFlow, label),
		}
	}
	if exhausted(fl, visits) {
		return domain.Flow{}, domain.Invariantf("prompt %s: flow %s chosen after %s reached its limit of %d",
			a.Prompt.Name, fl.Label, fl.Prompt, fl.Limit)
	}
	return fl, nil
}

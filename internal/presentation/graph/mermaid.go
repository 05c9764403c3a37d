// Package graph renders programs, prompt automata and action graphs as
// Mermaid flowcharts.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/cogflow/internal/automaton"
	"github.com/aretw0/cogflow/internal/fta"
	"github.com/aretw0/cogflow/pkg/domain"
)

// Graph kinds accepted by Render.
const (
	KindProgram  = "program"
	KindAbstract = "abstract"
	KindConcrete = "concrete"
	KindAction   = "action"
)

// GraphOverlay marks the prompts a run went through.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromRun builds the overlay of a run record.
func OverlayFromRun(rec *domain.RunRecord) *GraphOverlay {
	o := &GraphOverlay{}
	for _, s := range rec.Steps {
		o.VisitedNodes = append(o.VisitedNodes, s.Prompt)
	}
	if n := len(o.VisitedNodes); n > 0 && rec.Status == domain.RunRunning {
		o.CurrentNode = o.VisitedNodes[n-1]
	}
	return o
}

// Program draws prompts and their flows. Entries point at their prompt and
// Return flows lead to the end node.
func Program(prog *domain.Program, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, e := range sortedKeys(prog.Entries) {
		fmt.Fprintf(&sb, "    entry_%s((\"%s\"))\n", sanitizeMermaidID(e), escape(e))
		fmt.Fprintf(&sb, "    entry_%s --> %s\n", sanitizeMermaidID(e), sanitizeMermaidID(prog.Entries[e]))
	}

	end := false
	for _, name := range prog.PromptNames() {
		p := prog.Prompts[name]
		id := sanitizeMermaidID(name)
		opener, closer := "[", "]"
		for _, ch := range p.Channels {
			if ch.Kind == domain.ChannelCall {
				opener, closer = "[[", "]]"
				break
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escape(name), closer)

		for _, fl := range p.EffectiveFlows() {
			to := "end_"
			if fl.Kind == domain.FlowControl {
				to = sanitizeMermaidID(fl.Prompt)
			} else {
				end = true
			}
			label := escape(fl.Label)
			if fl.Limit > 0 {
				label = fmt.Sprintf("%s ≤%d", label, fl.Limit)
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", id, label, to)
		}
	}
	if end {
		sb.WriteString("    end_((\"end\"))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}
	return sb.String()
}

// Abstract draws the scope graph of a prompt. Flow edges enter a scope or
// loop a list; exit edges leave it. List flows carry their range as guard.
func Abstract(a *automaton.Automaton) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	states := a.Abstracts()
	for i := range states {
		st := &states[i]
		fmt.Fprintf(&sb, "    a%d%s\n", st.ID, shape(st.Field, st.Label()))
	}
	for i := range states {
		st := &states[i]
		if st.Flow != automaton.None {
			label := "flow"
			if st.Field != nil && st.Field.IsList() && st.Flow == st.ID {
				label = "next " + st.Field.Range.String()
			}
			fmt.Fprintf(&sb, "    a%d -- \"%s\" --> a%d\n", st.ID, escape(label), st.Flow)
		}
		if st.Exit != automaton.None {
			fmt.Fprintf(&sb, "    a%d -. exit .-> a%d\n", st.ID, st.Exit)
		}
	}
	return sb.String()
}

// Concrete draws the unrolled states of a prompt with their successors.
// States that may end the prompt early link to the end node.
func Concrete(a *automaton.Automaton) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	var lists, records []string
	for _, st := range a.States() {
		fmt.Fprintf(&sb, "    c%d%s\n", st.ID, shape(st.Field(), st.Label()))
		if f := st.Field(); f != nil {
			switch {
			case f.IsRecord():
				records = append(records, fmt.Sprintf("c%d", st.ID))
			case f.IsList():
				lists = append(lists, fmt.Sprintf("c%d", st.ID))
			}
		}
	}
	end := false
	for _, st := range a.States() {
		for _, next := range st.Successors {
			fmt.Fprintf(&sb, "    c%d --> c%d\n", st.ID, next)
		}
		if len(st.Successors) == 0 || st.CanEnd {
			fmt.Fprintf(&sb, "    c%d -.-> end_\n", st.ID)
			end = true
		}
	}
	if end {
		sb.WriteString("    end_((\"end\"))\n")
	}
	if len(lists) > 0 {
		sb.WriteString("    classDef list fill:#e8f5e9,stroke:#2e7d32,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s list;\n", strings.Join(lists, ","))
	}
	if len(records) > 0 {
		sb.WriteString("    classDef record fill:#f3e5f5,stroke:#6a1b9a,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s record;\n", strings.Join(records, ","))
	}
	return sb.String()
}

// maxText bounds the text shown in an action node.
const maxText = 40

// Actions draws an action graph. Choose edges carry their candidate.
func Actions(g *fta.Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, act := range g.Actions() {
		id := sanitizeMermaidID(act.ID)
		switch act.Kind {
		case fta.KindText:
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, escape(truncate(act.Text)))
		case fta.KindChoose:
			fmt.Fprintf(&sb, "    %s{\"choose %d\"}\n", id, len(act.Choices))
		case fta.KindComplete:
			fmt.Fprintf(&sb, "    %s[/\"complete %d\"/]\n", id, act.Length)
		}
	}
	for _, act := range g.Actions() {
		id := sanitizeMermaidID(act.ID)
		if act.Kind == fta.KindChoose && len(act.Successors) > 1 {
			for i, next := range act.Successors {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", id, escape(truncate(act.Choices[i])), sanitizeMermaidID(next))
			}
			continue
		}
		for _, next := range act.Successors {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, sanitizeMermaidID(next))
		}
	}
	return sb.String()
}

// shape picks the node shape: circle for the root, subroutine for records,
// stadium for lists and rectangle for leaves.
func shape(f *domain.Field, label string) string {
	l := escape(label)
	switch {
	case f == nil:
		return fmt.Sprintf("((\"%s\"))", l)
	case f.IsRecord():
		return fmt.Sprintf("[[\"%s\"]]", l)
	case f.IsList():
		return fmt.Sprintf("([\"%s\"])", l)
	}
	return fmt.Sprintf("[\"%s\"]", l)
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if r := []rune(s); len(r) > maxText {
		return string(r[:maxText]) + "…"
	}
	return s
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "[", "_", "]", "_", "@", "_", " ", "_", ":", "_")
	return r.Replace(id)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package automaton

import (
	"strconv"
	"strings"

	"github.com/aretw0/cogflow/pkg/domain"
)

// headerEnd closes every rendered header. The parser falls back to the last
// occurrence of it when the text does not start with the expected header.
const headerEnd = "\nstart:\n"

// Line renders the prefix of the state's line, e.g. "> > name(text)[2]:".
// The root renders as the empty string.
func (a *Automaton) Line(s *State) string {
	if s.IsRoot() {
		return ""
	}
	f := s.Field()
	var b strings.Builder
	b.WriteString(strings.Repeat(a.Syntax.PromptIndent, len(s.Indices)))
	b.WriteString(f.Name)
	b.WriteString("(")
	b.WriteString(f.FormatLabel())
	b.WriteString(")")
	if f.IsList() {
		idx := s.Indices[len(s.Indices)-1]
		if !a.Syntax.ZeroIndex {
			idx++
		}
		b.WriteString("[" + strconv.Itoa(idx) + "]")
	}
	b.WriteString(":")
	return b.String()
}

// PromptText is the literal emitted before the state's value: the line
// followed by a space for leaves, the bare line for records.
func (a *Automaton) PromptText(s *State) string {
	if s.Field().IsRecord() {
		return a.Line(s)
	}
	return a.Line(s) + " "
}

func (a *Automaton) renderHeader() string {
	p := a.Prompt
	syn := a.Syntax

	var b strings.Builder
	b.WriteString(syn.HeaderPre)
	b.WriteString(strings.Join(p.Desc, " "))
	b.WriteString("\n")
	b.WriteString(syn.HeaderMechanic)
	b.WriteString("\n```\nstart:\n")
	for _, f := range p.Fields {
		line := f.Mechanics(syn.PromptIndent)
		if len(f.Desc) > 0 {
			line += " " + strings.Join(f.Desc, " ")
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteString("\n")
	}
	flows := p.EffectiveFlows()
	labels := make([]string, len(flows))
	for i, fl := range flows {
		labels[i] = fl.Label
	}
	b.WriteString("next: select which of " + strings.Join(labels, ",") + " will be the next step.")
	b.WriteString("\n```")

	if named := a.namedFormats(); len(named) > 0 {
		b.WriteString("\n")
		b.WriteString(syn.HeaderFormats)
		for _, f := range named {
			b.WriteString("\n" + syn.FormatListing + f.Ref + ": " + f.String())
			for _, d := range f.Desc {
				b.WriteString("\n  " + syn.FormatListing + d)
			}
		}
	}

	b.WriteString(syn.HeaderPost)
	b.WriteString(headerEnd)
	return b.String()
}

// namedFormats lists the program formats used by the prompt, in field order.
func (a *Automaton) namedFormats() []*domain.Format {
	seen := make(map[string]bool)
	var out []*domain.Format
	for _, f := range a.Prompt.Fields {
		if f.Format == nil || f.Format.Ref == "" || seen[f.Format.Ref] {
			continue
		}
		seen[f.Format.Ref] = true
		out = append(out, f.Format)
	}
	return out
}

// Region returns the generated part of text: what follows the header.
func (a *Automaton) Region(text string) string {
	if strings.HasPrefix(text, a.header) {
		return text[len(a.header):]
	}
	if i := strings.LastIndex(text, headerEnd); i >= 0 {
		return text[i+len(headerEnd):]
	}
	return text
}

package schema

import (
	"fmt"

	"github.com/aretw0/cogflow/pkg/domain"
)

// ValidateProgram checks the structure of every prompt of a program.
// All failures are reported together in an *AggregateError.
func ValidateProgram(prog *domain.Program) error {
	c := &collector{}
	if len(prog.Prompts) == 0 {
		c.add("program", "declares no prompt")
	}
	for entry, target := range prog.Entries {
		if _, ok := prog.Prompts[target]; !ok {
			c.add("entry "+entry, "targets unknown prompt %q", target)
		}
	}
	for name, f := range prog.Formats {
		checkFormat(c, "format "+name, f, nil, prog)
	}
	for _, name := range prog.PromptNames() {
		validatePrompt(c, prog, prog.Prompts[name])
	}
	for name, typ := range prog.Inputs {
		if _, err := ParseType(typ); err != nil {
			c.add("input "+name, "%v", err)
		}
	}
	return c.err()
}

// ValidatePrompt checks a single prompt. Named formats and flow targets are
// checked against prog when it is not nil.
func ValidatePrompt(prog *domain.Program, p *domain.Prompt) error {
	c := &collector{}
	validatePrompt(c, prog, p)
	return c.err()
}

func validatePrompt(c *collector, prog *domain.Program, p *domain.Prompt) {
	key := func(s string) string { return p.Name + "." + s }

	labels := make(map[string]*domain.Field, len(p.Fields))
	siblings := map[*domain.Field]int{}
	var prev *domain.Field
	for i, f := range p.Fields {
		label := f.Label()
		if _, dup := labels[label]; dup {
			c.add(key(label), "duplicate field label")
		}
		labels[label] = f

		if f.Parent == nil {
			if f.Depth != 1 {
				c.add(key(label), "top-level field must have depth 1, has %d", f.Depth)
			}
		} else {
			if f.Depth != f.Parent.Depth+1 {
				c.add(key(label), "depth %d does not follow parent depth %d", f.Depth, f.Parent.Depth)
			}
			if !f.Parent.IsRecord() {
				c.add(key(label), "parent %q is not a record", f.Parent.Label())
			}
		}
		if f.Index != siblings[f.Parent] {
			c.add(key(label), "sibling index %d, expected %d", f.Index, siblings[f.Parent])
		}
		siblings[f.Parent]++

		if i == 0 && f.Depth != 1 {
			c.add(key(label), "first field must be top-level")
		}
		if prev != nil && f.Depth > prev.Depth+1 {
			c.add(key(label), "depth jumps from %d to %d", prev.Depth, f.Depth)
		}
		if prev != nil && f.Depth == prev.Depth+1 && f.Parent != prev {
			c.add(key(label), "field is not listed right after its parent")
		}
		prev = f

		if f.Range != nil {
			r := f.Range
			if r.Min < 0 || r.Max < 1 || r.Min > r.Max {
				c.add(key(label), "malformed range %s", r)
			}
		}
		if f.Format != nil {
			checkFormat(c, key(label), f.Format, p, prog)
		}
	}
	for label, f := range labels {
		if f.IsRecord() && !hasChild(p, f) {
			c.add(key(label), "record declares no field")
		}
	}

	for i, ch := range p.Channels {
		ckey := key(fmt.Sprintf("channels[%d]", i))
		if labels[ch.Target.AbstractLabel()] == nil {
			c.add(ckey, "target %q does not name a field", ch.Target.Label())
		}
		switch ch.Kind {
		case domain.ChannelInput:
		case domain.ChannelDataflow:
			if ch.Prompt != "" && prog != nil {
				if _, ok := prog.Prompts[ch.Prompt]; !ok {
					c.add(ckey, "dataflow reads unknown prompt %q", ch.Prompt)
				}
			}
		case domain.ChannelCall:
			for _, kw := range ch.Kwargs {
				if !kw.Input && kw.Prompt == "" {
					c.add(ckey, "kwarg %q must read the inputs or a prompt", kw.Name)
				}
			}
			for _, b := range ch.Binds {
				if b.Name == "" || b.Output == "" {
					c.add(ckey, "bind must name both sides")
				}
			}
		default:
			c.add(ckey, "unknown channel kind %q", ch.Kind)
		}
	}

	seen := map[string]bool{}
	for _, fl := range p.Flows {
		fkey := key("flow " + fl.Label)
		if seen[fl.Label] {
			c.add(fkey, "duplicate flow label")
		}
		seen[fl.Label] = true
		switch fl.Kind {
		case domain.FlowControl:
			if prog != nil {
				if _, ok := prog.Prompts[fl.Prompt]; !ok {
					c.add(fkey, "targets unknown prompt %q", fl.Prompt)
				}
			}
			if fl.Limit < 0 {
				c.add(fkey, "negative limit %d", fl.Limit)
			}
		case domain.FlowReturn:
			for _, rf := range fl.Fields {
				if labels[rf.Path.AbstractLabel()] == nil {
					c.add(fkey, "returns unknown field %q", rf.Path.Label())
				}
			}
		default:
			c.add(fkey, "unknown flow kind %q", fl.Kind)
		}
	}
}

func hasChild(p *domain.Prompt, parent *domain.Field) bool {
	for _, f := range p.Fields {
		if f.Parent == parent {
			return true
		}
	}
	return false
}

func checkFormat(c *collector, key string, f *domain.Format, p *domain.Prompt, prog *domain.Program) {
	if f.Ref != "" && prog != nil {
		if _, ok := prog.Formats[f.Ref]; !ok {
			c.add(key, "unresolved format reference %q", f.Ref)
		}
	}
	if f.Width < 0 {
		c.add(key, "negative width %d", f.Width)
	}
	if f.Threshold < 0 || f.Threshold > 1 {
		c.add(key, "threshold %v outside [0,1]", f.Threshold)
	}
	switch f.Kind {
	case domain.FormatCompletion:
		if f.Length < 0 {
			c.add(key, "negative completion length %d", f.Length)
		}
	case domain.FormatEnum:
		if len(f.Values) == 0 {
			c.add(key, "enum declares no value")
		}
		dup := map[string]bool{}
		for _, v := range f.Values {
			if dup[v] {
				c.add(key, "duplicate enum value %q", v)
			}
			dup[v] = true
		}
	case domain.FormatChoice:
		if f.Mode != domain.ChoiceSelect && f.Mode != domain.ChoiceRepeat {
			c.add(key, "unknown choice mode %q", f.Mode)
		}
		if p == nil {
			return
		}
		src := p.FieldByLabel(f.Path.AbstractLabel())
		switch {
		case src == nil:
			c.add(key, "unresolved choice source %q", f.Path.Label())
		case !hasListOnPath(src):
			c.add(key, "choice source %q is not a list", f.Path.Label())
		case src.IsRecord() && f.Mode == domain.ChoiceRepeat:
			c.add(key, "cannot repeat record %q", f.Path.Label())
		}
	default:
		c.add(key, "unknown format kind %q", f.Kind)
	}
}

func hasListOnPath(f *domain.Field) bool {
	for _, a := range f.Ancestry() {
		if a.IsList() {
			return true
		}
	}
	return false
}

// Package compiler turns program documents into domain programs: it flattens
// nested fields, parses ranges, paths and format strings, and resolves
// named formats. Structural validation is left to pkg/schema.
package compiler

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/aretw0/cogflow/internal/dto"
	"github.com/aretw0/cogflow/pkg/domain"
)

// Compile converts a program document. Every malformed entry is reported.
func Compile(doc *dto.Program) (*domain.Program, error) {
	c := &compiler{}
	prog := &domain.Program{
		Name:    doc.Name,
		Desc:    doc.Desc,
		Inputs:  maps.Clone(doc.Inputs),
		Entries: maps.Clone(doc.Entries),
		Prompts: make(map[string]*domain.Prompt, len(doc.Prompts)),
		Formats: make(map[string]*domain.Format, len(doc.Formats)),
	}
	for name, f := range doc.Formats {
		if f == nil {
			c.errorf("format %s: empty definition", name)
			continue
		}
		format, err := formatFromMapping(*f)
		if err != nil {
			c.errorf("format %s: %v", name, err)
			continue
		}
		format.Ref = name
		prog.Formats[name] = format
	}
	c.formats = prog.Formats

	for i, pd := range doc.Prompts {
		if pd.Name == "" {
			c.errorf("prompts[%d]: missing name", i)
			continue
		}
		if _, dup := prog.Prompts[pd.Name]; dup {
			c.errorf("prompt %s: declared twice", pd.Name)
			continue
		}
		prog.Prompts[pd.Name] = c.prompt(pd)
	}
	if len(prog.Entries) == 0 && len(doc.Prompts) > 0 {
		prog.Entries = map[string]string{domain.DefaultEntry: doc.Prompts[0].Name}
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return prog, nil
}

// CompilePrompt converts a single prompt against the named formats of prog.
func CompilePrompt(prog *domain.Program, doc dto.Prompt) (*domain.Prompt, error) {
	c := &compiler{}
	if prog != nil {
		c.formats = prog.Formats
	}
	p := c.prompt(doc)
	if err := c.err(); err != nil {
		return nil, err
	}
	return p, nil
}

type compiler struct {
	formats map[string]*domain.Format
	errs    []error
}

func (c *compiler) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func (c *compiler) err() error { return errors.Join(c.errs...) }

func (c *compiler) prompt(doc dto.Prompt) *domain.Prompt {
	p := &domain.Prompt{Name: doc.Name, Desc: doc.Desc}
	c.fields(p, doc.Fields, nil, 1)

	for i, ch := range doc.Channels {
		channel, err := c.channel(ch)
		if err != nil {
			c.errorf("prompt %s: channels[%d]: %v", doc.Name, i, err)
			continue
		}
		p.Channels = append(p.Channels, channel)
	}
	for i, fl := range doc.Flows {
		flow, err := c.flow(fl)
		if err != nil {
			c.errorf("prompt %s: flows[%d]: %v", doc.Name, i, err)
			continue
		}
		p.Flows = append(p.Flows, flow)
	}
	return p
}

// fields appends docs and their children in pre-order.
func (c *compiler) fields(p *domain.Prompt, docs []dto.Field, parent *domain.Field, depth int) {
	for i, fd := range docs {
		f := &domain.Field{Name: fd.Name, Desc: fd.Desc, Depth: depth, Index: i, Parent: parent}
		where := fmt.Sprintf("prompt %s: field %s", p.Name, fd.Name)
		if parent != nil {
			where = fmt.Sprintf("prompt %s: field %s.%s", p.Name, parent.Label(), fd.Name)
		}
		if fd.Name == "" {
			c.errorf("%s: missing name", where)
		}

		rng, err := ParseRange(fd.Range)
		if err != nil {
			c.errorf("%s: %v", where, err)
		}
		f.Range = rng

		switch {
		case len(fd.Fields) > 0 && fd.Format != nil:
			c.errorf("%s: a record cannot have a format", where)
		case len(fd.Fields) == 0:
			format, err := c.format(fd.Format)
			if err != nil {
				c.errorf("%s: %v", where, err)
				format = &domain.Format{Kind: domain.FormatCompletion}
			}
			f.Format = format
		}

		p.Fields = append(p.Fields, f)
		c.fields(p, fd.Fields, f, depth+1)
	}
}

// format resolves the format of a leaf. A missing format is open text.
func (c *compiler) format(v any) (*domain.Format, error) {
	switch t := v.(type) {
	case nil:
		return &domain.Format{Kind: domain.FormatCompletion}, nil
	case string:
		if named, ok := c.formats[strings.TrimSpace(t)]; ok {
			cp := *named
			return &cp, nil
		}
		return ParseFormat(t)
	default:
		var fd dto.Format
		if err := dto.Decode(v, &fd); err != nil {
			return nil, err
		}
		return formatFromMapping(fd)
	}
}

func (c *compiler) channel(ch dto.Channel) (domain.Channel, error) {
	target, err := domain.ParsePath(ch.Target)
	if err != nil {
		return domain.Channel{}, err
	}
	out := domain.Channel{Kind: domain.ChannelKind(strings.ToLower(ch.Kind)), Target: target}

	switch out.Kind {
	case domain.ChannelInput, domain.ChannelDataflow:
		src := ch.Source
		if src == "" {
			src = ch.Target
		}
		if out.Source, err = domain.ParsePath(src); err != nil {
			return domain.Channel{}, err
		}
		out.Prompt = ch.Prompt
	case domain.ChannelCall:
		out.Extern, out.Entry = ch.Extern, ch.Entry
		for _, kw := range ch.Kwargs {
			k := domain.Kwarg{Name: kw.Name, Mapped: kw.Mapped, Prompt: kw.Prompt}
			raw := kw.Path
			if kw.Input != "" {
				k.Input, raw = true, kw.Input
			}
			if k.Path, err = domain.ParsePath(raw); err != nil {
				return domain.Channel{}, fmt.Errorf("kwarg %s: %w", kw.Name, err)
			}
			out.Kwargs = append(out.Kwargs, k)
		}
		for _, b := range ch.Binds {
			out.Binds = append(out.Binds, domain.Bind{Name: b.Name, Output: b.Output})
		}
	default:
		return domain.Channel{}, fmt.Errorf("unknown channel kind %q", ch.Kind)
	}
	return out, nil
}

func (c *compiler) flow(fl dto.Flow) (domain.Flow, error) {
	if fl.Prompt != "" {
		if len(fl.Return) > 0 {
			return domain.Flow{}, fmt.Errorf("flow %s both continues and returns", fl.Label)
		}
		label := fl.Label
		if label == "" {
			label = fl.Prompt
		}
		return domain.Flow{Label: label, Kind: domain.FlowControl, Prompt: fl.Prompt, Limit: fl.Limit}, nil
	}

	out := domain.Flow{Label: fl.Label, Kind: domain.FlowReturn}
	if out.Label == "" {
		out.Label = domain.DefaultReturnLabel
	}
	for _, rf := range fl.Return {
		raw := rf.Path
		if raw == "" {
			raw = rf.Name
		}
		path, err := domain.ParsePath(raw)
		if err != nil {
			return domain.Flow{}, fmt.Errorf("return %s: %w", rf.Name, err)
		}
		name := rf.Name
		if name == "" {
			name = path.Label()
		}
		out.Fields = append(out.Fields, domain.ReturnField{Name: name, Path: path})
	}
	return out, nil
}

// ParseRange parses "[n]" (exactly n elements) or "[min:max]". An empty
// string is a scalar.
func ParseRange(s string) (*domain.Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed range %q", s)
	}
	body := s[1 : len(s)-1]
	lo, hi, bounded := strings.Cut(body, ":")
	lower, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("malformed range %q", s)
	}
	if !bounded {
		return &domain.Range{Min: lower, Max: lower}, nil
	}
	upper, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("malformed range %q", s)
	}
	return &domain.Range{Min: lower, Max: upper}, nil
}

// ParseFormat parses the inline form of a format.
func ParseFormat(s string) (*domain.Format, error) {
	s = strings.TrimSpace(s)
	name, args, hasArgs := strings.Cut(s, "(")
	if hasArgs {
		if !strings.HasSuffix(args, ")") {
			return nil, fmt.Errorf("unterminated format %q", s)
		}
		args = strings.TrimSpace(args[:len(args)-1])
	}

	switch name {
	case string(domain.FormatCompletion):
		f := &domain.Format{Kind: domain.FormatCompletion}
		if args != "" {
			n, err := strconv.Atoi(args)
			if err != nil {
				return nil, fmt.Errorf("text length in %q: %w", s, err)
			}
			f.Length = n
		}
		return f, nil
	case string(domain.FormatEnum):
		values, err := splitValues(args)
		if err != nil {
			return nil, fmt.Errorf("enum values in %q: %w", s, err)
		}
		return &domain.Format{Kind: domain.FormatEnum, Values: values}, nil
	case string(domain.ChoiceSelect), string(domain.ChoiceRepeat):
		path, err := domain.ParsePath(args)
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			return nil, fmt.Errorf("%s needs a source path", name)
		}
		return &domain.Format{Kind: domain.FormatChoice, Mode: domain.ChoiceMode(name), Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", s)
	}
}

// splitValues splits `"a","b"` or `a, b`.
func splitValues(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, `"`) {
			v, err := strconv.Unquote(part)
			if err != nil {
				return nil, err
			}
			part = v
		}
		out = append(out, part)
	}
	return out, nil
}

func formatFromMapping(fd dto.Format) (*domain.Format, error) {
	f := &domain.Format{
		Desc:      fd.Desc,
		Length:    fd.Length,
		Values:    fd.Values,
		Width:     fd.Width,
		Threshold: fd.Threshold,
	}
	kind := strings.ToLower(fd.Kind)
	switch kind {
	case "", string(domain.FormatCompletion):
		f.Kind = domain.FormatCompletion
	case string(domain.FormatEnum):
		f.Kind = domain.FormatEnum
	case string(domain.FormatChoice), string(domain.ChoiceSelect), string(domain.ChoiceRepeat):
		f.Kind = domain.FormatChoice
		f.Mode = domain.ChoiceMode(strings.ToLower(fd.Mode))
		if kind != string(domain.FormatChoice) {
			f.Mode = domain.ChoiceMode(kind)
		}
		if f.Mode == "" {
			f.Mode = domain.ChoiceSelect
		}
		path, err := domain.ParsePath(fd.Source)
		if err != nil {
			return nil, err
		}
		f.Path = path
	default:
		return nil, fmt.Errorf("unknown format kind %q", fd.Kind)
	}
	return f, nil
}

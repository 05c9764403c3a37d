package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NoIndex marks a step that addresses a whole field rather than one list element.
const NoIndex = -1

// Step is one field name along a Path, with an optional list index.
type Step struct {
	Name  string `json:"name" yaml:"name"`
	Index int    `json:"index" yaml:"index"`
}

// Path addresses a value in a prompt's data tree, from the top-level field down.
type Path []Step

// Label renders the concrete label, e.g. "items[0].name".
func (p Path) Label() string {
	parts := make([]string, len(p))
	for i, s := range p {
		if s.Index == NoIndex {
			parts[i] = s.Name
		} else {
			parts[i] = fmt.Sprintf("%s[%d]", s.Name, s.Index)
		}
	}
	return strings.Join(parts, ".")
}

// AbstractLabel renders the label without indices, e.g. "items.name".
func (p Path) AbstractLabel() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Name
	}
	return strings.Join(parts, ".")
}

// Append returns a new path with the step added. The receiver is not modified.
func (p Path) Append(name string, index int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Name: name, Index: index})
}

// WithIndex returns a copy of the path whose last step carries index.
func (p Path) WithIndex(index int) Path {
	out := make(Path, len(p))
	copy(out, p)
	if len(out) > 0 {
		out[len(out)-1].Index = index
	}
	return out
}

func (p Path) String() string { return p.Label() }

// ParsePath parses a dotted path such as "choices", ".choices" or "items[2].name".
// A leading dot is accepted and ignored.
func ParsePath(s string) (Path, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return Path{}, nil
	}
	var p Path
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return nil, fmt.Errorf("empty step in path %q", s)
		}
		step := Step{Name: part, Index: NoIndex}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("unterminated index in path %q", s)
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid index in path %q", s)
			}
			step.Name = part[:open]
			step.Index = idx
		}
		if step.Name == "" {
			return nil, fmt.Errorf("empty field name in path %q", s)
		}
		p = append(p, step)
	}
	return p, nil
}

// MustParsePath is ParsePath for static paths. It panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

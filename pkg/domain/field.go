package domain

import (
	"fmt"
	"strings"
)

// Range bounds a list field. Min may be zero; Max is the maximum element count.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) String() string {
	if r.Min == r.Max {
		return fmt.Sprintf("[%d]", r.Max)
	}
	return fmt.Sprintf("[%d:%d]", r.Min, r.Max)
}

// Field is one entry of a prompt schema.
// Fields are listed in pre-order; Depth is 1 for top-level fields.
type Field struct {
	Name   string
	Desc   []string
	Depth  int
	Index  int
	Range  *Range  // nil for scalars and plain records
	Format *Format // nil for records
	Parent *Field  // nil for top-level fields
}

// Tag identifies the field inside its prompt.
func (f *Field) Tag() string {
	return fmt.Sprintf("%s_%d_%d", f.Name, f.Depth, f.Index)
}

// IsList reports whether the field is a bounded list.
func (f *Field) IsList() bool { return f.Range != nil }

// IsRecord reports whether the field opens a nested scope.
func (f *Field) IsRecord() bool { return f.Format == nil }

// Ancestry returns the chain of fields from the top-level ancestor down to f.
func (f *Field) Ancestry() []*Field {
	var chain []*Field
	for cur := f; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Label is the dotted field path without indices.
func (f *Field) Label() string {
	chain := f.Ancestry()
	names := make([]string, len(chain))
	for i, a := range chain {
		names[i] = a.Name
	}
	return strings.Join(names, ".")
}

// Coords are the sibling indices from the top-level ancestor down to f.
func (f *Field) Coords() []int {
	chain := f.Ancestry()
	coords := make([]int, len(chain))
	for i, a := range chain {
		coords[i] = a.Index
	}
	return coords
}

// FormatLabel is the label rendered between parentheses in prompt lines.
func (f *Field) FormatLabel() string {
	if f.IsRecord() {
		return "record"
	}
	return f.Format.Label()
}

// Mechanics renders the field's line of the syntax block shown in the prompt header.
func (f *Field) Mechanics(indent string) string {
	line := strings.Repeat(indent, f.Depth) + f.Name + "(" + f.FormatLabel() + ")"
	if f.Range != nil {
		line += f.Range.String()
	}
	return line + ":"
}

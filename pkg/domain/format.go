package domain

import (
	"fmt"
	"strings"
)

// FormatKind selects how a leaf value is generated.
type FormatKind string

const (
	// FormatCompletion is open text, generated until end of line.
	FormatCompletion FormatKind = "text"
	// FormatEnum picks one of a fixed set of values.
	FormatEnum FormatKind = "enum"
	// FormatChoice picks among the values of another list field of the same prompt.
	FormatChoice FormatKind = "choice"
)

// ChoiceMode controls what a choice format produces.
type ChoiceMode string

const (
	// ChoiceSelect produces the position of the chosen element.
	ChoiceSelect ChoiceMode = "select"
	// ChoiceRepeat produces the chosen element's value.
	ChoiceRepeat ChoiceMode = "repeat"
)

// Format describes a leaf field's value.
type Format struct {
	Kind FormatKind
	// Ref is the name of the program-level format this one was resolved from.
	// When set it replaces the inline label in prompt lines.
	Ref  string
	Desc []string

	Length int // completion budget in tokens, 0 for the default

	Values []string // enum

	Path Path // choice source
	Mode ChoiceMode

	// Pruning applied to the children produced by this field's action.
	Width     int
	Threshold float64
}

// String renders the format definition, e.g. text(20), enum("a","b") or select(.choices).
func (f *Format) String() string {
	switch f.Kind {
	case FormatCompletion:
		if f.Length > 0 {
			return fmt.Sprintf("text(%d)", f.Length)
		}
		return "text"
	case FormatEnum:
		return `enum("` + strings.Join(f.Values, `","`) + `")`
	case FormatChoice:
		return fmt.Sprintf("%s(.%s)", f.Mode, f.Path.Label())
	default:
		return string(f.Kind)
	}
}

// Label is Ref when the format is named, the definition otherwise.
func (f *Format) Label() string {
	if f.Ref != "" {
		return f.Ref
	}
	return f.String()
}

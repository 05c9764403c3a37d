// Package frame holds the runtime record of one prompt invocation: what is known
// about every concrete state, the resolved list lengths, and the collected data.
package frame

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/cogflow/pkg/domain"
)

// TriState is the knowledge held about one concrete state.
type TriState int8

const (
	// Unknown states must be generated.
	Unknown TriState = iota
	// Present states hold data that is already known.
	Present
	// Absent states are pruned and never visited.
	Absent
)

func (s TriState) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Frame is owned by a single prompt invocation.
type Frame struct {
	State  map[string]TriState // concrete label -> knowledge
	Counts map[string]int      // list label (without its own index) -> length
	Data   *domain.Record

	fields map[string]*domain.Field // abstract label -> field
}

// New creates a frame for a prompt. Every concrete label starts Unknown.
func New(fields []*domain.Field, labels []string) *Frame {
	f := &Frame{
		State:  make(map[string]TriState, len(labels)),
		Counts: make(map[string]int),
		Data:   domain.NewRecord(),
		fields: make(map[string]*domain.Field, len(fields)),
	}
	for _, fld := range fields {
		f.fields[fld.Label()] = fld
	}
	for _, l := range labels {
		f.State[l] = Unknown
	}
	return f
}

// Get returns the knowledge held for a concrete label.
func (f *Frame) Get(label string) TriState { return f.State[label] }

// Set records the knowledge held for a concrete label.
func (f *Frame) Set(label string, s TriState) { f.State[label] = s }

func (f *Frame) field(p domain.Path) (*domain.Field, error) {
	fld, ok := f.fields[p.AbstractLabel()]
	if !ok {
		return nil, fmt.Errorf("no field %q", p.AbstractLabel())
	}
	return fld, nil
}

// Insert writes known data at target, walking the field tree.
// A list value records its count, marks each element Present, and marks the
// remaining indices up to the list's maximum Absent. Maps recurse key by key.
// Leaf strings must fit on a single line.
func (f *Frame) Insert(target domain.Path, value any) error {
	for i, step := range target {
		fld, err := f.field(target[:i+1])
		if err != nil {
			return err
		}
		if fld.IsList() && step.Index == domain.NoIndex {
			cursor := target[:i+1]
			rest := target[i+1:]
			return f.distribute(cursor, rest, fld, value)
		}
	}

	if m, ok := value.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := f.Insert(target.Append(k, domain.NoIndex), m[k]); err != nil {
				return err
			}
		}
		if len(target) > 0 {
			f.State[target.Label()] = Present
		}
		return nil
	}

	if s, ok := value.(string); ok && strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("%s: value spans several lines and cannot be written on one prompt line", target.Label())
	}
	if err := f.Write(target, value); err != nil {
		return err
	}
	f.State[target.Label()] = Present
	return nil
}

func (f *Frame) distribute(cursor, rest domain.Path, fld *domain.Field, value any) error {
	label := cursor.Label()
	var items []any
	if value != nil {
		var ok bool
		if items, ok = toSlice(value); !ok {
			return fmt.Errorf("%s: list field expects a list, got %T", label, value)
		}
	}
	if len(items) < fld.Range.Min || len(items) > fld.Range.Max {
		return fmt.Errorf("%s: %d element(s) outside range %s", label, len(items), fld.Range)
	}
	if prev, ok := f.Counts[label]; ok && prev != len(items) {
		return fmt.Errorf("%s: count %d conflicts with %d", label, len(items), prev)
	}
	f.Counts[label] = len(items)

	if len(items) == 0 {
		if err := f.Write(cursor, nil); err != nil {
			return err
		}
	}
	for k, item := range items {
		elem := cursor.WithIndex(k)
		f.State[elem.Label()] = Present
		full := append(elem, rest...)
		if err := f.Insert(full, item); err != nil {
			return err
		}
	}
	for k := len(items); k < fld.Range.Max; k++ {
		f.State[cursor.WithIndex(k).Label()] = Absent
	}
	return nil
}

// Finalize propagates absence to every descendant of an Absent state.
func (f *Frame) Finalize() error {
	var absent []string
	for label, s := range f.State {
		if s == Absent {
			absent = append(absent, label+".")
		}
	}
	for label, s := range f.State {
		for _, prefix := range absent {
			if strings.HasPrefix(label, prefix) {
				if s == Present {
					return domain.Invariantf("%s is known but its ancestor %s is absent", label, strings.TrimSuffix(prefix, "."))
				}
				f.State[label] = Absent
				break
			}
		}
	}
	return nil
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case *domain.List:
		out := make([]any, len(s.Items))
		for i, n := range s.Items {
			out[i] = domain.ToValue(n)
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

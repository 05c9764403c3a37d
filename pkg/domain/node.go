package domain

import (
	"reflect"
	"sort"
)

// Node is a value of a frame's data tree: a *Scalar, a *List or a *Record.
type Node interface {
	node()
}

// Scalar holds a leaf value (a string for generated text, an int for selections).
type Scalar struct {
	Value any
}

// List holds list elements by position. Elements may be nil until written.
type List struct {
	Items []Node
}

// Record holds named children in insertion order.
type Record struct {
	keys   []string
	fields map[string]Node
}

func (*Scalar) node() {}
func (*List) node()   {}
func (*Record) node() {}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: make(map[string]Node)}
}

// Get returns the child stored under key.
func (r *Record) Get(key string) (Node, bool) {
	n, ok := r.fields[key]
	return n, ok
}

// Has reports whether key was set.
func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Set stores a child, keeping the first insertion position of key.
func (r *Record) Set(key string, n Node) {
	if r.fields == nil {
		r.fields = make(map[string]Node)
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = n
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len is the number of keys.
func (r *Record) Len() int { return len(r.keys) }

// FromValue converts plain Go values (maps, slices, scalars) into a Node.
// Map keys are ordered lexically since Go maps carry no order.
func FromValue(v any) Node {
	switch val := v.(type) {
	case nil:
		return nil
	case Node:
		return val
	case map[string]any:
		rec := NewRecord()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rec.Set(k, FromValue(val[k]))
		}
		return rec
	case []any:
		list := &List{Items: make([]Node, len(val))}
		for i, item := range val {
			list.Items[i] = FromValue(item)
		}
		return list
	case string, bool, int, int64, float64:
		return &Scalar{Value: val}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return &Scalar{Value: v}
		}
		list := &List{Items: make([]Node, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			list.Items[i] = FromValue(rv.Index(i).Interface())
		}
		return list
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return &Scalar{Value: v}
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return FromValue(m)
	}
	return &Scalar{Value: v}
}

// ToValue converts a Node back into plain Go values.
func ToValue(n Node) any {
	switch val := n.(type) {
	case nil:
		return nil
	case *Scalar:
		if val == nil {
			return nil
		}
		return val.Value
	case *List:
		if val == nil {
			return nil
		}
		out := make([]any, len(val.Items))
		for i, item := range val.Items {
			out[i] = ToValue(item)
		}
		return out
	case *Record:
		if val == nil {
			return nil
		}
		out := make(map[string]any, len(val.keys))
		for _, k := range val.keys {
			out[k] = ToValue(val.fields[k])
		}
		return out
	}
	return nil
}

package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates one run input.
type Type interface {
	// Name returns the declared spelling of the type (e.g., "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type scalarType struct {
	name  string
	check func(any) bool
}

func (t scalarType) Name() string { return t.name }

func (t scalarType) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

type listType struct {
	elem Type
}

func (t listType) Name() string { return "[" + t.elem.Name() + "]" }

func (t listType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

var scalars = map[string]Type{
	"string": scalarType{"string", func(v any) bool { _, ok := v.(string); return ok }},
	"bool":   scalarType{"bool", func(v any) bool { _, ok := v.(bool); return ok }},
	"int": scalarType{"int", func(v any) bool {
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64.
			return n == float64(int64(n))
		}
		return false
	}},
	"float": scalarType{"float", func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
		return false
	}},
	"record": scalarType{"record", func(v any) bool { _, ok := v.(map[string]any); return ok }},
	"any":    scalarType{"any", func(any) bool { return true }},
}

// ParseType converts a declared type name to a Type.
// Lists nest with brackets: "[string]", "[[int]]".
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") && len(name) > 2 {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return listType{elem: elem}, nil
	}
	if t, ok := scalars[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unsupported type: %s", name)
}

// ValidateInputs checks run inputs against the program's declared types.
// Every declared input is required; undeclared inputs are accepted.
func ValidateInputs(declared map[string]string, inputs map[string]any) error {
	c := &collector{}
	for name, typName := range declared {
		typ, err := ParseType(typName)
		if err != nil {
			c.add("input "+name, "%v", err)
			continue
		}
		v, ok := inputs[name]
		if !ok {
			c.add("input "+name, "required")
			continue
		}
		if err := typ.Validate(v); err != nil {
			c.errs = append(c.errs, &ValidationError{Key: "input " + name, Reason: err.Error(), Value: v})
		}
	}
	return c.err()
}

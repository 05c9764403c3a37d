package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/cogflow/pkg/domain"
)

// ParseInputs merges a JSON object with key=value pairs, the pairs winning.
// A pair's value is read as JSON when it parses, as a plain string otherwise,
// so n=3 is an int and name=bob a string.
func ParseInputs(raw string, pairs []string) (map[string]any, error) {
	inputs := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: expected key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		inputs[key] = v
	}
	domain.RestoreIntegerValues(inputs)
	return inputs, nil
}

package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks the values of keys matching any pattern in a run's
// inputs, outputs and step data. Generated step text is dropped when any key
// was masked since it repeats the values.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, run *domain.RunRecord) error {
	cloned := *run
	cloned.Inputs = m.mask(run.Inputs, nil)
	cloned.Outputs = m.mask(run.Outputs, nil)
	cloned.Steps = slices.Clone(run.Steps)
	for i := range cloned.Steps {
		masked := false
		cloned.Steps[i].Data = m.mask(run.Steps[i].Data, &masked)
		if masked {
			cloned.Steps[i].Text = ""
		}
	}
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a masked deep copy of values.
func (m *piiMiddleware) mask(values map[string]any, masked *bool) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if m.matches(k) {
			out[k] = Mask
			if masked != nil {
				*masked = true
			}
			continue
		}
		out[k] = m.maskValue(v, masked)
	}
	return out
}

func (m *piiMiddleware) maskValue(v any, masked *bool) any {
	switch t := v.(type) {
	case map[string]any:
		return m.mask(t, masked)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = m.maskValue(item, masked)
		}
		return out
	default:
		return v
	}
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

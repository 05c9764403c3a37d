package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

// CogFunc defines the signature of an in-process cog.
// It receives a context, an entry and named inputs, and returns named outputs.
type CogFunc func(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error)

// Func adapts a CogFunc into a ports.Cog.
func Func(tag string, fn CogFunc) ports.Cog {
	return &funcCog{tag: tag, fn: fn}
}

type funcCog struct {
	tag string
	fn  CogFunc
}

func (c *funcCog) Tag() string { return c.tag }

func (c *funcCog) Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error) {
	return c.fn(ctx, entry, inputs)
}

// Registry manages the available cogs.
type Registry struct {
	mu   sync.RWMutex
	cogs map[string]ports.Cog
}

// NewRegistry creates a registry holding the given cogs.
func NewRegistry(cogs ...ports.Cog) *Registry {
	r := &Registry{cogs: make(map[string]ports.Cog)}
	for _, c := range cogs {
		r.Register(c)
	}
	return r
}

// Register adds a cog under its tag.
// If a cog with the same tag exists, it is overwritten.
func (r *Registry) Register(c ports.Cog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cogs[c.Tag()] = c
}

// Get looks up a cog by tag.
// Returns domain.ErrCogNotFound if the cog is not registered.
func (r *Registry) Get(tag string) (ports.Cog, error) {
	r.mu.RLock()
	c, ok := r.cogs[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCogNotFound, tag)
	}
	return c, nil
}

// Tags returns the registered tags in lexical order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.cogs))
	for t := range r.cogs {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

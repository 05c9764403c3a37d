package fta

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

// DefaultMaxNodes bounds the size of a generated token tree.
const DefaultMaxNodes = 100_000

// Stats summarizes one generation.
type Stats struct {
	Queries int // model log-probability queries
	Nodes   int // token tree nodes, pruned ones included
}

type options struct {
	logger   *slog.Logger
	maxNodes int
}

// Option configures Generate.
type Option func(*options)

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxNodes bounds the token tree. Generation fails once the bound is exceeded.
func WithMaxNodes(n int) Option {
	return func(o *options) { o.maxNodes = n }
}

type generator struct {
	graph *Graph
	model ports.LanguageModel
	tree  *Tree
	stats Stats
	opts  options

	texts   map[string][]int
	choices map[string][][]int
	stops   map[string][]int
}

// Generate walks the action graph from its root against the model and returns
// the token tree. Generation is sequential: siblings are expanded one at a time.
func Generate(ctx context.Context, g *Graph, model ports.LanguageModel, opts ...Option) (*Tree, Stats, error) {
	o := options{logger: logging.NewNop(), maxNodes: DefaultMaxNodes}
	for _, opt := range opts {
		opt(&o)
	}
	if err := g.Validate(); err != nil {
		return nil, Stats{}, err
	}
	gen := &generator{
		graph:   g,
		model:   model,
		tree:    NewTree(),
		opts:    o,
		texts:   make(map[string][]int),
		choices: make(map[string][][]int),
		stops:   make(map[string][]int),
	}
	err := gen.expand(ctx, 0, g.Root, nil)
	gen.stats.Nodes = len(gen.tree.Nodes)
	if err != nil {
		return nil, gen.stats, err
	}
	return gen.tree, gen.stats, nil
}

func (g *generator) expand(ctx context.Context, at int, id string, prompt []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.opts.maxNodes > 0 && len(g.tree.Nodes) > g.opts.maxNodes {
		return fmt.Errorf("token tree exceeds %d nodes", g.opts.maxNodes)
	}
	a := g.graph.Get(id)
	if a == nil {
		return domain.Invariantf("unknown action %s", id)
	}

	switch a.Kind {
	case KindText:
		toks, err := g.tokenizeText(ctx, a)
		if err != nil {
			return err
		}
		child := g.tree.Add(at, id, toks, ones(len(toks)))
		g.tree.Finalize(at)
		return g.follow(ctx, child, a, 0, extend(prompt, toks...))

	case KindChoose:
		cands, err := g.tokenizeChoices(ctx, a)
		if err != nil {
			return err
		}
		paths, err := buildTrie(cands).eval(ctx, g.model, prompt, &g.stats)
		if err != nil {
			return fmt.Errorf("choose %s: %w", id, err)
		}
		sort.SliceStable(paths, func(i, j int) bool { return paths[i].index < paths[j].index })
		candidate := make(map[int]int, len(paths))
		for _, p := range paths {
			n := g.tree.Add(at, id, p.tokens, p.probs)
			candidate[n.ID] = p.index
		}
		g.tree.prune(at, a.Width, a.Threshold)
		g.tree.Finalize(at)
		g.opts.logger.Debug("choose evaluated", "action", id, "candidates", len(cands), "kept", len(g.tree.Nodes[at].Children))

		for _, c := range g.tree.Nodes[at].Children {
			n := g.tree.Nodes[c]
			if err := g.follow(ctx, n, a, candidate[c], extend(prompt, n.Tokens...)); err != nil {
				return err
			}
		}
		return nil

	case KindComplete:
		stop, err := g.tokenizeStop(ctx, a)
		if err != nil {
			return err
		}
		toks, probs, err := complete(ctx, g.model, prompt, stop, a.Length, &g.stats)
		if err != nil {
			return fmt.Errorf("complete %s: %w", id, err)
		}
		child := g.tree.Add(at, id, toks, probs)
		g.tree.Finalize(at)
		return g.follow(ctx, child, a, 0, extend(prompt, toks...))
	}
	return domain.Invariantf("action %s has unknown kind %d", id, a.Kind)
}

func (g *generator) follow(ctx context.Context, n *Node, a *Action, candidate int, prompt []int) error {
	next, ok := a.Next(candidate)
	if !ok {
		n.Done = true
		g.tree.Finalize(n.ID)
		return nil
	}
	return g.expand(ctx, n.ID, next, prompt)
}

func (g *generator) tokenizeText(ctx context.Context, a *Action) ([]int, error) {
	if toks, ok := g.texts[a.ID]; ok {
		return toks, nil
	}
	toks, err := g.model.Tokenize(ctx, a.Text)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", a.ID, err)
	}
	g.texts[a.ID] = toks
	return toks, nil
}

func (g *generator) tokenizeChoices(ctx context.Context, a *Action) ([][]int, error) {
	if toks, ok := g.choices[a.ID]; ok {
		return toks, nil
	}
	out := make([][]int, len(a.Choices))
	for i, c := range a.Choices {
		toks, err := g.model.Tokenize(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("tokenize %s: %w", a.ID, err)
		}
		out[i] = toks
	}
	g.choices[a.ID] = out
	return out, nil
}

func (g *generator) tokenizeStop(ctx context.Context, a *Action) ([]int, error) {
	if a.Stop == "" {
		return nil, nil
	}
	if toks, ok := g.stops[a.ID]; ok {
		return toks, nil
	}
	toks, err := g.model.Tokenize(ctx, a.Stop)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", a.ID, err)
	}
	g.stops[a.ID] = toks
	return toks, nil
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

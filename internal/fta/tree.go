package fta

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/aretw0/cogflow/pkg/ports"
)

// Share is a child's fraction of a sibling sum. It is undefined when the sum is 0.
type Share struct {
	Value   float64
	Defined bool
}

func shareOf(v, sum float64) Share {
	if sum > 0 {
		return Share{Value: v / sum, Defined: true}
	}
	return Share{}
}

// Proba is the probability bundle of a token tree node.
type Proba struct {
	Tokens []float64 // probability of each local token
	Count  int       // tokens from the root to this node
	Depth  int

	LocalProd     float64 // product of the local tokens
	LocalProdNorm float64 // LocalProd^(1/len(Tokens))

	TokwiseProd     float64 // product along the path
	TokwiseProdNorm float64 // TokwiseProd^(1/Count)

	// Set by Finalize over the node's complete sibling group.
	LocalShare       Share
	LocalShareNorm   Share
	TokwiseShare     Share
	TokwiseShareNorm Share
}

func newProba(tokens []float64, parent *Proba) Proba {
	local := 1.0
	for _, p := range tokens {
		local *= p
	}
	p := Proba{
		Tokens:        tokens,
		LocalProd:     local,
		LocalProdNorm: normalize(local, len(tokens)),
		Count:         len(tokens),
		TokwiseProd:   local,
	}
	if parent != nil {
		p.Depth = parent.Depth + 1
		p.Count += parent.Count
		p.TokwiseProd *= parent.TokwiseProd
	}
	p.TokwiseProdNorm = normalize(p.TokwiseProd, p.Count)
	return p
}

func normalize(prod float64, n int) float64 {
	if n == 0 {
		return 1
	}
	return math.Pow(prod, 1/float64(n))
}

// Node is one token run of a Tree.
type Node struct {
	ID       int
	Parent   int // -1 for the root
	Action   string
	Tokens   []int
	Proba    Proba
	Children []int

	// Finalized is set once the children group is complete and shares are computed.
	Finalized bool
	// Done marks leaves that completed the action graph.
	Done bool
}

// Tree is an arena of nodes rooted at node 0.
type Tree struct {
	Nodes []*Node
}

// NewTree returns a tree holding only the empty root.
func NewTree() *Tree {
	return &Tree{Nodes: []*Node{{ID: 0, Parent: -1}}}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.Nodes[0] }

// Add appends a child of parent with its local token probabilities.
func (t *Tree) Add(parent int, action string, tokens []int, probs []float64) *Node {
	var pp *Proba
	if parent > 0 {
		pp = &t.Nodes[parent].Proba
	}
	n := &Node{
		ID:     len(t.Nodes),
		Parent: parent,
		Action: action,
		Tokens: tokens,
		Proba:  newProba(probs, pp),
	}
	t.Nodes = append(t.Nodes, n)
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, n.ID)
	return n
}

// Finalize computes the shares of id's children. It must only run once the
// sibling group is complete.
func (t *Tree) Finalize(id int) {
	n := t.Nodes[id]
	var sumLocal, sumLocalNorm, sumTok, sumTokNorm float64
	for _, c := range n.Children {
		p := &t.Nodes[c].Proba
		sumLocal += p.LocalProd
		sumLocalNorm += p.LocalProdNorm
		sumTok += p.TokwiseProd
		sumTokNorm += p.TokwiseProdNorm
	}
	for _, c := range n.Children {
		p := &t.Nodes[c].Proba
		p.LocalShare = shareOf(p.LocalProd, sumLocal)
		p.LocalShareNorm = shareOf(p.LocalProdNorm, sumLocalNorm)
		p.TokwiseShare = shareOf(p.TokwiseProd, sumTok)
		p.TokwiseShareNorm = shareOf(p.TokwiseProdNorm, sumTokNorm)
	}
	n.Finalized = true
}

// Path returns the tokens from the root down to id.
func (t *Tree) Path(id int) []int {
	var runs [][]int
	for cur := id; cur >= 0; cur = t.Nodes[cur].Parent {
		runs = append(runs, t.Nodes[cur].Tokens)
	}
	var out []int
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i]...)
	}
	return out
}

// Leaves returns completed leaves in depth-first order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	var walk func(id int)
	walk = func(id int) {
		n := t.Nodes[id]
		if len(n.Children) == 0 {
			if n.Done {
				out = append(out, n)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(0)
	return out
}

// Scoring ranks a completed path from its leaf's bundle.
type Scoring func(Proba) float64

// Scoring schemes by name.
var scorings = map[string]Scoring{
	"tokwise_norm":       func(p Proba) float64 { return p.TokwiseProdNorm },
	"tokwise":            func(p Proba) float64 { return p.TokwiseProd },
	"tokwise_share":      func(p Proba) float64 { return p.TokwiseShare.Value },
	"tokwise_share_norm": func(p Proba) float64 { return p.TokwiseShareNorm.Value },
	"local":              func(p Proba) float64 { return p.LocalProdNorm },
}

// DefaultScoring is the token-count normalized path product.
const DefaultScoring = "tokwise_norm"

// ScoringByName resolves a scheme. An empty name selects DefaultScoring.
func ScoringByName(name string) (Scoring, error) {
	if name == "" {
		name = DefaultScoring
	}
	s, ok := scorings[name]
	if !ok {
		return nil, fmt.Errorf("unknown scoring %q", name)
	}
	return s, nil
}

// Result is one decoded root-to-leaf path.
type Result struct {
	Text   string
	Tokens []int
	Proba  Proba
	Score  float64
}

// Results decodes every completed path and sorts them best first. Ties keep
// depth-first order.
func (t *Tree) Results(ctx context.Context, model ports.LanguageModel, score Scoring) ([]Result, error) {
	if score == nil {
		score = scorings[DefaultScoring]
	}
	leaves := t.Leaves()
	results := make([]Result, 0, len(leaves))
	for _, leaf := range leaves {
		toks := t.Path(leaf.ID)
		text, err := model.Detokenize(ctx, toks)
		if err != nil {
			return nil, fmt.Errorf("detokenize: %w", err)
		}
		results = append(results, Result{Text: text, Tokens: toks, Proba: leaf.Proba, Score: score(leaf.Proba)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

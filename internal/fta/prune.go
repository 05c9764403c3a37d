package fta

import "sort"

// prune keeps the best children of a node according to width and threshold,
// ranked by normalized path probability. Order among survivors is preserved.
func (t *Tree) prune(id int, width int, threshold float64) {
	n := t.Nodes[id]
	if len(n.Children) <= 1 || (width <= 0 && threshold <= 0) {
		return
	}
	score := func(c int) float64 { return t.Nodes[c].Proba.TokwiseProdNorm }

	ranked := make([]int, len(n.Children))
	copy(ranked, n.Children)
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) > score(ranked[j]) })

	keep := len(ranked)
	if threshold > 0 {
		limit := threshold * score(ranked[0])
		keep = 0
		for _, c := range ranked {
			if score(c) >= limit {
				keep++
			}
		}
		if keep == 0 {
			keep = 1
		}
	}
	if width > 0 && width < keep {
		keep = width
	}

	survivors := make(map[int]bool, keep)
	for _, c := range ranked[:keep] {
		survivors[c] = true
	}
	children := n.Children[:0]
	for _, c := range n.Children {
		if survivors[c] {
			children = append(children, c)
		}
	}
	n.Children = children
}

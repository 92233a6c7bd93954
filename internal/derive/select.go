package derive

import "github.com/starford/munchie/internal/models"

// candidate references a node chosen by a strategy.
type candidate struct {
	node     int
	parent   int // index of the parent candidate's node, -1 for none
	modelIDs []string
}

func selectSmart(nodes []dirNode) []candidate {
	var out []candidate
	for i, n := range nodes {
		if n.parent < 0 || len(n.modelIDs) == 0 {
			continue
		}
		out = append(out, candidate{node: i, parent: -1, modelIDs: n.modelIDs})
	}
	return out
}

func selectStrict(nodes []dirNode) []candidate {
	// Pre-order puts every child after its parent, so a reverse pass settles
	// all descendants before their ancestor.
	hasContent := make([]bool, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		if len(nodes[i].modelIDs) > 0 {
			hasContent[i] = true
		}
		if p := nodes[i].parent; hasContent[i] && p >= 0 {
			hasContent[p] = true
		}
	}

	var out []candidate
	for i, n := range nodes {
		if n.parent < 0 || !hasContent[i] {
			continue
		}
		// The scan root (parent == -1) never qualifies, so its children stay
		// parentless.
		parent := -1
		for p := n.parent; p >= 0 && nodes[p].parent >= 0; p = nodes[p].parent {
			if hasContent[p] {
				parent = p
				break
			}
		}
		out = append(out, candidate{node: i, parent: parent, modelIDs: n.modelIDs})
	}
	return out
}

func selectTopLevel(nodes []dirNode) []candidate {
	top := make(map[int]int) // node index -> position in out
	var out []candidate
	for i, n := range nodes {
		if n.depth == 1 {
			top[i] = len(out)
			out = append(out, candidate{node: i, parent: -1})
		}
	}

	// ancestor[i] is the depth-1 node above i; pre-order guarantees it is
	// resolved before any descendant.
	ancestor := make([]int, len(nodes))
	for i, n := range nodes {
		switch {
		case n.depth == 0:
			ancestor[i] = -1
		case n.depth == 1:
			ancestor[i] = i
		default:
			ancestor[i] = ancestor[n.parent]
		}
		if a := ancestor[i]; a >= 0 {
			pos := top[a]
			out[pos].modelIDs = models.UnionIDs(out[pos].modelIDs, n.modelIDs)
		}
	}

	filtered := out[:0]
	for _, c := range out {
		if len(c.modelIDs) > 0 {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

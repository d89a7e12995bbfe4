package chain

import "container/heap"

// seqMinHeap is the ready queue of Kahn's algorithm ordered by insertion sequence.
type seqMinHeap []*Node

func (h seqMinHeap) Len() int           { return len(h) }
func (h seqMinHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }
func (h seqMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *seqMinHeap) Push(x any)        { *h = append(*h, x.(*Node)) }
func (h *seqMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder returns a deterministic topological order of the chain's nodes.
// Among ready nodes the earliest inserted runs first.
func (c *Chain) topoOrder() []*Node {
	indeg := make(map[*Node]int, len(c.nodes))

	ready := &seqMinHeap{}
	heap.Init(ready)
	for n := range c.nodes {
		indeg[n] = len(n.dependsOn)
		if indeg[n] == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]*Node, 0, len(c.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		out = append(out, n)
		for _, m := range n.dependents {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}

	return out
}

// reaches reports whether target is reachable from start following dependsOn edges.
func reaches(start, target *Node) bool {
	visited := map[*Node]bool{}
	stack := []*Node{start}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == target {
			return true
		}

		if visited[n] {
			continue
		}

		visited[n] = true
		stack = append(stack, n.dependsOn...)
	}

	return false
}

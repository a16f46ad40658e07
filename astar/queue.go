package astar

import "agent-navigator/navgraph"

// item is a frontier entry in the A* search
type item struct {
	node  navgraph.NodeID
	g     float64 // cost from start to this node
	f     float64 // g plus heuristic to goal
	index int     // index in the heap
}

// frontier implements heap.Interface for the A* open set. Entries are ordered
// by f, then by larger g, then by node id, so the pop order is deterministic.
type frontier []*item

func (pq frontier) Len() int { return len(pq) }

func (pq frontier) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	if pq[i].g != pq[j].g {
		return pq[i].g > pq[j].g
	}
	return pq[i].node < pq[j].node
}

func (pq frontier) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *frontier) Push(x any) {
	n := len(*pq)
	entry := x.(*item)
	entry.index = n
	*pq = append(*pq, entry)
}

func (pq *frontier) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[0 : n-1]
	return entry
}

// Package astar finds optimal routes between two nodes of a navigation graph
// with best-first search guided by a straight-line heuristic.
//
// The heuristic is the Euclidean distance to the goal scaled by the graph's
// HeuristicScale, which keeps it admissible and consistent for any set of
// non-negative edge costs. Search only reads the graph, so concurrent searches
// over one frozen graph need no locking.
package astar

import (
	"container/heap"

	"agent-navigator/navgraph"
)

// Result contains the outcome of a search
type Result struct {
	Path     []navgraph.NodeID // start to goal inclusive; nil when not found
	Cost     float64
	Expanded int // nodes popped and expanded, goal included
	Found    bool
}

// Search computes the cheapest route from start to goal.
//
// Non-walkable nodes are never expanded. An unknown or non-walkable start or
// goal yields a not-found result without running the search.
func Search(graph *navgraph.Graph, start, goal navgraph.NodeID) Result {
	startNode, ok := graph.Node(start)
	if !ok || !startNode.Walkable {
		return Result{}
	}
	goalNode, ok := graph.Node(goal)
	if !ok || !goalNode.Walkable {
		return Result{}
	}

	scale := graph.HeuristicScale()
	heuristic := func(p navgraph.Vec3) float64 {
		return scale * p.Distance(goalNode.Position)
	}

	open := &frontier{}
	heap.Init(open)
	heap.Push(open, &item{node: start, g: 0, f: heuristic(startNode.Position)})

	gScore := map[navgraph.NodeID]float64{start: 0}
	cameFrom := make(map[navgraph.NodeID]navgraph.NodeID)
	closed := make(map[navgraph.NodeID]struct{})

	expanded := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(*item)
		if _, seen := closed[current.node]; seen {
			continue
		}
		closed[current.node] = struct{}{}
		expanded++

		if current.node == goal {
			return Result{
				Path:     reconstructPath(cameFrom, start, goal),
				Cost:     current.g,
				Expanded: expanded,
				Found:    true,
			}
		}

		for _, edge := range graph.Neighbors(current.node) {
			if _, seen := closed[edge.To]; seen {
				continue
			}
			neighbor, _ := graph.Node(edge.To)
			if !neighbor.Walkable {
				continue
			}

			tentativeG := current.g + edge.Cost
			if prev, ok := gScore[edge.To]; ok && tentativeG >= prev {
				continue
			}
			gScore[edge.To] = tentativeG
			cameFrom[edge.To] = current.node
			heap.Push(open, &item{
				node: edge.To,
				g:    tentativeG,
				f:    tentativeG + heuristic(neighbor.Position),
			})
		}
	}

	// No path found
	return Result{Expanded: expanded}
}

// reconstructPath walks predecessors back from goal and reverses the result.
func reconstructPath(cameFrom map[navgraph.NodeID]navgraph.NodeID, start, goal navgraph.NodeID) []navgraph.NodeID {
	path := []navgraph.NodeID{goal}
	for current := goal; current != start; {
		current = cameFrom[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Cost sums the edge costs along path, taking the cheapest edge between each
// consecutive pair. It reports false if two consecutive nodes are not connected.
func Cost(graph *navgraph.Graph, path []navgraph.NodeID) (float64, bool) {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		best, found := 0.0, false
		for _, edge := range graph.Neighbors(path[i]) {
			if edge.To == path[i+1] && (!found || edge.Cost < best) {
				best, found = edge.Cost, true
			}
		}
		if !found {
			return 0, false
		}
		total += best
	}
	return total, true
}

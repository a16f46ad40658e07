// Package pathfinding answers world-space route queries against a navigation
// graph: both endpoints are snapped to their nearest walkable node and the
// node route found by A* is mapped back to waypoint positions.
package pathfinding

import (
	"math"

	"agent-navigator/astar"
	"agent-navigator/navgraph"
)

// Outcome is the result of a single route query.
type Outcome struct {
	Waypoints []navgraph.Vec3   // node positions from start to goal; nil when not found
	Nodes     []navgraph.NodeID // the node route behind Waypoints
	Cost      float64
	Expanded  int
	Found     bool
}

// Option configures a Finder.
type Option func(*Finder)

// WithSnapTolerance limits how far a query endpoint may be from the walkable
// node it snaps to. The default is unlimited.
func WithSnapTolerance(d float64) Option {
	return func(f *Finder) {
		if d >= 0 && !math.IsNaN(d) {
			f.snapTolerance = d
		}
	}
}

// Finder runs route queries against one graph. It holds no mutable state, so a
// single Finder may be shared by any number of goroutines once the graph is frozen.
type Finder struct {
	graph         *navgraph.Graph
	snapTolerance float64
}

// NewFinder creates a Finder bound to g.
func NewFinder(g *navgraph.Graph, opts ...Option) *Finder {
	f := &Finder{
		graph:         g,
		snapTolerance: math.Inf(1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Graph returns the graph the Finder searches.
func (f *Finder) Graph() *navgraph.Graph {
	return f.graph
}

// Find routes from start to goal.
//
// An endpoint that has no walkable node within the snap tolerance, or that lies
// closer to a non-walkable node than to every walkable one, yields a not-found
// outcome without searching.
func (f *Finder) Find(start, goal navgraph.Vec3) Outcome {
	startID, ok := f.snap(start)
	if !ok {
		return Outcome{}
	}
	goalID, ok := f.snap(goal)
	if !ok {
		return Outcome{}
	}

	result := astar.Search(f.graph, startID, goalID)
	if !result.Found {
		return Outcome{Expanded: result.Expanded}
	}

	waypoints := make([]navgraph.Vec3, len(result.Path))
	for i, id := range result.Path {
		node, _ := f.graph.Node(id)
		waypoints[i] = node.Position
	}

	return Outcome{
		Waypoints: waypoints,
		Nodes:     result.Path,
		Cost:      result.Cost,
		Expanded:  result.Expanded,
		Found:     true,
	}
}

// FindPath returns only the waypoints of the route from start to goal.
func (f *Finder) FindPath(start, goal navgraph.Vec3) ([]navgraph.Vec3, bool) {
	outcome := f.Find(start, goal)
	return outcome.Waypoints, outcome.Found
}

// snap resolves position to its nearest walkable node. A position strictly
// closer to a non-walkable node than to any walkable one names that blocked
// node and does not snap.
func (f *Finder) snap(position navgraph.Vec3) (navgraph.NodeID, bool) {
	id, dist, ok := f.graph.NearestNode(position)
	if !ok || dist > f.snapTolerance {
		return navgraph.InvalidNode, false
	}
	if _, blockedDist, ok := f.graph.NearestBlockedNode(position); ok && blockedDist < dist {
		return navgraph.InvalidNode, false
	}
	return id, true
}

// FindPath is a single-shot query on g.
func FindPath(g *navgraph.Graph, start, goal navgraph.Vec3, opts ...Option) ([]navgraph.Vec3, bool) {
	return NewFinder(g, opts...).FindPath(start, goal)
}

// AddNode adds a node to g while it is being built.
func AddNode(g *navgraph.Graph, position navgraph.Vec3, walkable bool) (navgraph.NodeID, error) {
	return g.AddNode(position, walkable)
}

// AddConnection adds a directed edge to g while it is being built.
func AddConnection(g *navgraph.Graph, from, to navgraph.NodeID, cost float64) error {
	return g.AddConnection(from, to, cost)
}

// Package navgraph holds the navigation graph that agents route across: nodes
// with a world position and a walkable flag, joined by directed weighted
// connections.
//
// A Graph is populated by a single goroutine during level load and then frozen.
// Once frozen it is never mutated again, so any number of goroutines may read it
// without locking.
package navgraph

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// NodeID identifies a node. Ids are assigned densely from zero in insertion order.
type NodeID uint32

// InvalidNode is never assigned to a node.
const InvalidNode NodeID = math.MaxUint32

// DefaultIndexThreshold is the walkable node count above which Freeze builds a
// spatial index for NearestNode. Below it a linear scan is used.
const DefaultIndexThreshold = 1024

// Node represents a waypoint in the navigation graph
type Node struct {
	ID       NodeID `json:"id" yaml:"id"`
	Position Vec3   `json:"position" yaml:"position"`
	Walkable bool   `json:"walkable" yaml:"walkable"`
}

// Edge represents a directed connection between two nodes with a cost
type Edge struct {
	From NodeID  `json:"from" yaml:"from"`
	To   NodeID  `json:"to" yaml:"to"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// Option configures a Graph.
type Option func(*Graph)

// WithIndexThreshold sets the walkable node count above which Freeze builds a
// spatial index. Zero always builds one, a negative value never does.
func WithIndexThreshold(n int) Option {
	return func(g *Graph) { g.indexThreshold = n }
}

// Graph is a directed, weighted navigation graph.
type Graph struct {
	nodes     []Node
	edges     [][]Edge
	edgeCount int
	walkable  int

	// heuristicScale is the largest s <= 1 with cost >= s*distance for every edge.
	heuristicScale float64

	indexThreshold int
	index          *spatialIndex
	blockedIndex   *spatialIndex

	frozen     atomic.Bool
	freezeOnce sync.Once
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		heuristicScale: 1,
		indexThreshold: DefaultIndexThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode appends a node and returns its id.
func (g *Graph) AddNode(position Vec3, walkable bool) (NodeID, error) {
	if g.frozen.Load() {
		return InvalidNode, ErrFrozen
	}
	if !position.Finite() {
		return InvalidNode, fmt.Errorf("%w: %+v", ErrInvalidPosition, position)
	}
	if uint64(len(g.nodes)) >= uint64(InvalidNode) {
		return InvalidNode, fmt.Errorf("node limit of %d reached", InvalidNode)
	}

	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Position: position, Walkable: walkable})
	g.edges = append(g.edges, nil)
	if walkable {
		g.walkable++
	}
	return id, nil
}

// AddConnection inserts a directed edge from -> to.
// The mirrored edge is never added implicitly; use AddBidirectionalConnection.
func (g *Graph) AddConnection(from, to NodeID, cost float64) error {
	if g.frozen.Load() {
		return ErrFrozen
	}
	if !g.has(from) {
		return fmt.Errorf("connection %d -> %d: %w %d", from, to, ErrUnknownNode, from)
	}
	if !g.has(to) {
		return fmt.Errorf("connection %d -> %d: %w %d", from, to, ErrUnknownNode, to)
	}
	if cost < 0 || !isFinite(cost) {
		return fmt.Errorf("connection %d -> %d: %w (got %v)", from, to, ErrInvalidCost, cost)
	}

	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, Cost: cost})
	g.edgeCount++

	if d := g.nodes[from].Position.Distance(g.nodes[to].Position); d > 0 {
		if ratio := cost / d; ratio < g.heuristicScale {
			g.heuristicScale = ratio
		}
	}
	return nil
}

// AddBidirectionalConnection inserts a -> b and b -> a with the same cost.
func (g *Graph) AddBidirectionalConnection(a, b NodeID, cost float64) error {
	if err := g.AddConnection(a, b, cost); err != nil {
		return err
	}
	return g.AddConnection(b, a, cost)
}

// Freeze marks the graph read-only and builds the spatial indexes for the
// walkable and non-walkable nodes when there are enough of them. It is safe to call more than once.
func (g *Graph) Freeze() {
	g.freezeOnce.Do(func() {
		if g.indexThreshold >= 0 && g.walkable > g.indexThreshold {
			g.index = newSpatialIndex(g.nodes, true)
		}
		if blocked := len(g.nodes) - g.walkable; g.indexThreshold >= 0 && blocked > g.indexThreshold {
			g.blockedIndex = newSpatialIndex(g.nodes, false)
		}
		g.frozen.Store(true)
	})
}

// Frozen reports whether Freeze has been called.
func (g *Graph) Frozen() bool {
	return g.frozen.Load()
}

// Indexed reports whether NearestNode is served by the spatial index.
func (g *Graph) Indexed() bool {
	return g.frozen.Load() && g.index != nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// WalkableCount returns the number of walkable nodes.
func (g *Graph) WalkableCount() int {
	return g.walkable
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	if !g.has(id) {
		return Node{}, false
	}
	return g.nodes[id], true
}

// Nodes returns a copy of every node in id order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the outgoing edges of id. The slice is shared with the
// graph and must not be modified.
func (g *Graph) Neighbors(id NodeID) []Edge {
	if !g.has(id) {
		return nil
	}
	return g.edges[id]
}

// HeuristicScale returns the factor by which straight-line distance may be
// multiplied and still never overestimate the cost of any edge. It is 1 when
// every edge costs at least its geometric length.
func (g *Graph) HeuristicScale() float64 {
	return g.heuristicScale
}

// NearestNode finds the closest walkable node to a given point
func (g *Graph) NearestNode(position Vec3) (NodeID, float64, bool) {
	if !position.Finite() {
		return InvalidNode, math.Inf(1), false
	}
	if g.Indexed() {
		return g.index.nearest(position)
	}
	return g.nearestLinear(position, true)
}

// NearestBlockedNode finds the closest non-walkable node to a given point.
func (g *Graph) NearestBlockedNode(position Vec3) (NodeID, float64, bool) {
	if !position.Finite() {
		return InvalidNode, math.Inf(1), false
	}
	if g.frozen.Load() && g.blockedIndex != nil {
		return g.blockedIndex.nearest(position)
	}
	return g.nearestLinear(position, false)
}

// nearestLinear scans every node with the given walkable flag; ties go to the
// lowest id.
func (g *Graph) nearestLinear(position Vec3, walkable bool) (NodeID, float64, bool) {
	nearestID := InvalidNode
	minDist := math.Inf(1)

	for i := range g.nodes {
		if g.nodes[i].Walkable != walkable {
			continue
		}
		dist := position.Distance(g.nodes[i].Position)
		if dist < minDist {
			minDist = dist
			nearestID = g.nodes[i].ID
		}
	}

	return nearestID, minDist, nearestID != InvalidNode
}

func (g *Graph) has(id NodeID) bool {
	return uint64(id) < uint64(len(g.nodes))
}

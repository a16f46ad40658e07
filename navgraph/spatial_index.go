package navgraph

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

const (
	// pointTolerance is the half side of the box each node occupies in the tree.
	pointTolerance = 1e-9

	// nearestCandidates is how many tree hits are re-ranked by exact distance.
	nearestCandidates = 8
)

// nodeEntry wraps a node for R-tree storage
type nodeEntry struct {
	id       NodeID
	position Vec3
	bbox     rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *nodeEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// spatialIndex answers nearest-node queries over one class of nodes of a
// frozen graph.
// The tree is only read after construction, so concurrent queries are safe.
type spatialIndex struct {
	tree *rtreego.Rtree
}

// newSpatialIndex bulk-loads every node whose walkable flag matches into a
// 3-D R-tree.
func newSpatialIndex(nodes []Node, walkable bool) *spatialIndex {
	objs := make([]rtreego.Spatial, 0, len(nodes))
	for _, node := range nodes {
		if node.Walkable != walkable {
			continue
		}
		objs = append(objs, &nodeEntry{
			id:       node.ID,
			position: node.Position,
			bbox:     toPoint(node.Position).ToRect(pointTolerance),
		})
	}

	// 3D, min 25, max 50 entries per node
	return &spatialIndex{tree: rtreego.NewTree(3, 25, 50, objs...)}
}

// nearest returns the closest indexed node. Candidates from the tree are
// re-ranked by exact distance, ties going to the lowest id.
func (si *spatialIndex) nearest(position Vec3) (NodeID, float64, bool) {
	if si.tree.Size() == 0 {
		return InvalidNode, math.Inf(1), false
	}

	best := InvalidNode
	bestDist := math.Inf(1)
	for _, item := range si.tree.NearestNeighbors(nearestCandidates, toPoint(position)) {
		entry, ok := item.(*nodeEntry)
		if !ok {
			continue
		}
		dist := position.Distance(entry.position)
		if dist < bestDist || (dist == bestDist && entry.id < best) {
			best = entry.id
			bestDist = dist
		}
	}

	return best, bestDist, best != InvalidNode
}

func toPoint(p Vec3) rtreego.Point {
	return rtreego.Point{p.X, p.Y, p.Z}
}

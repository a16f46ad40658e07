package navgraph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type edgeKey struct {
	a, b NodeID
}

// Lines returns the graph edges as GeoJSON line strings for visualization.
// Coordinates are the XY projection; the heights of both endpoints are kept in
// the "z" property. A mirrored pair with equal cost is emitted once, with
// "bidirectional" set.
func Lines(g *Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	// unpaired feature already emitted for an unordered node pair
	seen := make(map[edgeKey]*geojson.Feature)

	for _, node := range g.nodes {
		for _, edge := range g.edges[node.ID] {
			key := edgeKey{a: edge.From, b: edge.To}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			if prev, ok := seen[key]; ok && prev.Properties["to"] == edge.From && prev.Properties["cost"] == edge.Cost {
				prev.Properties["bidirectional"] = true
				delete(seen, key)
				continue
			}

			to := g.nodes[edge.To]
			feature := geojson.NewFeature(orb.LineString{
				{node.Position.X, node.Position.Y},
				{to.Position.X, to.Position.Y},
			})
			feature.Properties["from"] = edge.From
			feature.Properties["to"] = edge.To
			feature.Properties["cost"] = edge.Cost
			feature.Properties["z"] = []float64{node.Position.Z, to.Position.Z}
			feature.Properties["bidirectional"] = false
			fc.Append(feature)
			seen[key] = feature
		}
	}

	return fc
}

package pathfinding

import (
	"math"

	"agent-navigator/navgraph"
)

// SimplifyRoute reduces a waypoint route with the Ramer-Douglas-Peucker
// algorithm in three dimensions. Interior waypoints closer than epsilon to the
// simplified segment are dropped; the first and last waypoints are always kept.
// An epsilon of zero removes only exactly collinear waypoints.
func SimplifyRoute(route []navgraph.Vec3, epsilon float64) []navgraph.Vec3 {
	if len(route) <= 2 {
		out := make([]navgraph.Vec3, len(route))
		copy(out, route)
		return out
	}
	if epsilon < 0 || math.IsNaN(epsilon) {
		epsilon = 0
	}
	return douglasPeucker(route, epsilon)
}

// douglasPeucker keeps the farthest interior point if it lies beyond epsilon
// and recurses on both halves.
func douglasPeucker(points []navgraph.Vec3, epsilon float64) []navgraph.Vec3 {
	end := len(points) - 1
	if end <= 1 {
		out := make([]navgraph.Vec3, len(points))
		copy(out, points)
		return out
	}

	dmax := 0.0
	index := 0
	for i := 1; i < end; i++ {
		d := segmentDistance(points[i], points[0], points[end])
		if d > dmax {
			index = i
			dmax = d
		}
	}

	if dmax > epsilon {
		left := douglasPeucker(points[:index+1], epsilon)
		right := douglasPeucker(points[index:], epsilon)

		result := make([]navgraph.Vec3, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}

	return []navgraph.Vec3{points[0], points[end]}
}

// segmentDistance is the distance from p to the segment a-b. Points that
// project past either end measure to that end, so a route that doubles back is
// never folded onto its chord.
func segmentDistance(p, a, b navgraph.Vec3) float64 {
	ab := b.Sub(a)
	length2 := ab.Dot(ab)
	if length2 == 0 {
		return p.Distance(a)
	}

	t := p.Sub(a).Dot(ab) / length2
	switch {
	case t <= 0:
		return p.Distance(a)
	case t >= 1:
		return p.Distance(b)
	}
	return p.Distance(a.Add(ab.Scale(t)))
}

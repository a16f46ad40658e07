package navgraph

import (
	"cmp"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/dhconnelly/rtreego"
)

// defaultStepDivisor splits Radius into the default segment check spacing.
const defaultStepDivisor = 10

// RoadmapSpec describes a probabilistic roadmap: random free positions inside
// a box, each linked to every other sample within Radius whose straight segment
// stays clear of obstacles.
type RoadmapSpec struct {
	Samples int     `json:"samples" yaml:"samples"`
	Radius  float64 `json:"radius" yaml:"radius"`
	Min     Vec3    `json:"min" yaml:"min"`
	Max     Vec3    `json:"max" yaml:"max"`
	Seed    int64   `json:"seed" yaml:"seed"`

	// Step is the spacing at which segments are checked against Blocked.
	// Zero uses Radius/10.
	Step float64 `json:"step" yaml:"step"`

	Blocked func(Vec3) bool `json:"-" yaml:"-"`
}

func (s RoadmapSpec) validate() error {
	if s.Samples <= 0 || uint64(s.Samples) >= uint64(InvalidNode) {
		return fmt.Errorf("%w: %d samples", ErrInvalidRoadmap, s.Samples)
	}
	if s.Radius <= 0 || !isFinite(s.Radius) {
		return fmt.Errorf("%w: radius %v", ErrInvalidRoadmap, s.Radius)
	}
	if s.Step < 0 || !isFinite(s.Step) {
		return fmt.Errorf("%w: step %v", ErrInvalidRoadmap, s.Step)
	}
	if !s.Min.Finite() || !s.Max.Finite() || s.Min.X > s.Max.X || s.Min.Y > s.Max.Y || s.Min.Z > s.Max.Z {
		return fmt.Errorf("%w: bounds %+v to %+v", ErrInvalidRoadmap, s.Min, s.Max)
	}
	return nil
}

// BuildRoadmap samples a roadmap graph. Sampling is deterministic for a given
// Seed. Blocked samples are rejected and redrawn, up to ten draws per sample,
// so the graph may hold fewer than Samples nodes. Links are bidirectional with
// cost equal to their length. The returned graph is not frozen.
func BuildRoadmap(spec RoadmapSpec, opts ...Option) (*Graph, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	step := spec.Step
	if step == 0 {
		step = spec.Radius / defaultStepDivisor
	}
	blocked := spec.Blocked
	if blocked == nil {
		blocked = func(Vec3) bool { return false }
	}

	rng := rand.New(rand.NewSource(spec.Seed))
	extent := spec.Max.Sub(spec.Min)
	graph := New(opts...)

	// Step 1: random free samples
	objs := make([]rtreego.Spatial, 0, spec.Samples)
	for attempts := 0; graph.Len() < spec.Samples && attempts < spec.Samples*10; attempts++ {
		position := spec.Min.Add(Vec3{
			X: rng.Float64() * extent.X,
			Y: rng.Float64() * extent.Y,
			Z: rng.Float64() * extent.Z,
		})
		if blocked(position) {
			continue
		}
		id, err := graph.AddNode(position, true)
		if err != nil {
			return nil, err
		}
		objs = append(objs, &nodeEntry{id: id, position: position, bbox: toPoint(position).ToRect(pointTolerance)})
	}
	if len(objs) == 0 {
		return graph, nil
	}

	// Step 2: link samples within radius whose segment is clear
	tree := rtreego.NewTree(3, 25, 50, objs...)
	for _, obj := range objs {
		from := obj.(*nodeEntry)
		bounds, err := rtreego.NewRectFromPoints(
			toPoint(from.position.Sub(Vec3{X: spec.Radius, Y: spec.Radius, Z: spec.Radius})),
			toPoint(from.position.Add(Vec3{X: spec.Radius, Y: spec.Radius, Z: spec.Radius})),
		)
		if err != nil {
			return nil, fmt.Errorf("roadmap search box: %w", err)
		}

		for _, hit := range tree.SearchIntersect(bounds) {
			to := hit.(*nodeEntry)
			// each pair once, from its lower id
			if to.id <= from.id {
				continue
			}
			dist := from.position.Distance(to.position)
			if dist > spec.Radius || !segmentClear(from.position, to.position, step, blocked) {
				continue
			}
			if err := graph.AddBidirectionalConnection(from.id, to.id, dist); err != nil {
				return nil, err
			}
		}
	}

	// adjacency in target id order
	for _, edges := range graph.edges {
		slices.SortFunc(edges, func(a, b Edge) int { return cmp.Compare(a.To, b.To) })
	}
	return graph, nil
}

// segmentClear samples the open segment a-b every step and reports whether no
// sample is blocked.
func segmentClear(a, b Vec3, step float64, blocked func(Vec3) bool) bool {
	n := int(math.Ceil(a.Distance(b) / step))
	d := b.Sub(a)
	for i := 1; i < n; i++ {
		if blocked(a.Add(d.Scale(float64(i) / float64(n)))) {
			return false
		}
	}
	return true
}

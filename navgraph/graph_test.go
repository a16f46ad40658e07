package navgraph

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	t.Run("assigns_increasing_ids", func(t *testing.T) {
		g := New()
		for i := 0; i < 5; i++ {
			id, err := g.AddNode(Vec3{X: float64(i)}, true)
			require.NoError(t, err)
			require.Equal(t, NodeID(i), id)
		}
		require.Equal(t, 5, g.Len())
		require.Equal(t, 5, g.WalkableCount())
	})

	t.Run("rejects_non_finite_position", func(t *testing.T) {
		g := New()
		_, err := g.AddNode(Vec3{X: math.NaN()}, true)
		require.ErrorIs(t, err, ErrInvalidPosition)
		_, err = g.AddNode(Vec3{Z: math.Inf(-1)}, true)
		require.ErrorIs(t, err, ErrInvalidPosition)
		require.Equal(t, 0, g.Len())
	})

	t.Run("rejected_after_freeze", func(t *testing.T) {
		g := New()
		g.Freeze()
		_, err := g.AddNode(Vec3{}, true)
		require.ErrorIs(t, err, ErrFrozen)
	})
}

func TestAddConnection(t *testing.T) {
	g := New()
	a, err := g.AddNode(Vec3{}, true)
	require.NoError(t, err)
	b, err := g.AddNode(Vec3{X: 2}, true)
	require.NoError(t, err)

	t.Run("unknown_endpoint", func(t *testing.T) {
		require.ErrorIs(t, g.AddConnection(a, 42, 1), ErrUnknownNode)
		require.ErrorIs(t, g.AddConnection(42, a, 1), ErrUnknownNode)
	})

	t.Run("invalid_cost", func(t *testing.T) {
		for _, cost := range []float64{-1, math.NaN(), math.Inf(1)} {
			require.ErrorIs(t, g.AddConnection(a, b, cost), ErrInvalidCost)
		}
	})

	t.Run("directed_by_default", func(t *testing.T) {
		require.NoError(t, g.AddConnection(a, b, 2))
		require.Equal(t, []Edge{{From: a, To: b, Cost: 2}}, g.Neighbors(a))
		require.Empty(t, g.Neighbors(b))
		require.Equal(t, 1, g.EdgeCount())
	})

	t.Run("bidirectional_helper", func(t *testing.T) {
		require.NoError(t, g.AddBidirectionalConnection(a, b, 3))
		require.Len(t, g.Neighbors(a), 2)
		require.Equal(t, []Edge{{From: b, To: a, Cost: 3}}, g.Neighbors(b))
	})

	t.Run("rejected_after_freeze", func(t *testing.T) {
		g.Freeze()
		require.ErrorIs(t, g.AddConnection(a, b, 1), ErrFrozen)
		require.Equal(t, 3, g.EdgeCount())
	})

	t.Run("neighbors_of_unknown_node", func(t *testing.T) {
		require.Nil(t, g.Neighbors(InvalidNode))
	})
}

func TestHeuristicScale(t *testing.T) {
	g := New()
	a, _ := g.AddNode(Vec3{}, true)
	b, _ := g.AddNode(Vec3{X: 4}, true)
	c, _ := g.AddNode(Vec3{X: 4}, true)

	require.Equal(t, 1.0, g.HeuristicScale())

	require.NoError(t, g.AddConnection(a, b, 10))
	require.Equal(t, 1.0, g.HeuristicScale(), "edges pricier than their length keep the plain heuristic")

	require.NoError(t, g.AddConnection(b, c, 0))
	require.Equal(t, 1.0, g.HeuristicScale(), "coincident nodes carry no length")

	require.NoError(t, g.AddConnection(a, c, 2))
	require.InDelta(t, 0.5, g.HeuristicScale(), 1e-12)
}

func TestNearestNode(t *testing.T) {
	t.Run("empty_graph", func(t *testing.T) {
		_, _, ok := New().NearestNode(Vec3{})
		require.False(t, ok)
	})

	t.Run("skips_non_walkable", func(t *testing.T) {
		g := New()
		_, _ = g.AddNode(Vec3{X: 1}, false)
		far, _ := g.AddNode(Vec3{X: 5}, true)

		id, dist, ok := g.NearestNode(Vec3{})
		require.True(t, ok)
		require.Equal(t, far, id)
		require.InDelta(t, 5.0, dist, 1e-12)
	})

	t.Run("only_non_walkable", func(t *testing.T) {
		g := New()
		_, _ = g.AddNode(Vec3{}, false)
		_, _, ok := g.NearestNode(Vec3{})
		require.False(t, ok)
	})

	t.Run("ties_go_to_lowest_id", func(t *testing.T) {
		g := New()
		left, _ := g.AddNode(Vec3{X: -1}, true)
		_, _ = g.AddNode(Vec3{X: 1}, true)
		id, _, ok := g.NearestNode(Vec3{})
		require.True(t, ok)
		require.Equal(t, left, id)
	})

	t.Run("non_finite_query", func(t *testing.T) {
		g := New()
		_, _ = g.AddNode(Vec3{}, true)
		_, _, ok := g.NearestNode(Vec3{Y: math.NaN()})
		require.False(t, ok)
	})
}

func TestNearestNodeIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	g := New(WithIndexThreshold(0))
	for i := 0; i < 3000; i++ {
		position := Vec3{X: rng.Float64() * 500, Y: rng.Float64() * 500, Z: rng.Float64() * 50}
		_, err := g.AddNode(position, rng.Intn(5) != 0)
		require.NoError(t, err)
	}

	type probe struct {
		id   NodeID
		dist float64
	}
	queries := make([]Vec3, 200)
	linear := make([]probe, len(queries))
	for i := range queries {
		queries[i] = Vec3{X: rng.Float64()*600 - 50, Y: rng.Float64()*600 - 50, Z: rng.Float64()*80 - 15}
		id, dist, ok := g.NearestNode(queries[i])
		require.True(t, ok)
		linear[i] = probe{id: id, dist: dist}
	}

	require.False(t, g.Indexed())
	g.Freeze()
	require.True(t, g.Indexed())

	for i, q := range queries {
		id, dist, ok := g.NearestNode(q)
		require.True(t, ok)
		require.Equal(t, linear[i].id, id, "query %d at %+v", i, q)
		require.InDelta(t, linear[i].dist, dist, 1e-9)
	}
}

func TestFreeze(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		g := New()
		_, _ = g.AddNode(Vec3{}, true)
		g.Freeze()
		g.Freeze()
		require.True(t, g.Frozen())
	})

	t.Run("small_graph_stays_linear", func(t *testing.T) {
		g := New()
		_, _ = g.AddNode(Vec3{}, true)
		g.Freeze()
		require.False(t, g.Indexed())
	})

	t.Run("negative_threshold_never_indexes", func(t *testing.T) {
		g := New(WithIndexThreshold(-1))
		for i := 0; i < 10; i++ {
			_, _ = g.AddNode(Vec3{X: float64(i)}, true)
		}
		g.Freeze()
		require.False(t, g.Indexed())
	})

	t.Run("zero_threshold_without_walkable_nodes", func(t *testing.T) {
		g := New(WithIndexThreshold(0))
		_, _ = g.AddNode(Vec3{}, false)
		g.Freeze()
		_, _, ok := g.NearestNode(Vec3{})
		require.False(t, ok)
	})
}

func TestNodesReturnsCopy(t *testing.T) {
	g := New()
	_, _ = g.AddNode(Vec3{X: 1}, true)

	nodes := g.Nodes()
	nodes[0].Walkable = false

	node, ok := g.Node(0)
	require.True(t, ok)
	require.True(t, node.Walkable)

	_, ok = g.Node(1)
	require.False(t, ok)
}

func TestNearestBlockedNode(t *testing.T) {
	g := New(WithIndexThreshold(0))
	_, _ = g.AddNode(Vec3{}, true)
	blocked, _ := g.AddNode(Vec3{X: 3}, false)
	_, _ = g.AddNode(Vec3{X: 10}, false)

	check := func() {
		id, dist, ok := g.NearestBlockedNode(Vec3{X: 1})
		require.True(t, ok)
		require.Equal(t, blocked, id)
		require.InDelta(t, 2.0, dist, 1e-12)
	}
	check()
	g.Freeze()
	check()

	_, _, ok := g.NearestBlockedNode(Vec3{X: math.Inf(1)})
	require.False(t, ok)

	open := New()
	_, _ = open.AddNode(Vec3{}, true)
	_, _, ok = open.NearestBlockedNode(Vec3{})
	require.False(t, ok)
}

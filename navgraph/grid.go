package navgraph

import (
	"fmt"
	"math"
)

// GridSpec describes a regular lattice of nodes, Cols along X, Rows along Y
// and Layers along Z.
type GridSpec struct {
	Cols    int     `json:"cols" yaml:"cols"`
	Rows    int     `json:"rows" yaml:"rows"`
	Layers  int     `json:"layers" yaml:"layers"`
	Spacing float64 `json:"spacing" yaml:"spacing"`
	Origin  Vec3    `json:"origin" yaml:"origin"`

	// Diagonal adds links between diagonal neighbours in the XY plane. A
	// diagonal is only added when both orthogonal cells it cuts past are open.
	Diagonal bool `json:"diagonal" yaml:"diagonal"`

	// Blocked marks cell centres as non-walkable. Nil leaves every cell open.
	Blocked func(Vec3) bool `json:"-" yaml:"-"`
}

// NodeAt returns the id BuildGrid assigns to the cell at (col, row, layer).
func (s GridSpec) NodeAt(col, row, layer int) NodeID {
	return NodeID((layer*s.Rows+row)*s.Cols + col)
}

// Position returns the world position of the cell at (col, row, layer).
func (s GridSpec) Position(col, row, layer int) Vec3 {
	return s.Origin.Add(Vec3{X: float64(col), Y: float64(row), Z: float64(layer)}.Scale(s.Spacing))
}

func (s GridSpec) validate() error {
	if s.Cols <= 0 || s.Rows <= 0 || s.Layers <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidGrid, s.Cols, s.Rows, s.Layers)
	}
	if s.Spacing <= 0 || !isFinite(s.Spacing) {
		return fmt.Errorf("%w: spacing %v", ErrInvalidGrid, s.Spacing)
	}
	if !s.Origin.Finite() {
		return fmt.Errorf("%w: origin %+v", ErrInvalidGrid, s.Origin)
	}
	if uint64(s.Cols)*uint64(s.Rows)*uint64(s.Layers) >= uint64(InvalidNode) {
		return fmt.Errorf("%w: too many cells", ErrInvalidGrid)
	}
	return nil
}

// BuildGrid creates a lattice graph. Every axis-aligned neighbour pair is
// connected in both directions with cost Spacing; blocked cells are still
// inserted, as non-walkable nodes. The returned graph is not frozen.
func BuildGrid(spec GridSpec, opts ...Option) (*Graph, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	graph := New(opts...)
	open := make([]bool, 0, spec.Cols*spec.Rows*spec.Layers)

	for layer := 0; layer < spec.Layers; layer++ {
		for row := 0; row < spec.Rows; row++ {
			for col := 0; col < spec.Cols; col++ {
				position := spec.Position(col, row, layer)
				walkable := spec.Blocked == nil || !spec.Blocked(position)
				if _, err := graph.AddNode(position, walkable); err != nil {
					return nil, err
				}
				open = append(open, walkable)
			}
		}
	}

	link := func(a, b NodeID, cost float64) error {
		return graph.AddBidirectionalConnection(a, b, cost)
	}
	diagonalCost := spec.Spacing * math.Sqrt2

	for layer := 0; layer < spec.Layers; layer++ {
		for row := 0; row < spec.Rows; row++ {
			for col := 0; col < spec.Cols; col++ {
				id := spec.NodeAt(col, row, layer)
				if col+1 < spec.Cols {
					if err := link(id, spec.NodeAt(col+1, row, layer), spec.Spacing); err != nil {
						return nil, err
					}
				}
				if row+1 < spec.Rows {
					if err := link(id, spec.NodeAt(col, row+1, layer), spec.Spacing); err != nil {
						return nil, err
					}
				}
				if layer+1 < spec.Layers {
					if err := link(id, spec.NodeAt(col, row, layer+1), spec.Spacing); err != nil {
						return nil, err
					}
				}
				if !spec.Diagonal || col+1 >= spec.Cols {
					continue
				}
				// no corner cutting past a blocked orthogonal cell
				if row+1 < spec.Rows && open[spec.NodeAt(col+1, row, layer)] && open[spec.NodeAt(col, row+1, layer)] {
					if err := link(id, spec.NodeAt(col+1, row+1, layer), diagonalCost); err != nil {
						return nil, err
					}
				}
				if row-1 >= 0 && open[spec.NodeAt(col+1, row, layer)] && open[spec.NodeAt(col, row-1, layer)] {
					if err := link(id, spec.NodeAt(col+1, row-1, layer), diagonalCost); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return graph, nil
}

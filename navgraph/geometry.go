package navgraph

import "math"

// Vec3 is a position in world space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance calculates Euclidean distance between two points
func (p Vec3) Distance(other Vec3) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Add returns the component-wise sum of p and other.
func (p Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: p.X + other.X, Y: p.Y + other.Y, Z: p.Z + other.Z}
}

// Sub returns the component-wise difference p - other.
func (p Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Scale multiplies every component by s.
func (p Vec3) Scale(s float64) Vec3 {
	return Vec3{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Dot returns the dot product of p and other.
func (p Vec3) Dot(other Vec3) float64 {
	return p.X*other.X + p.Y*other.Y + p.Z*other.Z
}

// Finite reports whether every coordinate is a finite number.
func (p Vec3) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

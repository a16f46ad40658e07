package navgraph

import (
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Footprint is an obstacle outline on the XY plane, extruded between MinZ and MaxZ.
type Footprint struct {
	Polygon orb.Polygon
	MinZ    float64
	MaxZ    float64
}

// Footprints is a set of obstacles used to block grid cells while building a level.
type Footprints []Footprint

// Contains reports whether p lies inside any footprint.
func (fs Footprints) Contains(p Vec3) bool {
	point := orb.Point{p.X, p.Y}
	for _, f := range fs {
		if p.Z < f.MinZ || p.Z > f.MaxZ {
			continue
		}
		if !f.Polygon.Bound().Contains(point) {
			continue
		}
		if planar.PolygonContains(f.Polygon, point) {
			return true
		}
	}
	return false
}

// ParseFootprints reads obstacle polygons from a GeoJSON FeatureCollection.
// Polygon and MultiPolygon geometries are used, anything else is skipped.
// Optional "minZ" and "maxZ" feature properties bound the vertical extent;
// without them an obstacle spans every layer.
func ParseFootprints(data []byte) (Footprints, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse footprints: %w", err)
	}

	var footprints Footprints
	for _, feature := range fc.Features {
		minZ := feature.Properties.MustFloat64("minZ", math.Inf(-1))
		maxZ := feature.Properties.MustFloat64("maxZ", math.Inf(1))

		switch geometry := feature.Geometry.(type) {
		case orb.Polygon:
			footprints = append(footprints, Footprint{Polygon: geometry, MinZ: minZ, MaxZ: maxZ})
		case orb.MultiPolygon:
			for _, polygon := range geometry {
				footprints = append(footprints, Footprint{Polygon: polygon, MinZ: minZ, MaxZ: maxZ})
			}
		}
	}

	return footprints, nil
}

// LoadFootprints reads a GeoJSON obstacle file from disk.
func LoadFootprints(filename string) (Footprints, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseFootprints(data)
}

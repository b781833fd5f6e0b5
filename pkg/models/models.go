// Package models holds the value types shared by the grid builder,
// the border corrector, the resampler and the orchestrator.
package models

import (
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vertex is a terrain sample: X and Z are planar, Y is elevation
type Vertex = r3.Vec

// Coordinate is a point as produced by a geometry source.
// X and Y are planar (easting/northing or lon/lat), Z is elevation.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vertex maps a source coordinate into terrain space
func (c Coordinate) Vertex() Vertex {
	return Vertex{X: c.X, Y: c.Z, Z: c.Y}
}

// Geometry is anything that yields coordinate triples
type Geometry interface {
	Coordinates() []Coordinate
}

// PointSet is the simplest Geometry: a flat list of coordinates
type PointSet []Coordinate

// Coordinates implements Geometry
func (p PointSet) Coordinates() []Coordinate {
	return p
}

// BoundingBox is the request extent in the request CRS.
// MinZ/MaxZ hold the second planar axis (latitude or northing).
type BoundingBox struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinZ float64 `json:"min_z" yaml:"min_z"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxZ float64 `json:"max_z" yaml:"max_z"`
}

// Width returns the extent along X
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Depth returns the extent along Z
func (b BoundingBox) Depth() float64 {
	return b.MaxZ - b.MinZ
}

// Bound converts the box to an orb.Bound with X as the first axis
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinX, b.MinZ},
		Max: orb.Point{b.MaxX, b.MaxZ},
	}
}

// VertexSet is an insertion-ordered set of vertices deduplicated by value
type VertexSet struct {
	vertices []Vertex
	seen     map[Vertex]struct{}
}

// NewVertexSet creates an empty set
func NewVertexSet() *VertexSet {
	return &VertexSet{seen: make(map[Vertex]struct{})}
}

// Add inserts v unless an equal vertex is already present.
// It reports whether the vertex was new.
func (s *VertexSet) Add(v Vertex) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.vertices = append(s.vertices, v)
	return true
}

// Len returns the number of distinct vertices
func (s *VertexSet) Len() int {
	return len(s.vertices)
}

// Vertices returns the vertices in insertion order.
// The slice is shared with the set and must not be modified.
func (s *VertexSet) Vertices() []Vertex {
	return s.vertices
}

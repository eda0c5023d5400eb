// Package world provides the bounded 2-D plane agents live on and habitat siting.
package world

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/exp/constraints"
)

// Geometry is the rectangular world, [0,width] x [0,height].
// Both movement rules clamp through it.
type Geometry struct {
	Bound orb.Bound `json:"bound"`
}

// NewGeometry creates a world of the given size anchored at the origin.
func NewGeometry(width, height float64) Geometry {
	return Geometry{
		Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{width, height}},
	}
}

// Width returns the horizontal extent.
func (g Geometry) Width() float64 { return g.Bound.Max[0] - g.Bound.Min[0] }

// Height returns the vertical extent.
func (g Geometry) Height() float64 { return g.Bound.Max[1] - g.Bound.Min[1] }

// Clamp pulls a point back inside the world.
func (g Geometry) Clamp(p orb.Point) orb.Point {
	return orb.Point{
		clamp(p[0], g.Bound.Min[0], g.Bound.Max[0]),
		clamp(p[1], g.Bound.Min[1], g.Bound.Max[1]),
	}
}

// Contains reports whether p lies inside the world, edges included.
func (g Geometry) Contains(p orb.Point) bool {
	return g.Bound.Contains(p)
}

// FlightRadius is the mosquito tether length: a fraction of the smaller
// world dimension, truncated to whole units, never below floor.
func (g Geometry) FlightRadius(factor, floor float64) float64 {
	r := math.Floor(math.Min(g.Width(), g.Height()) * factor)
	return math.Max(floor, r)
}

// DistanceSquared between two points.
func DistanceSquared(a, b orb.Point) float64 {
	return planar.DistanceSquared(a, b)
}

// String returns a summary of the world.
func (g Geometry) String() string {
	return fmt.Sprintf("Geometry(%gx%g)", g.Width(), g.Height())
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

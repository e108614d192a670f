package collision

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/urdfsim/spatialmath"
)

// axisEpsilon discards cross products of nearly parallel axes.
const axisEpsilon = 1e-9

// Contact describes the overlap between two geometries.
type Contact struct {
	// Point is the midpoint of the overlap region along the normal.
	Point r3.Vector
	// Normal points from the first geometry towards the second.
	Normal r3.Vector
	// Depth is the penetration depth along the normal.
	Depth float64
}

type radiused interface {
	Radius() float64
}

// Collide tests two geometries expressed in world coordinates. Spheres are tested exactly and every other pairing is
// tested through oriented bounding boxes.
func Collide(a, b spatialmath.Geometry) (Contact, bool) {
	if a.Type() == spatialmath.SphereType && b.Type() == spatialmath.SphereType {
		sa, okA := a.(radiused)
		sb, okB := b.(radiused)
		if okA && okB {
			return SphereVsSphere(a.Pose().Point(), sa.Radius(), b.Pose().Point(), sb.Radius())
		}
	}
	return BoxPenetration(BoxFromGeometry(a), BoxFromGeometry(b))
}

// SphereVsSphere returns the contact between two spheres, if any.
func SphereVsSphere(centerA r3.Vector, radiusA float64, centerB r3.Vector, radiusB float64) (Contact, bool) {
	delta := centerB.Sub(centerA)
	dist := delta.Norm()
	depth := radiusA + radiusB - dist
	if depth < 0 {
		return Contact{}, false
	}
	normal := r3.Vector{Z: 1}
	if dist > axisEpsilon {
		normal = delta.Mul(1 / dist)
	}
	return Contact{
		Point:  centerA.Add(normal.Mul(radiusA - depth/2)),
		Normal: normal,
		Depth:  depth,
	}, true
}

// BoxPenetration runs the separating axis test on two boxes and, when they overlap, returns the axis of least
// penetration as the contact normal.
func BoxPenetration(a, b *Box) (Contact, bool) {
	delta := b.Position.Sub(a.Position)
	best := Contact{Depth: math.Inf(1)}
	var bestRadius float64
	for _, plane := range separatingAxes(a, b) {
		norm := plane.Norm()
		if norm < axisEpsilon {
			continue
		}
		axis := plane.Mul(1 / norm)
		ra, rb := projectedRadius(a, axis), projectedRadius(b, axis)
		dist := delta.Dot(axis)
		overlap := ra + rb - math.Abs(dist)
		if overlap < 0 {
			return Contact{}, false
		}
		if overlap < best.Depth {
			if dist < 0 {
				axis = axis.Mul(-1)
			}
			best.Normal = axis
			best.Depth = overlap
			bestRadius = ra
		}
	}
	best.Point = a.Position.Add(best.Normal.Mul(bestRadius - best.Depth/2))
	return best, true
}

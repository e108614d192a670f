// Package collision implements the narrow phase overlap tests used to report contacts between colliders.
package collision

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/urdfsim/spatialmath"
)

// Box is an oriented bounding box in world coordinates.
type Box struct {
	Position r3.Vector
	Axes     axes
	HalfSize r3.Vector
}

type axes struct {
	X r3.Vector
	Y r3.Vector
	Z r3.Vector
}

func (a axes) list() [3]r3.Vector {
	return [3]r3.Vector{a.X, a.Y, a.Z}
}

// NewBox initializes a new 3D box from a pose and a half size vector.
func NewBox(center spatialmath.Pose, halfSize r3.Vector) *Box {
	rm := center.Orientation().RotationMatrix()
	return &Box{center.Point(), axes{rm.Col(0), rm.Col(1), rm.Col(2)}, halfSize}
}

// BoxFromGeometry returns the oriented bounding box of a geometry whose pose is already expressed in world coordinates.
func BoxFromGeometry(g spatialmath.Geometry) *Box {
	center, halfSize := g.BoundingBox()
	pose := spatialmath.Compose(g.Pose(), spatialmath.NewPoseFromPoint(center))
	return NewBox(pose, halfSize)
}

// BoxVsBox takes two Boxes as arguments and returns a bool describing if they are in collision
// reference: https://gamedev.stackexchange.com/questions/112883/simple-3d-obb-collision-directx9-c
func BoxVsBox(a, b *Box) bool {
	positionDelta := a.Position.Sub(b.Position)
	for _, plane := range separatingAxes(a, b) {
		if separatingPlaneTest(positionDelta, plane, a, b) {
			return false
		}
	}
	return true
}

// separatingAxes returns the fifteen candidate axes of the separating axis theorem for two boxes.
func separatingAxes(a, b *Box) []r3.Vector {
	aAxes, bAxes := a.Axes.list(), b.Axes.list()
	planes := make([]r3.Vector, 0, 15)
	planes = append(planes, aAxes[:]...)
	planes = append(planes, bAxes[:]...)
	for _, ax := range aAxes {
		for _, bx := range bAxes {
			planes = append(planes, ax.Cross(bx))
		}
	}
	return planes
}

// Helper function to check if there is a separating plane in between the selected axes
// reference: https://gamedev.stackexchange.com/questions/112883/simple-3d-obb-collision-directx9-c
func separatingPlaneTest(positionDelta, plane r3.Vector, a, b *Box) bool {
	return math.Abs(positionDelta.Dot(plane)) > projectedRadius(a, plane)+projectedRadius(b, plane)
}

func projectedRadius(box *Box, plane r3.Vector) float64 {
	return math.Abs(box.Axes.X.Mul(box.HalfSize.X).Dot(plane)) +
		math.Abs(box.Axes.Y.Mul(box.HalfSize.Y).Dot(plane)) +
		math.Abs(box.Axes.Z.Mul(box.HalfSize.Z).Dot(plane))
}

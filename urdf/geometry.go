package urdf

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Geometry is the shape of a visual or collision element. It is a closed set: Box, Sphere, Cylinder, Capsule and
// Mesh are the only implementations.
type Geometry interface {
	fmt.Stringer
	isGeometry()
}

// Box is a rectangular prism centered on its origin. Size holds the full extents.
type Box struct {
	Size r3.Vector
}

// Sphere is a sphere centered on its origin.
type Sphere struct {
	Radius float64
}

// Cylinder is a cylinder centered on its origin whose axis is the Z axis.
type Cylinder struct {
	Radius float64
	Length float64
}

// Capsule is a cylinder capped by hemispheres. Length is the distance between the hemisphere centers.
type Capsule struct {
	Radius float64
	Length float64
}

// Mesh is a reference to a mesh file, scaled componentwise.
type Mesh struct {
	Filename string
	Scale    r3.Vector
}

func (Box) isGeometry()      {}
func (Sphere) isGeometry()   {}
func (Cylinder) isGeometry() {}
func (Capsule) isGeometry()  {}
func (Mesh) isGeometry()     {}

func (g Box) String() string {
	return fmt.Sprintf("box %g %g %g", g.Size.X, g.Size.Y, g.Size.Z)
}

func (g Sphere) String() string {
	return fmt.Sprintf("sphere r=%g", g.Radius)
}

func (g Cylinder) String() string {
	return fmt.Sprintf("cylinder r=%g l=%g", g.Radius, g.Length)
}

func (g Capsule) String() string {
	return fmt.Sprintf("capsule r=%g l=%g", g.Radius, g.Length)
}

func (g Mesh) String() string {
	return fmt.Sprintf("mesh %s", g.Filename)
}

package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// GeometryType defines what geometry creator representations are known.
type GeometryType string

// The set of allowed representations for geometries.
const (
	BoxType      = GeometryType("box")
	SphereType   = GeometryType("sphere")
	CylinderType = GeometryType("cylinder")
	CapsuleType  = GeometryType("capsule")
	MeshType     = GeometryType("mesh")
)

// Geometry is an entry point with which to access all types of collision geometries.
// The pose of a geometry is the pose of its center in the frame of whatever it is attached to.
type Geometry interface {
	Type() GeometryType
	Pose() Pose
	// Transform returns a copy of the geometry whose pose is p composed with the current pose.
	Transform(p Pose) Geometry
	// BoundingBox returns the axis aligned bounding box of the geometry in its own frame, as a center offset from
	// the geometry's pose and half extents along each axis.
	BoundingBox() (center, halfSize r3.Vector)
	Label() string
	SetLabel(string)
	String() string
}

func newBadGeometryDimensionsError(g Geometry) error {
	return errors.Errorf("invalid dimension(s) for Geometry type %T", g)
}

// box is a collision geometry that represents a 3D rectangular prism, it has a pose and half size that fully define it.
type box struct {
	pose     Pose
	halfSize r3.Vector
	label    string
}

// NewBox instantiates a new box Geometry from its full dimensions.
func NewBox(pose Pose, dims r3.Vector, label string) (Geometry, error) {
	// Negative dimensions not allowed. Zero dimensions are allowed for bounding boxes, etc.
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 {
		return nil, newBadGeometryDimensionsError(&box{})
	}
	return &box{pose: pose, halfSize: dims.Mul(0.5), label: label}, nil
}

func (b *box) Type() GeometryType { return BoxType }

// Pose returns the pose of the box.
func (b *box) Pose() Pose { return b.pose }

// Dims returns the full dimensions of the box.
func (b *box) Dims() r3.Vector { return b.halfSize.Mul(2) }

func (b *box) Transform(p Pose) Geometry {
	return &box{pose: Compose(p, b.pose), halfSize: b.halfSize, label: b.label}
}

func (b *box) BoundingBox() (r3.Vector, r3.Vector) { return r3.Vector{}, b.halfSize }

func (b *box) Label() string         { return b.label }
func (b *box) SetLabel(label string) { b.label = label }

func (b *box) String() string {
	pt := b.pose.Point()
	return fmt.Sprintf("Type: Box | Position: X:%.3f, Y:%.3f, Z:%.3f | Dims: X:%.3f, Y:%.3f, Z:%.3f",
		pt.X, pt.Y, pt.Z, 2*b.halfSize.X, 2*b.halfSize.Y, 2*b.halfSize.Z)
}

// sphere is a collision geometry that represents a sphere, it has a pose and a radius that fully define it.
type sphere struct {
	pose   Pose
	radius float64
	label  string
}

// NewSphere instantiates a new sphere Geometry.
func NewSphere(pose Pose, radius float64, label string) (Geometry, error) {
	if radius < 0 {
		return nil, newBadGeometryDimensionsError(&sphere{})
	}
	return &sphere{pose: pose, radius: radius, label: label}, nil
}

func (s *sphere) Type() GeometryType { return SphereType }
func (s *sphere) Pose() Pose         { return s.pose }

// Radius returns the radius of the sphere.
func (s *sphere) Radius() float64 { return s.radius }

func (s *sphere) Transform(p Pose) Geometry {
	return &sphere{pose: Compose(p, s.pose), radius: s.radius, label: s.label}
}

func (s *sphere) BoundingBox() (r3.Vector, r3.Vector) {
	return r3.Vector{}, r3.Vector{X: s.radius, Y: s.radius, Z: s.radius}
}

func (s *sphere) Label() string         { return s.label }
func (s *sphere) SetLabel(label string) { s.label = label }

func (s *sphere) String() string {
	pt := s.pose.Point()
	return fmt.Sprintf("Type: Sphere | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f", pt.X, pt.Y, pt.Z, s.radius)
}

// cylinder is a collision geometry whose axis runs along the Z axis of its pose, centered on the pose.
type cylinder struct {
	pose   Pose
	radius float64
	length float64
	label  string
}

// NewCylinder instantiates a new cylinder Geometry.
func NewCylinder(pose Pose, radius, length float64, label string) (Geometry, error) {
	if radius < 0 || length < 0 {
		return nil, newBadGeometryDimensionsError(&cylinder{})
	}
	return &cylinder{pose: pose, radius: radius, length: length, label: label}, nil
}

func (c *cylinder) Type() GeometryType { return CylinderType }
func (c *cylinder) Pose() Pose         { return c.pose }

// Radius returns the radius of the cylinder.
func (c *cylinder) Radius() float64 { return c.radius }

// Length returns the length of the cylinder along its Z axis.
func (c *cylinder) Length() float64 { return c.length }

func (c *cylinder) Transform(p Pose) Geometry {
	return &cylinder{pose: Compose(p, c.pose), radius: c.radius, length: c.length, label: c.label}
}

func (c *cylinder) BoundingBox() (r3.Vector, r3.Vector) {
	return r3.Vector{}, r3.Vector{X: c.radius, Y: c.radius, Z: c.length / 2}
}

func (c *cylinder) Label() string         { return c.label }
func (c *cylinder) SetLabel(label string) { c.label = label }

func (c *cylinder) String() string {
	pt := c.pose.Point()
	return fmt.Sprintf("Type: Cylinder | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f | Length: %.3f",
		pt.X, pt.Y, pt.Z, c.radius, c.length)
}

// capsule is a collision geometry that represents a capsule, a cylinder capped with two hemispheres.
//
// ....___________________
// .../                   \
// .x|  |-------O-------|  |x
// ...\___________________/
//
// Length is the length of the internal segment, the distance between the hemisphere centers, which is how URDF
// declares it. The capsule's axis runs along the Z axis of its pose, centered on the pose.
type capsule struct {
	pose   Pose
	radius float64
	length float64
	label  string
}

// NewCapsule instantiates a new capsule Geometry.
func NewCapsule(pose Pose, radius, length float64, label string) (Geometry, error) {
	if radius <= 0 || length < 0 {
		return nil, newBadGeometryDimensionsError(&capsule{})
	}
	if length == 0 {
		return NewSphere(pose, radius, label)
	}
	return &capsule{pose: pose, radius: radius, length: length, label: label}, nil
}

func (c *capsule) Type() GeometryType { return CapsuleType }
func (c *capsule) Pose() Pose         { return c.pose }

// Radius returns the radius of the capsule.
func (c *capsule) Radius() float64 { return c.radius }

// Length returns the length of the capsule's internal segment.
func (c *capsule) Length() float64 { return c.length }

func (c *capsule) Transform(p Pose) Geometry {
	return &capsule{pose: Compose(p, c.pose), radius: c.radius, length: c.length, label: c.label}
}

func (c *capsule) BoundingBox() (r3.Vector, r3.Vector) {
	return r3.Vector{}, r3.Vector{X: c.radius, Y: c.radius, Z: c.length/2 + c.radius}
}

func (c *capsule) Label() string         { return c.label }
func (c *capsule) SetLabel(label string) { c.label = label }

func (c *capsule) String() string {
	pt := c.pose.Point()
	return fmt.Sprintf("Type: Capsule | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f | Length: %.3f",
		pt.X, pt.Y, pt.Z, c.radius, c.length)
}

// BoundingBoxGeometry returns a box covering g, placed at the same pose and shifted by the bounding box center.
func BoundingBoxGeometry(g Geometry) (Geometry, error) {
	center, halfSize := g.BoundingBox()
	if math.IsNaN(halfSize.X) || math.IsNaN(halfSize.Y) || math.IsNaN(halfSize.Z) {
		return nil, newBadGeometryDimensionsError(g)
	}
	return NewBox(Compose(g.Pose(), NewPoseFromPoint(center)), halfSize.Mul(2), g.Label())
}

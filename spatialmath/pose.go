// Package spatialmath defines spatial mathematical operations: poses expressed as unit dual quaternions,
// orientation parameterizations, and the collision geometries attached to simulated links.
// All lengths are in meters and all angles in radians.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

// dualQuaternion defines functions to perform rigid transformations in 3D.
// The real part is a unit quaternion holding the rotation, and the dual part holds half the translation
// multiplied by the rotation.
type dualQuaternion struct {
	dualquat.Number
}

func newDualQuaternion() *dualQuaternion {
	return &dualQuaternion{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// NewZeroPose returns a pose at (0,0,0) with no rotation.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose. A nil orientation is treated as no rotation.
func NewPose(p r3.Vector, o Orientation) Pose {
	q := newDualQuaternion()
	if o != nil {
		q.Real = normalizeQuaternion(o.Quaternion())
	}
	q.setTranslation(p)
	return q
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a pose with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return NewPose(point, nil)
}

// NewPoseFromOrientation takes in an orientation and returns a pose at the origin with that orientation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

// Point multiplies the dual part by the conjugate of the rotation to recover the translation.
func (q *dualQuaternion) Point() r3.Vector {
	t := quat.Scale(2, quat.Mul(q.Dual, quat.Conj(q.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Orientation returns the rotation quaternion as an Orientation.
func (q *dualQuaternion) Orientation() Orientation {
	o := quaternion(q.Real)
	return &o
}

func (q *dualQuaternion) setTranslation(p r3.Vector) {
	q.Dual = quat.Mul(quat.Number{Imag: p.X / 2, Jmag: p.Y / 2, Kmag: p.Z / 2}, q.Real)
}

// String returns a human readable representation of the pose.
func (q *dualQuaternion) String() string {
	pt := q.Point()
	ea := q.Orientation().EulerAngles()
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f Roll:%.4f Pitch:%.4f Yaw:%.4f}", pt.X, pt.Y, pt.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

func dualQuaternionFromPose(p Pose) *dualQuaternion {
	if q, ok := p.(*dualQuaternion); ok {
		return q
	}
	return NewPose(p.Point(), p.Orientation()).(*dualQuaternion)
}

// Compose takes two poses, and returns the pose formed by applying b in the frame of a.
// If a is the pose of a link in the world and b the pose of its child relative to it,
// the result is the pose of the child in the world.
func Compose(a, b Pose) Pose {
	result := &dualQuaternion{dualquat.Mul(dualQuaternionFromPose(a).Number, dualQuaternionFromPose(b).Number)}
	// long chains accumulate drift in the rotation norm
	if vecLen := quat.Abs(result.Real); vecLen != 1 {
		result.Real = quat.Scale(1/vecLen, result.Real)
		result.Dual = quat.Scale(1/vecLen, result.Dual)
	}
	return result
}

// PoseInverse returns the inverse of a pose.
func PoseInverse(p Pose) Pose {
	return &dualQuaternion{dualquat.ConjQuat(dualQuaternionFromPose(p).Number)}
}

// PoseBetween returns the difference between two poses, i.e. the pose of b expressed in the frame of a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint returns the point pt, given in the frame of p, expressed in the frame p is relative to.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return RotateVector(p.Orientation(), pt).Add(p.Point())
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-8)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same,
// with translation compared to within epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}

// PoseToMat4 returns the homogeneous transform matrix of a pose, the representation most rendering hosts consume.
func PoseToMat4(p Pose) mgl64.Mat4 {
	q := p.Orientation().Quaternion()
	pt := p.Point()
	m := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Normalize().Mat4()
	m.SetCol(3, mgl64.Vec4{pt.X, pt.Y, pt.Z, 1})
	return m
}

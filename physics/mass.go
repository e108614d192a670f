package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/utils"
)

// MassProperties holds the mass of a body and its inertia in principal form. CenterOfMass and PrincipalFrame are
// expressed in the body frame.
type MassProperties struct {
	Mass             float64
	CenterOfMass     r3.Vector
	PrincipalInertia r3.Vector
	PrincipalFrame   spatialmath.Orientation
}

// PointMass returns the mass properties of a point mass at com.
func PointMass(mass float64, com r3.Vector) MassProperties {
	return MassProperties{Mass: mass, CenterOfMass: com, PrincipalFrame: spatialmath.NewZeroOrientation()}
}

// NewMassProperties diagonalizes an inertia tensor given in the frame of origin, the center of mass frame of a URDF
// inertial block. Small negative principal moments, which come from rounding in exported files, are clamped to zero.
func NewMassProperties(mass float64, origin spatialmath.Pose, ixx, ixy, ixz, iyy, iyz, izz float64) (MassProperties, error) {
	if mass <= 0 || math.IsNaN(mass) || math.IsInf(mass, 0) {
		return MassProperties{}, errors.Wrapf(ErrInvalidDescriptor, "mass %v is not positive", mass)
	}
	if origin == nil {
		origin = spatialmath.NewZeroPose()
	}

	tensor := mat.NewSymDense(3, []float64{
		ixx, ixy, ixz,
		ixy, iyy, iyz,
		ixz, iyz, izz,
	})
	var eig mat.EigenSym
	if ok := eig.Factorize(tensor, true); !ok {
		return MassProperties{}, errors.Wrap(ErrInvalidDescriptor, "inertia tensor could not be diagonalized")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	cols := [3]mgl64.Vec3{}
	for c := 0; c < 3; c++ {
		cols[c] = mgl64.Vec3{vectors.At(0, c), vectors.At(1, c), vectors.At(2, c)}
	}
	basis := mgl64.Mat3FromCols(cols[0], cols[1], cols[2])
	// eigenvectors may form a left handed basis
	if basis.Det() < 0 {
		cols[2] = cols[2].Mul(-1)
		basis = mgl64.Mat3FromCols(cols[0], cols[1], cols[2])
	}
	q := mgl64.Mat4ToQuat(basis.Mat4()).Normalize()
	principal := spatialmath.NewQuaternionOrientation(quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]})

	moments := r3.Vector{X: values[0], Y: values[1], Z: values[2]}
	tolerance := 1e-9 * math.Max(1, math.Max(math.Abs(values[0]), math.Abs(values[2])))
	for _, v := range values {
		if v < -tolerance {
			return MassProperties{}, errors.Wrapf(ErrInvalidDescriptor, "inertia tensor has negative principal moment %v", v)
		}
	}
	moments = r3.Vector{X: math.Max(moments.X, 0), Y: math.Max(moments.Y, 0), Z: math.Max(moments.Z, 0)}

	return MassProperties{
		Mass:             mass,
		CenterOfMass:     origin.Point(),
		PrincipalInertia: moments,
		PrincipalFrame: spatialmath.Compose(
			spatialmath.NewPoseFromOrientation(origin.Orientation()),
			spatialmath.NewPoseFromOrientation(principal),
		).Orientation(),
	}, nil
}

// AxisInertia returns the moment of inertia about an axis through the center of mass. axis is a unit vector in the
// body frame.
func (m MassProperties) AxisInertia(axis r3.Vector) float64 {
	frame := m.PrincipalFrame
	if frame == nil {
		frame = spatialmath.NewZeroOrientation()
	}
	moments := [3]float64{m.PrincipalInertia.X, m.PrincipalInertia.Y, m.PrincipalInertia.Z}
	units := [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	var total float64
	for k := range units {
		c := axis.Dot(spatialmath.RotateVector(frame, units[k]))
		total += moments[k] * utils.Square(c)
	}
	return total
}

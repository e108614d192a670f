package physics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/utils"
)

// minEffectiveInertia keeps joints driving massless subtrees integrable.
const minEffectiveInertia = 1e-6

// Step advances the world by dt seconds.
func (e *Engine) Step(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return errors.Wrapf(ErrInvalidDescriptor, "timestep %v must be positive", dt)
	}
	for _, h := range sortedKeys(e.joints) {
		j := e.joints[h]
		if len(j.q) == 0 {
			continue
		}
		inertia := e.effectiveInertia(j)
		for k := range j.q {
			j.integrate(k, inertia, dt)
		}
	}
	for _, h := range sortedKeys(e.bodies) {
		b := e.bodies[h]
		if e.isFree(b) {
			e.integrateFree(b, dt)
		}
	}
	for _, h := range sortedKeys(e.bodies) {
		b := e.bodies[h]
		if b.parentJoint == 0 || e.joints[b.parentJoint].desc.Kind == FreeJoint {
			e.placeChildren(b)
		}
	}
	e.contacts = e.findContacts()
	e.time += dt
	return nil
}

// isFree reports whether a body moves on its own rather than being placed by a joint.
func (e *Engine) isFree(b *body) bool {
	if b.desc.Fixed {
		return false
	}
	return b.parentJoint == 0 || e.joints[b.parentJoint].desc.Kind == FreeJoint
}

func (e *Engine) integrateFree(b *body, dt float64) {
	b.linVel = b.linVel.Add(e.cfg.Gravity.Mul(dt))
	orientation := b.pose.Orientation()
	if speed := b.angVel.Norm(); speed > 0 {
		delta := spatialmath.NewR4AAFromAxis(speed*dt, b.angVel.Mul(1/speed))
		orientation = spatialmath.Compose(
			spatialmath.NewPoseFromOrientation(delta),
			spatialmath.NewPoseFromOrientation(orientation),
		).Orientation()
	}
	b.pose = spatialmath.NewPose(b.pose.Point().Add(b.linVel.Mul(dt)), orientation)
}

// placeChildren runs forward kinematics below b, parent first.
func (e *Engine) placeChildren(b *body) {
	for _, h := range b.childJoints {
		j := e.joints[h]
		if j.desc.Kind == FreeJoint {
			continue
		}
		child := e.bodies[j.desc.Child]
		child.pose = spatialmath.Compose(spatialmath.Compose(b.pose, j.desc.Frame), j.motion())
		e.placeChildren(child)
	}
}

// motion returns the pose of the child body in the joint frame at the current coordinates.
func (j *joint) motion() spatialmath.Pose {
	switch j.desc.Kind {
	case RevoluteJoint:
		return spatialmath.NewPoseFromOrientation(spatialmath.NewR4AAFromAxis(j.q[0], j.desc.Axis))
	case PrismaticJoint:
		return spatialmath.NewPoseFromPoint(j.desc.Axis.Mul(j.q[0]))
	case PlanarJoint:
		return spatialmath.NewPoseFromPoint(j.tangents[0].Mul(j.q[0]).Add(j.tangents[1].Mul(j.q[1])))
	case WeldJoint, FreeJoint:
		return spatialmath.NewZeroPose()
	default:
		return spatialmath.NewZeroPose()
	}
}

// effectiveInertia is the inertia the joint drives: the mass of the subtree below it for translations, its moment
// about the joint axis for rotations. Subtrees behind free joints do not count.
func (e *Engine) effectiveInertia(j *joint) float64 {
	parent := e.bodies[j.desc.Parent]
	jointPose := spatialmath.Compose(parent.pose, j.desc.Frame)
	axis := spatialmath.RotateVector(jointPose.Orientation(), j.desc.Axis)
	anchor := jointPose.Point()

	var total float64
	var visit func(b *body)
	visit = func(b *body) {
		mass := b.desc.Mass
		switch j.desc.Kind {
		case RevoluteJoint:
			com := spatialmath.TransformPoint(b.pose, mass.CenterOfMass)
			r := com.Sub(anchor)
			perp := r.Sub(axis.Mul(r.Dot(axis)))
			total += mass.AxisInertia(inverseRotate(b.pose.Orientation(), axis)) + mass.Mass*perp.Norm2()
		case PrismaticJoint, PlanarJoint, WeldJoint, FreeJoint:
			total += mass.Mass
		}
		for _, h := range b.childJoints {
			if child := e.joints[h]; child.desc.Kind != FreeJoint {
				visit(e.bodies[child.desc.Child])
			}
		}
	}
	visit(e.bodies[j.desc.Child])
	return math.Max(total, minEffectiveInertia)
}

func inverseRotate(o spatialmath.Orientation, v r3.Vector) r3.Vector {
	return spatialmath.RotateVector(spatialmath.NewQuaternionOrientation(quat.Conj(o.Quaternion())), v)
}

// integrate advances coordinate k with semi implicit Euler. Drive springs and joint damping are treated implicitly
// so stiff gains stay stable at large timesteps; the drive force is then limited to the effort bound, Coulomb
// friction removes speed up to a full stop, and the speed and position limits are enforced last.
func (j *joint) integrate(k int, inertia, dt float64) {
	q, qd := j.q[k], j.qd[k]
	c := j.desc.Damping
	maxEffort := j.desc.MaxEffort
	var accel float64
	limitEffort := func(delivered float64) {
		if maxEffort > 0 && math.Abs(delivered) > maxEffort {
			accel = (math.Copysign(maxEffort, delivered) - c*qd) / (inertia + dt*c)
		}
	}

	switch j.drive.Mode {
	case DrivePosition:
		kp, kd := j.drive.Stiffness, j.drive.Damping
		force := kp*(j.drive.Values[k]-q-dt*qd) - kd*qd
		accel = (force - c*qd) / (inertia + dt*(kd+c) + dt*dt*kp)
		limitEffort(force - (dt*kp+kd)*dt*accel)
	case DriveVelocity:
		kd := j.drive.Damping
		force := kd * (j.drive.Values[k] - qd)
		accel = (force - c*qd) / (inertia + dt*(kd+c))
		limitEffort(force - kd*dt*accel)
	case DriveForce:
		force := j.drive.Values[k]
		if maxEffort > 0 {
			force = utils.Clamp(force, -maxEffort, maxEffort)
		}
		accel = (force - c*qd) / (inertia + dt*c)
	case DriveNone:
		accel = -c * qd / (inertia + dt*c)
	}

	v := qd + dt*accel
	if f := j.desc.Friction; f > 0 {
		if stop := dt * f / inertia; math.Abs(v) <= stop {
			v = 0
		} else {
			v -= math.Copysign(stop, v)
		}
	}
	if vmax := j.desc.MaxVelocity; vmax > 0 {
		v = utils.Clamp(v, -vmax, vmax)
	}
	q += dt * v
	if j.desc.Limited {
		if q < j.desc.Lower {
			q = j.desc.Lower
			v = math.Max(v, 0)
		} else if q > j.desc.Upper {
			q = j.desc.Upper
			v = math.Min(v, 0)
		}
	}
	j.q[k], j.qd[k] = q, v
}

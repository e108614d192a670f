package physics

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/utils"
)

// EngineConfig configures an Engine. A zero capacity is unlimited.
type EngineConfig struct {
	Gravity      r3.Vector `json:"gravity"`
	MaxBodies    int       `json:"max_bodies"`
	MaxColliders int       `json:"max_colliders"`
	MaxJoints    int       `json:"max_joints"`
}

// DefaultEngineConfig returns an unlimited world with earth gravity along -Z.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Gravity: r3.Vector{Z: -9.81}}
}

type body struct {
	desc   BodyDesc
	pose   spatialmath.Pose
	linVel r3.Vector
	angVel r3.Vector

	parentJoint  JointHandle
	childJoints  []JointHandle
	colliders    []ColliderHandle
	articulation ArticulationHandle
}

type joint struct {
	desc     JointDesc
	q        []float64
	qd       []float64
	drive    Drive
	tangents [2]r3.Vector
}

type collider struct {
	desc ColliderDesc
}

// Engine is an in memory World. Articulated bodies are simulated in joint space: every joint coordinate is
// integrated on its own with an implicit drive, then child bodies are placed parent first by forward kinematics.
// Bodies without a parent joint, and the children of free joints, fall under gravity. Contacts are detected between
// oriented bounding boxes and reported, not resolved.
type Engine struct {
	cfg    EngineConfig
	nextID uint64
	time   float64

	bodies        map[BodyHandle]*body
	colliders     map[ColliderHandle]*collider
	joints        map[JointHandle]*joint
	articulations map[ArticulationHandle]*ArticulationDesc

	contacts []ContactPair
}

var _ World = (*Engine)(nil)

// NewEngine returns an empty world.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:           cfg,
		bodies:        map[BodyHandle]*body{},
		colliders:     map[ColliderHandle]*collider{},
		joints:        map[JointHandle]*joint{},
		articulations: map[ArticulationHandle]*ArticulationDesc{},
	}
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Time returns the simulated time in seconds.
func (e *Engine) Time() float64 {
	return e.time
}

func (e *Engine) newID() uint64 {
	e.nextID++
	return e.nextID
}

// CreateBody adds a body.
func (e *Engine) CreateBody(desc BodyDesc) (BodyHandle, error) {
	if e.cfg.MaxBodies > 0 && len(e.bodies) >= e.cfg.MaxBodies {
		return 0, errors.Wrapf(ErrCapacityExceeded, "world holds at most %d bodies", e.cfg.MaxBodies)
	}
	if desc.Pose == nil {
		desc.Pose = spatialmath.NewZeroPose()
	}
	if !desc.Fixed && !(desc.Mass.Mass > 0) {
		return 0, errors.Wrapf(ErrInvalidDescriptor, "body %q has mass %v", desc.Name, desc.Mass.Mass)
	}
	if desc.Mass.PrincipalFrame == nil {
		desc.Mass.PrincipalFrame = spatialmath.NewZeroOrientation()
	}
	h := BodyHandle(e.newID())
	e.bodies[h] = &body{desc: desc, pose: desc.Pose}
	return h, nil
}

// RemoveBody removes a body, its colliders and every joint attached to it.
func (e *Engine) RemoveBody(h BodyHandle) error {
	b, ok := e.bodies[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "body %d", h)
	}
	for _, c := range b.colliders {
		delete(e.colliders, c)
	}
	attached := append([]JointHandle(nil), b.childJoints...)
	if b.parentJoint != 0 {
		attached = append(attached, b.parentJoint)
	}
	for _, j := range attached {
		if err := e.RemoveJoint(j); err != nil {
			return err
		}
	}
	if a, ok := e.articulations[b.articulation]; ok {
		a.Bodies = lo.Without(a.Bodies, h)
	}
	delete(e.bodies, h)
	return nil
}

// CreateCollider attaches a shape to a body.
func (e *Engine) CreateCollider(desc ColliderDesc) (ColliderHandle, error) {
	b, ok := e.bodies[desc.Body]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "collider %q references body %d", desc.Name, desc.Body)
	}
	if desc.Geometry == nil {
		return 0, errors.Wrapf(ErrInvalidDescriptor, "collider %q has no geometry", desc.Name)
	}
	if e.cfg.MaxColliders > 0 && len(e.colliders) >= e.cfg.MaxColliders {
		return 0, errors.Wrapf(ErrCapacityExceeded, "world holds at most %d colliders", e.cfg.MaxColliders)
	}
	h := ColliderHandle(e.newID())
	e.colliders[h] = &collider{desc: desc}
	b.colliders = append(b.colliders, h)
	return h, nil
}

// RemoveCollider detaches and removes a collider.
func (e *Engine) RemoveCollider(h ColliderHandle) error {
	c, ok := e.colliders[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "collider %d", h)
	}
	if b, ok := e.bodies[c.desc.Body]; ok {
		b.colliders = lo.Without(b.colliders, h)
	}
	delete(e.colliders, h)
	return nil
}

// CreateJoint connects two bodies. A body has at most one parent joint and joints may not form loops.
func (e *Engine) CreateJoint(desc JointDesc) (JointHandle, error) {
	parent, ok := e.bodies[desc.Parent]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "joint %q references parent body %d", desc.Name, desc.Parent)
	}
	child, ok := e.bodies[desc.Child]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownHandle, "joint %q references child body %d", desc.Name, desc.Child)
	}
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrInvalidDescriptor, "joint %q: "+format, append([]interface{}{desc.Name}, args...)...)
	}
	switch {
	case desc.Parent == desc.Child:
		return 0, invalid("parent and child are the same body")
	case child.parentJoint != 0:
		return 0, invalid("child body already has a parent joint")
	case child.desc.Fixed:
		return 0, invalid("child body is fixed")
	case desc.Limited && desc.Lower > desc.Upper:
		return 0, invalid("lower limit %v above upper limit %v", desc.Lower, desc.Upper)
	case desc.Kind < WeldJoint || desc.Kind > FreeJoint:
		return 0, invalid("unknown kind %v", desc.Kind)
	}
	if desc.Kind.DoF() > 0 {
		if desc.Axis.Norm() < 1e-9 {
			return 0, invalid("zero axis")
		}
		desc.Axis = desc.Axis.Normalize()
	}
	for b := parent; b.parentJoint != 0; {
		up := e.joints[b.parentJoint].desc.Parent
		if up == desc.Child {
			return 0, invalid("closes a loop")
		}
		b = e.bodies[up]
	}
	if e.cfg.MaxJoints > 0 && len(e.joints) >= e.cfg.MaxJoints {
		return 0, errors.Wrapf(ErrCapacityExceeded, "world holds at most %d joints", e.cfg.MaxJoints)
	}
	if desc.Frame == nil {
		desc.Frame = spatialmath.NewZeroPose()
	}

	dof := desc.Kind.DoF()
	j := &joint{desc: desc, q: make([]float64, dof), qd: make([]float64, dof)}
	if desc.Kind == PlanarJoint {
		j.tangents = planarTangents(desc.Axis)
	}
	if desc.Limited {
		// start inside the range so the first step does not jump
		for k := range j.q {
			j.q[k] = utils.Clamp(0, desc.Lower, desc.Upper)
		}
	}
	h := JointHandle(e.newID())
	e.joints[h] = j
	parent.childJoints = append(parent.childJoints, h)
	child.parentJoint = h
	return h, nil
}

// RemoveJoint removes a joint. Its child becomes a free body.
func (e *Engine) RemoveJoint(h JointHandle) error {
	j, ok := e.joints[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "joint %d", h)
	}
	if parent, ok := e.bodies[j.desc.Parent]; ok {
		parent.childJoints = lo.Without(parent.childJoints, h)
	}
	if child, ok := e.bodies[j.desc.Child]; ok && child.parentJoint == h {
		child.parentJoint = 0
	}
	for _, a := range e.articulations {
		a.Joints = lo.Without(a.Joints, h)
	}
	delete(e.joints, h)
	return nil
}

// CreateArticulation groups bodies and joints. A body belongs to at most one articulation.
func (e *Engine) CreateArticulation(desc ArticulationDesc) (ArticulationHandle, error) {
	for _, b := range desc.Bodies {
		existing, ok := e.bodies[b]
		if !ok {
			return 0, errors.Wrapf(ErrUnknownHandle, "articulation %q references body %d", desc.Name, b)
		}
		if existing.articulation != 0 {
			return 0, errors.Wrapf(ErrInvalidDescriptor, "articulation %q: body %d already belongs to articulation %d",
				desc.Name, b, existing.articulation)
		}
	}
	for _, j := range desc.Joints {
		if _, ok := e.joints[j]; !ok {
			return 0, errors.Wrapf(ErrUnknownHandle, "articulation %q references joint %d", desc.Name, j)
		}
	}
	h := ArticulationHandle(e.newID())
	desc.Bodies = append([]BodyHandle(nil), desc.Bodies...)
	desc.Joints = append([]JointHandle(nil), desc.Joints...)
	e.articulations[h] = &desc
	for _, b := range desc.Bodies {
		e.bodies[b].articulation = h
	}
	return h, nil
}

// RemoveArticulation dissolves an articulation.
func (e *Engine) RemoveArticulation(h ArticulationHandle) error {
	a, ok := e.articulations[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "articulation %d", h)
	}
	for _, b := range a.Bodies {
		if existing, ok := e.bodies[b]; ok && existing.articulation == h {
			existing.articulation = 0
		}
	}
	delete(e.articulations, h)
	return nil
}

// SetJointDrive replaces the drive of a joint. Non passive drives need one finite value per coordinate.
func (e *Engine) SetJointDrive(h JointHandle, drive Drive) error {
	j, ok := e.joints[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "joint %d", h)
	}
	if drive.Mode != DriveNone {
		if len(drive.Values) != len(j.q) {
			return errors.Wrapf(ErrInvalidDescriptor, "joint %q has %d coordinates, drive has %d values",
				j.desc.Name, len(j.q), len(drive.Values))
		}
		for _, v := range drive.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrInvalidDescriptor, "joint %q drive value %v", j.desc.Name, v)
			}
		}
	}
	if drive.Stiffness < 0 || drive.Damping < 0 {
		return errors.Wrapf(ErrInvalidDescriptor, "joint %q drive gains must not be negative", j.desc.Name)
	}
	drive.Values = append([]float64(nil), drive.Values...)
	j.drive = drive
	return nil
}

// BodyPose returns the world pose of a body.
func (e *Engine) BodyPose(h BodyHandle) (spatialmath.Pose, error) {
	b, ok := e.bodies[h]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "body %d", h)
	}
	return b.pose, nil
}

// BodyVelocity returns the linear and angular velocity of a free body.
func (e *Engine) BodyVelocity(h BodyHandle) (linear, angular r3.Vector, err error) {
	b, ok := e.bodies[h]
	if !ok {
		return r3.Vector{}, r3.Vector{}, errors.Wrapf(ErrUnknownHandle, "body %d", h)
	}
	return b.linVel, b.angVel, nil
}

// SetBodyVelocity sets the velocity of a free body. Bodies placed by a joint ignore it.
func (e *Engine) SetBodyVelocity(h BodyHandle, linear, angular r3.Vector) error {
	b, ok := e.bodies[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "body %d", h)
	}
	b.linVel, b.angVel = linear, angular
	return nil
}

// JointState returns copies of the coordinates and rates of a joint.
func (e *Engine) JointState(h JointHandle) (JointState, error) {
	j, ok := e.joints[h]
	if !ok {
		return JointState{}, errors.Wrapf(ErrUnknownHandle, "joint %d", h)
	}
	return JointState{
		Positions:  append([]float64{}, j.q...),
		Velocities: append([]float64{}, j.qd...),
	}, nil
}

// Contacts returns the contacts found by the last step.
func (e *Engine) Contacts() []ContactPair {
	return append([]ContactPair(nil), e.contacts...)
}

// Counts returns the number of live objects.
func (e *Engine) Counts() Counts {
	return Counts{
		Bodies:        len(e.bodies),
		Colliders:     len(e.colliders),
		Joints:        len(e.joints),
		Articulations: len(e.articulations),
	}
}

func sortedKeys[K ~uint64, V any](m map[K]V) []K {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// planarTangents returns two unit vectors spanning the plane orthogonal to axis. For a Z axis they are X and Y.
func planarTangents(axis r3.Vector) [2]r3.Vector {
	helper := r3.Vector{X: 1}
	if math.Abs(axis.X) > 0.9 {
		helper = r3.Vector{Y: 1}
	}
	t1 := helper.Sub(axis.Mul(helper.Dot(axis))).Normalize()
	return [2]r3.Vector{t1, axis.Cross(t1)}
}

// Package physics defines the construction and stepping API of a rigid body physics world, and Engine, an in memory
// implementation of it with reduced coordinate joints.
//
// A World hands out opaque handles for the objects it creates. Every call that takes a handle fails with
// ErrUnknownHandle once the object has been removed.
package physics

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfsim/collision"
	"go.viam.com/urdfsim/spatialmath"
)

// Handles name objects owned by a World.
type (
	BodyHandle         uint64
	ColliderHandle     uint64
	JointHandle        uint64
	ArticulationHandle uint64
)

var (
	// ErrCapacityExceeded is returned when a world cannot hold another object of the requested kind.
	ErrCapacityExceeded = errors.New("physics world capacity exceeded")
	// ErrUnknownHandle is returned for handles the world did not create or has already removed.
	ErrUnknownHandle = errors.New("unknown physics handle")
	// ErrInvalidDescriptor is returned when a creation request is inconsistent.
	ErrInvalidDescriptor = errors.New("invalid physics descriptor")
)

// BodyDesc describes a rigid body.
type BodyDesc struct {
	Name string
	// Pose is the world pose of the body frame.
	Pose spatialmath.Pose
	Mass MassProperties
	// Fixed bodies never move.
	Fixed bool
}

// ColliderDesc attaches a collision shape to a body. The geometry is expressed in the body frame.
type ColliderDesc struct {
	Name     string
	Body     BodyHandle
	Geometry spatialmath.Geometry
	Groups   collision.Groups
}

// JointKind is the kind of constraint a joint imposes between two bodies.
type JointKind int

// Known joint kinds.
const (
	// WeldJoint locks the child to the parent.
	WeldJoint JointKind = iota
	// RevoluteJoint allows rotation about Axis.
	RevoluteJoint
	// PrismaticJoint allows translation along Axis.
	PrismaticJoint
	// PlanarJoint allows translation along the two directions orthogonal to Axis.
	PlanarJoint
	// FreeJoint leaves the child unconstrained; it integrates as a free body.
	FreeJoint
)

// DoF returns the number of coordinates of the joint kind.
func (k JointKind) DoF() int {
	switch k {
	case RevoluteJoint, PrismaticJoint:
		return 1
	case PlanarJoint:
		return 2
	case WeldJoint, FreeJoint:
		return 0
	default:
		return 0
	}
}

func (k JointKind) String() string {
	switch k {
	case WeldJoint:
		return "weld"
	case RevoluteJoint:
		return "revolute"
	case PrismaticJoint:
		return "prismatic"
	case PlanarJoint:
		return "planar"
	case FreeJoint:
		return "free"
	default:
		return fmt.Sprintf("JointKind(%d)", int(k))
	}
}

// JointDesc describes a joint. Frame is the pose of the joint frame in the parent body frame; at zero coordinates
// the child body frame coincides with it. Axis is expressed in the joint frame.
type JointDesc struct {
	Name   string
	Kind   JointKind
	Parent BodyHandle
	Child  BodyHandle
	Frame  spatialmath.Pose
	Axis   r3.Vector
	// Limited joints keep every coordinate within [Lower, Upper].
	Limited      bool
	Lower, Upper float64
	// MaxVelocity and MaxEffort bound the joint speed and the drive force; zero means unbounded.
	MaxVelocity float64
	MaxEffort   float64
	Damping     float64
	Friction    float64
}

// ArticulationDesc groups bodies and joints into one multibody.
type ArticulationDesc struct {
	Name   string
	Bodies []BodyHandle
	Joints []JointHandle
	// SelfContacts reports contacts between colliders of the same articulation.
	SelfContacts bool
}

// DriveMode selects what a joint drive tracks.
type DriveMode int

// Known drive modes.
const (
	// DriveNone leaves the joint passive.
	DriveNone DriveMode = iota
	// DrivePosition tracks a coordinate with a spring and damper.
	DrivePosition
	// DriveVelocity tracks a coordinate rate.
	DriveVelocity
	// DriveForce applies a force or torque directly.
	DriveForce
)

func (m DriveMode) String() string {
	switch m {
	case DriveNone:
		return "none"
	case DrivePosition:
		return "position"
	case DriveVelocity:
		return "velocity"
	case DriveForce:
		return "force"
	default:
		return fmt.Sprintf("DriveMode(%d)", int(m))
	}
}

// Drive is the actuation of a joint, one value per coordinate. Stiffness and Damping are the gains of position and
// velocity tracking.
type Drive struct {
	Mode      DriveMode
	Values    []float64
	Stiffness float64
	Damping   float64
}

// JointState holds the coordinates and rates of a joint.
type JointState struct {
	Positions  []float64
	Velocities []float64
}

// ContactPair is a contact between colliders of two bodies.
type ContactPair struct {
	ColliderA, ColliderB ColliderHandle
	BodyA, BodyB         BodyHandle
	collision.Contact
}

// Counts holds the number of live objects in a world.
type Counts struct {
	Bodies        int
	Colliders     int
	Joints        int
	Articulations int
}

// World is a physics world. Implementations are not safe for concurrent use.
type World interface {
	CreateBody(desc BodyDesc) (BodyHandle, error)
	// RemoveBody removes a body together with its colliders and the joints attached to it.
	RemoveBody(h BodyHandle) error
	CreateCollider(desc ColliderDesc) (ColliderHandle, error)
	RemoveCollider(h ColliderHandle) error
	CreateJoint(desc JointDesc) (JointHandle, error)
	RemoveJoint(h JointHandle) error
	CreateArticulation(desc ArticulationDesc) (ArticulationHandle, error)
	// RemoveArticulation dissolves the grouping. Its bodies and joints stay in the world.
	RemoveArticulation(h ArticulationHandle) error

	SetJointDrive(h JointHandle, drive Drive) error
	BodyPose(h BodyHandle) (spatialmath.Pose, error)
	JointState(h JointHandle) (JointState, error)
	// Contacts returns the contacts found by the last step.
	Contacts() []ContactPair
	Step(dt float64) error
	Counts() Counts
}

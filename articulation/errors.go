package articulation

import "github.com/pkg/errors"

var (
	// ErrUnsupportedJointType is returned when a joint type has no physics counterpart.
	ErrUnsupportedJointType = errors.New("unsupported joint type")
	// ErrWorldRejected is returned when the physics world refuses to create an object.
	ErrWorldRejected = errors.New("physics world rejected construction")
	// ErrUnknownJoint is returned for joint names that are not part of an instance.
	ErrUnknownJoint = errors.New("unknown joint")
	// ErrInstanceRemoved is returned by every call on an instance after it was removed.
	ErrInstanceRemoved = errors.New("robot instance was removed")
	// ErrInvalidTarget is returned for targets that cannot be applied to a joint at all.
	ErrInvalidTarget = errors.New("invalid joint target")
	// ErrInvalidTimestep is returned by Bridge.Step for timesteps that are not positive.
	ErrInvalidTimestep = errors.New("invalid timestep")
)

package kinematics

import "github.com/pkg/errors"

var (
	// ErrMultipleRoots is returned when more than one link has no parent joint.
	ErrMultipleRoots = errors.New("kinematic graph has more than one root link")
	// ErrNoRoot is returned when every link has a parent joint, or when there are no links at all.
	ErrNoRoot = errors.New("kinematic graph has no root link")
	// ErrCycle is returned when the joint graph is not a tree: a closed loop of joints, or a link reachable over
	// more than one path.
	ErrCycle = errors.New("kinematic graph contains a cycle")
)

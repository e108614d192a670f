package articulation

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/urdfsim/collision"
	"go.viam.com/urdfsim/spatialmath"
)

// Options controls how a kinematic tree is instantiated and actuated.
type Options struct {
	// Name of the instance. Defaults to the robot name.
	Name string
	// DefaultLinkMass replaces a missing or non positive link mass.
	DefaultLinkMass float64
	// ClampActuationToLimits clamps targets into the joint limits when set. Otherwise an out of range target is
	// queued as given and rejected when the bridge applies it.
	ClampActuationToLimits bool
	// FloatingBase leaves the root link free instead of fixing it to the world.
	FloatingBase bool
	// SelfCollisions reports contacts between links of the same robot.
	SelfCollisions  bool
	CollisionGroups collision.Groups
	// DriveStiffness and DriveDamping are the gains of position and velocity targets.
	DriveStiffness float64
	DriveDamping   float64
	// BasePose places the root link in the world.
	BasePose spatialmath.Pose
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		DefaultLinkMass:        0.01,
		ClampActuationToLimits: true,
		CollisionGroups:        collision.AllGroups,
		DriveStiffness:         1000,
		DriveDamping:           100,
	}
}

// Validate reports options that would build a degenerate robot.
func (o Options) Validate() error {
	if !(o.DefaultLinkMass > 0) || math.IsInf(o.DefaultLinkMass, 0) {
		return errors.Errorf("default link mass must be positive, got %v", o.DefaultLinkMass)
	}
	if o.DriveStiffness < 0 || o.DriveDamping < 0 {
		return errors.New("drive gains must not be negative")
	}
	return nil
}

func (o Options) basePose() spatialmath.Pose {
	if o.BasePose == nil {
		return spatialmath.NewZeroPose()
	}
	return o.BasePose
}

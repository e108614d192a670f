package articulation

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/urdf"
	"go.viam.com/urdfsim/utils"
)

// Mode is the quantity a target sets.
type Mode int

// Target modes.
const (
	Position Mode = iota
	Velocity
	// Torque is a torque for rotational joints and a force for translational ones.
	Torque
)

func (m Mode) String() string {
	switch m {
	case Position:
		return "position"
	case Velocity:
		return "velocity"
	case Torque:
		return "torque"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses the name of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "position":
		return Position, nil
	case "velocity":
		return Velocity, nil
	case "torque", "effort", "force":
		return Torque, nil
	default:
		return 0, errors.Errorf("unknown target mode %q", s)
	}
}

// Target is the actuation of one joint, one value per degree of freedom.
type Target struct {
	Mode   Mode
	Values []float64
}

func (t Target) clone() Target {
	return Target{Mode: t.Mode, Values: append([]float64(nil), t.Values...)}
}

// RejectedTarget records a target that was not applied because it fell outside the joint limits.
type RejectedTarget struct {
	Joint  string
	Target Target
	Reason string
}

// validate checks that t can drive the joint at all.
func validate(joint *urdf.Joint, t Target) error {
	if joint.Type.DoF() == 0 {
		return errors.Wrapf(ErrInvalidTarget, "%s joint %q cannot be actuated", joint.Type, joint.Name)
	}
	if t.Mode < Position || t.Mode > Torque {
		return errors.Wrapf(ErrInvalidTarget, "joint %q: %v", joint.Name, t.Mode)
	}
	if len(t.Values) != joint.Type.DoF() {
		return errors.Wrapf(ErrInvalidTarget, "joint %q has %d degrees of freedom, target has %d values",
			joint.Name, joint.Type.DoF(), len(t.Values))
	}
	for _, v := range t.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidTarget, "joint %q: value %v", joint.Name, v)
		}
	}
	return nil
}

// bounds returns the range a target value must lie in, if the joint declares one.
func bounds(joint *urdf.Joint, mode Mode) (lower, upper float64, ok bool) {
	limit := joint.Limit
	if limit == nil {
		return 0, 0, false
	}
	switch mode {
	case Position:
		if joint.Type == urdf.ContinuousJoint || !limit.HasPositionLimits() {
			return 0, 0, false
		}
		return limit.Lower, limit.Upper, true
	case Velocity:
		if limit.Velocity > 0 {
			return -limit.Velocity, limit.Velocity, true
		}
	case Torque:
		if limit.Effort > 0 {
			return -limit.Effort, limit.Effort, true
		}
	}
	return 0, 0, false
}

func clamp(joint *urdf.Joint, t Target) Target {
	lower, upper, ok := bounds(joint, t.Mode)
	if !ok {
		return t
	}
	for i, v := range t.Values {
		t.Values[i] = utils.Clamp(v, lower, upper)
	}
	return t
}

// outOfRange returns why t exceeds the joint limits, or "" when it does not.
func outOfRange(joint *urdf.Joint, t Target) string {
	lower, upper, ok := bounds(joint, t.Mode)
	if !ok {
		return ""
	}
	for _, v := range t.Values {
		if v < lower || v > upper {
			return fmt.Sprintf("%s %v outside [%v, %v]", t.Mode, v, lower, upper)
		}
	}
	return ""
}

func (t Target) drive(opts Options) physics.Drive {
	d := physics.Drive{Values: t.Values, Stiffness: opts.DriveStiffness, Damping: opts.DriveDamping}
	switch t.Mode {
	case Position:
		d.Mode = physics.DrivePosition
	case Velocity:
		d.Mode = physics.DriveVelocity
	case Torque:
		d.Mode = physics.DriveForce
	}
	return d
}

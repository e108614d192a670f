package articulation

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/spatialmath"
)

// Lifecycle is the state of an Instance.
type Lifecycle int

// Instance states. Actuating and Stepped alternate while the simulation runs; Removed is terminal.
const (
	Unbuilt Lifecycle = iota
	Instantiated
	Actuating
	Stepped
	Removed
)

func (l Lifecycle) String() string {
	switch l {
	case Unbuilt:
		return "unbuilt"
	case Instantiated:
		return "instantiated"
	case Actuating:
		return "actuating"
	case Stepped:
		return "stepped"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// JointReading is the state of one joint.
type JointReading struct {
	Positions  []float64
	Velocities []float64
}

// State is a snapshot of an instance: the world pose of every link and the coordinates of every joint.
type State struct {
	Links  map[string]spatialmath.Pose
	Joints map[string]JointReading
}

// Instance is a robot living in a physics world. It owns the handles of everything it created there. An Instance is
// not safe for concurrent use.
type Instance struct {
	id     uuid.UUID
	name   string
	tree   *kinematics.Tree
	opts   Options
	logger logging.Logger

	// handles indexed like the links and joints of the document
	bodies       []physics.BodyHandle
	colliders    [][]physics.ColliderHandle
	joints       []physics.JointHandle
	articulation physics.ArticulationHandle

	pending  map[int]Target
	applied  map[int]Target
	rejected []RejectedTarget

	lifecycle Lifecycle
	cache     *State
}

// ID returns the unique id of the instance.
func (inst *Instance) ID() uuid.UUID { return inst.id }

// Name returns the instance name.
func (inst *Instance) Name() string { return inst.name }

// Tree returns the kinematic tree the instance was built from.
func (inst *Instance) Tree() *kinematics.Tree { return inst.tree }

// Options returns the options the instance was built with.
func (inst *Instance) Options() Options { return inst.opts }

// Lifecycle returns the current state of the instance.
func (inst *Instance) Lifecycle() Lifecycle { return inst.lifecycle }

// BodyHandle returns the body created for a link.
func (inst *Instance) BodyHandle(link string) (physics.BodyHandle, bool) {
	i, ok := inst.tree.Document().LinkIndex(link)
	if !ok {
		return 0, false
	}
	return inst.bodies[i], true
}

// ColliderHandles returns the colliders attached to a link.
func (inst *Instance) ColliderHandles(link string) []physics.ColliderHandle {
	i, ok := inst.tree.Document().LinkIndex(link)
	if !ok {
		return nil
	}
	return append([]physics.ColliderHandle(nil), inst.colliders[i]...)
}

// JointHandle returns the physics joint created for a URDF joint.
func (inst *Instance) JointHandle(joint string) (physics.JointHandle, bool) {
	i, ok := inst.tree.Document().JointIndex(joint)
	if !ok {
		return 0, false
	}
	return inst.joints[i], true
}

// ArticulationHandle returns the articulation grouping the bodies of the instance.
func (inst *Instance) ArticulationHandle() physics.ArticulationHandle { return inst.articulation }

// SetJointTarget queues a target for a joint; it is pushed into the world by the next Bridge.Step. A later call for the
// same joint replaces the queued target. With ClampActuationToLimits the values are clamped into the joint limits
// here; without it they are queued unchanged and checked when applied.
func (inst *Instance) SetJointTarget(joint string, t Target) error {
	if inst.lifecycle == Removed {
		return errors.Wrapf(ErrInstanceRemoved, "robot %q", inst.name)
	}
	doc := inst.tree.Document()
	i, ok := doc.JointIndex(joint)
	if !ok {
		return errors.Wrapf(ErrUnknownJoint, "robot %q has no joint %q", inst.name, joint)
	}
	j := &doc.Joints[i]
	if err := validate(j, t); err != nil {
		return err
	}
	t = t.clone()
	if inst.opts.ClampActuationToLimits {
		t = clamp(j, t)
	}
	inst.pending[i] = t
	inst.lifecycle = Actuating
	return nil
}

// PendingTarget returns the target queued for a joint since the last step.
func (inst *Instance) PendingTarget(joint string) (Target, bool) {
	return inst.target(inst.pending, joint)
}

// AppliedTarget returns the target currently driving a joint.
func (inst *Instance) AppliedTarget(joint string) (Target, bool) {
	return inst.target(inst.applied, joint)
}

func (inst *Instance) target(targets map[int]Target, joint string) (Target, bool) {
	i, ok := inst.tree.Document().JointIndex(joint)
	if !ok {
		return Target{}, false
	}
	t, ok := targets[i]
	if !ok {
		return Target{}, false
	}
	return t.clone(), true
}

// RejectedTargets returns the targets refused at apply time because they exceeded the joint limits, oldest first.
func (inst *Instance) RejectedTargets() []RejectedTarget {
	return append([]RejectedTarget(nil), inst.rejected...)
}

// applyTargets pushes queued targets into the world. A target outside the joint limits is dropped and the previous
// one stays in force.
func (inst *Instance) applyTargets(world physics.World) error {
	if inst.lifecycle == Removed {
		return nil
	}
	doc := inst.tree.Document()
	indices := lo.Keys(inst.pending)
	sort.Ints(indices)
	var err error
	for _, i := range indices {
		t := inst.pending[i]
		j := &doc.Joints[i]
		if reason := outOfRange(j, t); reason != "" {
			inst.rejected = append(inst.rejected, RejectedTarget{Joint: j.Name, Target: t, Reason: reason})
			inst.logger.Debugw("rejected joint target", "robot", inst.name, "joint", j.Name, "reason", reason)
			continue
		}
		if setErr := world.SetJointDrive(inst.joints[i], t.drive(inst.opts)); setErr != nil {
			err = multierr.Append(err, errors.Wrapf(setErr, "joint %q", j.Name))
			continue
		}
		inst.applied[i] = t
	}
	inst.pending = map[int]Target{}
	return err
}

// ReadState returns the pose of every link and the state of every joint. The snapshot is cached until the next step
// and shared between callers, so it must not be modified.
func (inst *Instance) ReadState(world physics.World) (*State, error) {
	if inst.lifecycle == Removed {
		return nil, errors.Wrapf(ErrInstanceRemoved, "robot %q", inst.name)
	}
	if inst.cache != nil {
		return inst.cache, nil
	}
	doc := inst.tree.Document()
	state := &State{
		Links:  make(map[string]spatialmath.Pose, len(doc.Links)),
		Joints: make(map[string]JointReading, len(doc.Joints)),
	}
	for i, h := range inst.bodies {
		pose, err := world.BodyPose(h)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q", doc.Links[i].Name)
		}
		state.Links[doc.Links[i].Name] = pose
	}
	for i, h := range inst.joints {
		js, err := world.JointState(h)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", doc.Joints[i].Name)
		}
		state.Joints[doc.Joints[i].Name] = JointReading{Positions: js.Positions, Velocities: js.Velocities}
	}
	inst.cache = state
	return state, nil
}

func (inst *Instance) stepped() {
	if inst.lifecycle == Removed {
		return
	}
	inst.cache = nil
	inst.lifecycle = Stepped
}

// Remove tears down everything the instance created in the world. Every later call fails with ErrInstanceRemoved.
func (inst *Instance) Remove(world physics.World) error {
	if inst.lifecycle == Removed {
		return errors.Wrapf(ErrInstanceRemoved, "robot %q", inst.name)
	}
	var err error
	if inst.articulation != 0 {
		err = multierr.Append(err, world.RemoveArticulation(inst.articulation))
	}
	for i := len(inst.joints) - 1; i >= 0; i-- {
		err = multierr.Append(err, world.RemoveJoint(inst.joints[i]))
	}
	for i := len(inst.colliders) - 1; i >= 0; i-- {
		for k := len(inst.colliders[i]) - 1; k >= 0; k-- {
			err = multierr.Append(err, world.RemoveCollider(inst.colliders[i][k]))
		}
	}
	for i := len(inst.bodies) - 1; i >= 0; i-- {
		err = multierr.Append(err, world.RemoveBody(inst.bodies[i]))
	}
	inst.lifecycle = Removed
	inst.cache = nil
	inst.pending = map[int]Target{}
	inst.logger.Debugw("removed robot", "robot", inst.name, "id", inst.id)
	return err
}

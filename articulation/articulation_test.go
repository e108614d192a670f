package articulation

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/meshes"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
	"go.viam.com/urdfsim/utils"
)

type robot struct {
	tree   *kinematics.Tree
	shapes map[string]*meshes.LinkShapes
}

func loadRobot(t *testing.T, name string) robot {
	t.Helper()
	path := utils.ResolveFile(filepath.Join("testfiles/robots", name))
	doc, err := urdf.ParseFile(path)
	test.That(t, err, test.ShouldBeNil)
	tree, err := kinematics.Build(doc)
	test.That(t, err, test.ShouldBeNil)
	shapes, err := meshes.NewResolver().ResolveLinks(doc, filepath.Dir(path), meshes.Skip)
	test.That(t, err, test.ShouldBeNil)
	return robot{tree: tree, shapes: shapes}
}

func instantiate(t *testing.T, r robot, world physics.World, opts Options) *Instance {
	t.Helper()
	inst, err := Instantiate(r.tree, r.shapes, world, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return inst
}

func stepN(t *testing.T, b *Bridge, world physics.World, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		test.That(t, b.Step(world, 0.01), test.ShouldBeNil)
	}
}

func TestTwoLinkRoundTrip(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), world, DefaultOptions())

	test.That(t, inst.Name(), test.ShouldEqual, "two_link")
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Instantiated)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 2, Colliders: 2, Joints: 1, Articulations: 1})
	test.That(t, inst.ColliderHandles("arm"), test.ShouldHaveLength, 1)
	test.That(t, inst.ColliderHandles("nope"), test.ShouldBeNil)
	_, ok := inst.BodyHandle("arm")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = inst.JointHandle("joint2")
	test.That(t, ok, test.ShouldBeFalse)

	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(state.Links["base"], spatialmath.NewZeroPose()), test.ShouldBeTrue)
	test.That(t, spatialmath.PoseAlmostEqual(state.Links["arm"], spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.1})), test.ShouldBeTrue)
	test.That(t, state.Joints["joint1"].Positions, test.ShouldResemble, []float64{0})

	test.That(t, inst.Remove(world), test.ShouldBeNil)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Removed)
}

func TestTwoLinkClampedTarget(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), world, DefaultOptions())
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)

	test.That(t, inst.SetJointTarget("joint1", Target{Mode: Position, Values: []float64{3}}), test.ShouldBeNil)
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Actuating)
	pending, ok := inst.PendingTarget("joint1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pending.Values, test.ShouldResemble, []float64{1.57})

	stepN(t, bridge, world, 300)
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Stepped)
	_, ok = inst.PendingTarget("joint1")
	test.That(t, ok, test.ShouldBeFalse)
	applied, ok := inst.AppliedTarget("joint1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, applied.Values, test.ShouldResemble, []float64{1.57})

	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	q := state.Joints["joint1"].Positions[0]
	test.That(t, q, test.ShouldBeLessThanOrEqualTo, 1.57)
	test.That(t, q, test.ShouldAlmostEqual, 1.57, 1e-3)
	// the hinge sits on the arm origin, so rotating leaves it in place
	test.That(t, state.Links["arm"].Point().Z, test.ShouldAlmostEqual, 0.1)
	test.That(t, inst.RejectedTargets(), test.ShouldBeEmpty)
}

func TestTwoLinkRejectedTarget(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	opts := DefaultOptions()
	opts.ClampActuationToLimits = false
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), world, opts)
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)

	test.That(t, inst.SetJointTarget("joint1", Target{Mode: Position, Values: []float64{3}}), test.ShouldBeNil)
	pending, _ := inst.PendingTarget("joint1")
	test.That(t, pending.Values, test.ShouldResemble, []float64{3})

	stepN(t, bridge, world, 10)
	rejected := inst.RejectedTargets()
	test.That(t, rejected, test.ShouldHaveLength, 1)
	test.That(t, rejected[0].Joint, test.ShouldEqual, "joint1")
	test.That(t, rejected[0].Reason, test.ShouldContainSubstring, "outside [-1.57, 1.57]")
	_, ok := inst.AppliedTarget("joint1")
	test.That(t, ok, test.ShouldBeFalse)
	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Joints["joint1"].Positions[0], test.ShouldEqual, 0)

	// a target in range still goes through
	test.That(t, inst.SetJointTarget("joint1", Target{Mode: Position, Values: []float64{0.5}}), test.ShouldBeNil)
	stepN(t, bridge, world, 200)
	state, err = inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Joints["joint1"].Positions[0], test.ShouldAlmostEqual, 0.5, 1e-3)
	test.That(t, inst.RejectedTargets(), test.ShouldHaveLength, 1)
}

func TestSetJointTargetErrors(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "all_joints.urdf"), world, DefaultOptions())

	for _, tc := range []struct {
		name     string
		joint    string
		target   Target
		expected error
	}{
		{"unknown joint", "elbow", Target{Values: []float64{0}}, ErrUnknownJoint},
		{"fixed joint", "mount_joint", Target{Values: []float64{0}}, ErrInvalidTarget},
		{"floating joint", "hover", Target{Values: []float64{0}}, ErrInvalidTarget},
		{"wrong arity", "table", Target{Values: []float64{0}}, ErrInvalidTarget},
		{"not finite", "pitch", Target{Values: []float64{math.NaN()}}, ErrInvalidTarget},
		{"bad mode", "pitch", Target{Mode: Mode(7), Values: []float64{0}}, ErrInvalidTarget},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := inst.SetJointTarget(tc.joint, tc.target)
			test.That(t, errors.Is(err, tc.expected), test.ShouldBeTrue)
		})
	}
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Instantiated)

	// torque targets clamp to the effort limit
	test.That(t, inst.SetJointTarget("extend", Target{Mode: Torque, Values: []float64{50}}), test.ShouldBeNil)
	pending, _ := inst.PendingTarget("extend")
	test.That(t, pending.Values, test.ShouldResemble, []float64{20})
	// continuous joints have no position bounds
	test.That(t, inst.SetJointTarget("yaw", Target{Mode: Position, Values: []float64{10}}), test.ShouldBeNil)
	pending, _ = inst.PendingTarget("yaw")
	test.That(t, pending.Values, test.ShouldResemble, []float64{10})
}

func TestAllJointKinds(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "all_joints.urdf"), world, DefaultOptions())
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 7, Colliders: 4, Joints: 6, Articulations: 1})

	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)
	test.That(t, bridge.Add(inst), test.ShouldBeNil)
	test.That(t, bridge.Len(), test.ShouldEqual, 1)

	test.That(t, inst.SetJointTarget("table", Target{Mode: Position, Values: []float64{0.2, -0.1}}), test.ShouldBeNil)
	test.That(t, inst.SetJointTarget("yaw", Target{Mode: Velocity, Values: []float64{1}}), test.ShouldBeNil)
	stepN(t, bridge, world, 300)

	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	puck := state.Links["puck"].Point()
	test.That(t, puck.X, test.ShouldAlmostEqual, 0.5, 1e-3)
	test.That(t, puck.Y, test.ShouldAlmostEqual, -0.1, 1e-3)
	test.That(t, puck.Z, test.ShouldAlmostEqual, 0.05)
	test.That(t, state.Joints["yaw"].Velocities[0], test.ShouldAlmostEqual, 1, 0.05)
	test.That(t, state.Joints["hover"].Positions, test.ShouldBeEmpty)
	// the drone hangs on a floating joint and falls
	test.That(t, state.Links["drone"].Point().Z, test.ShouldBeLessThan, 0)
	// the root stays fixed
	test.That(t, spatialmath.PoseAlmostEqual(state.Links["world_base"], spatialmath.NewZeroPose()), test.ShouldBeTrue)
}

func TestInstantiateOptions(t *testing.T) {
	r := loadRobot(t, "two_link.urdf")
	world := physics.NewEngine(physics.DefaultEngineConfig())
	opts := DefaultOptions()
	opts.Name = "left"
	opts.FloatingBase = true
	opts.BasePose = spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Z: 2})
	inst := instantiate(t, r, world, opts)
	test.That(t, inst.Name(), test.ShouldEqual, "left")

	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(state.Links["arm"].Point(), r3.Vector{X: 1, Z: 2.1}, 1e-9), test.ShouldBeTrue)

	// a floating base falls with everything attached to it
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)
	stepN(t, bridge, world, 10)
	state, err = inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Links["base"].Point().Z, test.ShouldBeLessThan, 2)
	test.That(t, state.Links["arm"].Point().Z-state.Links["base"].Point().Z, test.ShouldAlmostEqual, 0.1)

	opts.DefaultLinkMass = 0
	_, err = Instantiate(r.tree, r.shapes, world, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, world.Counts().Bodies, test.ShouldEqual, 2)
}

func TestInstantiateTwice(t *testing.T) {
	r := loadRobot(t, "two_link.urdf")
	world := physics.NewEngine(physics.DefaultEngineConfig())
	first := instantiate(t, r, world, DefaultOptions())
	second := instantiate(t, r, world, DefaultOptions())
	test.That(t, first.ID(), test.ShouldNotEqual, second.ID())
	test.That(t, first.ArticulationHandle(), test.ShouldNotEqual, second.ArticulationHandle())
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 4, Colliders: 4, Joints: 2, Articulations: 2})

	// the two copies overlap but belong to different articulations
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(first), test.ShouldBeNil)
	test.That(t, bridge.Add(second), test.ShouldBeNil)
	stepN(t, bridge, world, 1)
	test.That(t, world.Contacts(), test.ShouldNotBeEmpty)

	test.That(t, bridge.Remove(first, world), test.ShouldBeNil)
	test.That(t, bridge.Instances(), test.ShouldResemble, []*Instance{second})
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 2, Colliders: 2, Joints: 1, Articulations: 1})
}

func TestInstantiateRollback(t *testing.T) {
	r := loadRobot(t, "two_link.urdf")
	world := physics.NewEngine(physics.EngineConfig{MaxColliders: 1})
	_, err := Instantiate(r.tree, r.shapes, world, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, ErrWorldRejected), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `collider for link "arm"`)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})

	world = physics.NewEngine(physics.EngineConfig{MaxJoints: 3})
	_, err = Instantiate(loadRobot(t, "all_joints.urdf").tree, nil, world, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, ErrWorldRejected), test.ShouldBeTrue)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})
}

func TestUnsupportedJointType(t *testing.T) {
	doc, err := urdf.NewDocument("ball_robot",
		[]urdf.Link{{Name: "a"}, {Name: "b"}},
		[]urdf.Joint{{Name: "socket", Type: "ball", Parent: "a", Child: "b"}},
	)
	test.That(t, err, test.ShouldBeNil)
	tree, err := kinematics.Build(doc)
	test.That(t, err, test.ShouldBeNil)

	world := physics.NewEngine(physics.DefaultEngineConfig())
	_, err = Instantiate(tree, nil, world, DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, ErrUnsupportedJointType), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `joint "socket"`)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})
}

func TestRemovedInstance(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), world, DefaultOptions())
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)
	test.That(t, bridge.Remove(inst, world), test.ShouldBeNil)
	test.That(t, bridge.Len(), test.ShouldEqual, 0)

	err := inst.SetJointTarget("joint1", Target{Values: []float64{0}})
	test.That(t, errors.Is(err, ErrInstanceRemoved), test.ShouldBeTrue)
	_, err = inst.ReadState(world)
	test.That(t, errors.Is(err, ErrInstanceRemoved), test.ShouldBeTrue)
	test.That(t, errors.Is(inst.Remove(world), ErrInstanceRemoved), test.ShouldBeTrue)
	test.That(t, errors.Is(bridge.Add(inst), ErrInstanceRemoved), test.ShouldBeTrue)

	// an empty bridge still steps the world
	test.That(t, bridge.Step(world, 0.01), test.ShouldBeNil)
}

func TestInstanceRemovedOutsideBridge(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	r := loadRobot(t, "two_link.urdf")
	removed := instantiate(t, r, world, DefaultOptions())
	live := instantiate(t, r, world, DefaultOptions())
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(removed), test.ShouldBeNil)
	test.That(t, bridge.Add(live), test.ShouldBeNil)

	test.That(t, removed.SetJointTarget("joint1", Target{Values: []float64{0.5}}), test.ShouldBeNil)
	test.That(t, removed.Remove(world), test.ShouldBeNil)
	test.That(t, bridge.Step(world, 0.01), test.ShouldBeNil)

	test.That(t, removed.Lifecycle(), test.ShouldEqual, Removed)
	test.That(t, bridge.Len(), test.ShouldEqual, 1)
	test.That(t, bridge.Instances(), test.ShouldResemble, []*Instance{live})
	err := removed.SetJointTarget("joint1", Target{Values: []float64{0}})
	test.That(t, errors.Is(err, ErrInstanceRemoved), test.ShouldBeTrue)
	_, err = removed.ReadState(world)
	test.That(t, errors.Is(err, ErrInstanceRemoved), test.ShouldBeTrue)

	test.That(t, bridge.Step(world, 0.01), test.ShouldBeNil)
	test.That(t, live.Lifecycle(), test.ShouldEqual, Stepped)
}

func TestSetJointTargetIdempotent(t *testing.T) {
	r := loadRobot(t, "two_link.urdf")
	target := Target{Mode: Position, Values: []float64{0.4}}
	run := func(calls int) *State {
		world := physics.NewEngine(physics.DefaultEngineConfig())
		inst := instantiate(t, r, world, DefaultOptions())
		bridge := NewBridge(logging.NewTestLogger(t))
		test.That(t, bridge.Add(inst), test.ShouldBeNil)
		for i := 0; i < calls; i++ {
			test.That(t, inst.SetJointTarget("joint1", target), test.ShouldBeNil)
		}
		stepN(t, bridge, world, 20)
		state, err := inst.ReadState(world)
		test.That(t, err, test.ShouldBeNil)
		return state
	}

	once := run(1)
	twice := run(2)
	test.That(t, twice.Joints["joint1"], test.ShouldResemble, once.Joints["joint1"])
	test.That(t, once.Joints["joint1"].Positions[0], test.ShouldBeGreaterThan, 0)
	for name, pose := range once.Links {
		test.That(t, spatialmath.PoseAlmostEqual(twice.Links[name], pose), test.ShouldBeTrue)
	}
}

type failingWorld struct {
	*physics.Engine
}

func (w *failingWorld) Step(float64) error {
	return errors.New("solver diverged")
}

func TestStepFailureInvalidatesCache(t *testing.T) {
	engine := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), engine, DefaultOptions())
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)

	before, err := inst.ReadState(engine)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inst.SetJointTarget("joint1", Target{Values: []float64{0.5}}), test.ShouldBeNil)

	world := &failingWorld{engine}
	err = bridge.Step(world, 0.01)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "solver diverged")

	// the target reached the world, the instance did not step
	_, pending := inst.PendingTarget("joint1")
	test.That(t, pending, test.ShouldBeFalse)
	applied, ok := inst.AppliedTarget("joint1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, applied.Values, test.ShouldResemble, []float64{0.5})
	test.That(t, inst.Lifecycle(), test.ShouldEqual, Actuating)

	after, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after == before, test.ShouldBeFalse)
}

func TestStateCache(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	inst := instantiate(t, loadRobot(t, "two_link.urdf"), world, DefaultOptions())
	bridge := NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)

	first, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	again, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, first)

	test.That(t, inst.SetJointTarget("joint1", Target{Mode: Velocity, Values: []float64{1}}), test.ShouldBeNil)
	stepN(t, bridge, world, 1)
	after, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after, test.ShouldNotEqual, first)
	test.That(t, after.Joints["joint1"].Velocities[0], test.ShouldBeGreaterThan, 0)

	for _, dt := range []float64{0, -0.01, math.Inf(1), math.NaN()} {
		test.That(t, errors.Is(bridge.Step(world, dt), ErrInvalidTimestep), test.ShouldBeTrue)
	}
}

func TestParseMode(t *testing.T) {
	for s, expected := range map[string]Mode{"position": Position, "Velocity": Velocity, "effort": Torque, "force": Torque} {
		m, err := ParseMode(s)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m, test.ShouldEqual, expected)
	}
	_, err := ParseMode("impedance")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, Torque.String(), test.ShouldEqual, "torque")
	test.That(t, Stepped.String(), test.ShouldEqual, "stepped")
}

func TestRejectedTargetIsLogged(t *testing.T) {
	world := physics.NewEngine(physics.DefaultEngineConfig())
	opts := DefaultOptions()
	opts.ClampActuationToLimits = false
	r := loadRobot(t, "two_link.urdf")
	logger, logs := logging.NewObservedTestLogger(t)
	inst, err := Instantiate(r.tree, r.shapes, world, opts, logger)
	test.That(t, err, test.ShouldBeNil)
	bridge := NewBridge(logger)
	test.That(t, bridge.Add(inst), test.ShouldBeNil)

	test.That(t, inst.SetJointTarget("joint1", Target{Mode: Position, Values: []float64{-2}}), test.ShouldBeNil)
	test.That(t, bridge.Step(world, 0.01), test.ShouldBeNil)

	entries := logs.FilterMessage("rejected joint target").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["joint"], test.ShouldEqual, "joint1")
	test.That(t, entries[0].ContextMap()["robot"], test.ShouldEqual, "two_link")
}

package importer

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"
	"golang.org/x/sync/errgroup"

	"go.viam.com/urdfsim/articulation"
	"go.viam.com/urdfsim/collision"
	"go.viam.com/urdfsim/kinematics"
	"go.viam.com/urdfsim/logging"
	"go.viam.com/urdfsim/meshes"
	"go.viam.com/urdfsim/physics"
	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/urdf"
	"go.viam.com/urdfsim/utils"
)

func newImporter(t *testing.T, opts Options) *Importer {
	t.Helper()
	imp, err := New(opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return imp
}

func TestImportTwoLink(t *testing.T) {
	data, err := os.ReadFile(utils.ResolveFile("testfiles/robots/two_link.urdf"))
	test.That(t, err, test.ShouldBeNil)
	world := physics.NewEngine(physics.DefaultEngineConfig())
	imp := newImporter(t, DefaultOptions())

	res, err := imp.Import(data, "", world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Warnings, test.ShouldBeNil)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 2, Colliders: 2, Joints: 1, Articulations: 1})

	inst := res.Instance
	state, err := inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(state.Links["arm"].Point(), r3.Vector{Z: 0.1}, 1e-9), test.ShouldBeTrue)

	bridge := articulation.NewBridge(logging.NewTestLogger(t))
	test.That(t, bridge.Add(inst), test.ShouldBeNil)
	target := articulation.Target{Mode: articulation.Position, Values: []float64{3}}
	test.That(t, inst.SetJointTarget("joint1", target), test.ShouldBeNil)
	for i := 0; i < 300; i++ {
		test.That(t, bridge.Step(world, 0.01), test.ShouldBeNil)
	}
	state, err = inst.ReadState(world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Joints["joint1"].Positions[0], test.ShouldBeLessThanOrEqualTo, 1.57)

	test.That(t, bridge.Remove(inst, world), test.ShouldBeNil)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})
}

func TestImportFileMeshPolicies(t *testing.T) {
	path := utils.ResolveFile("testfiles/robots/mesh_arm.urdf")
	meshDir := utils.ResolveFile("testfiles")

	world := physics.NewEngine(physics.DefaultEngineConfig())
	skip := newImporter(t, DefaultOptions())
	res, err := skip.ImportFile(path, meshDir, world)
	test.That(t, err, test.ShouldBeNil)
	warnings := multierr.Errors(res.Warnings)
	test.That(t, warnings, test.ShouldHaveLength, 2)
	test.That(t, errors.Is(warnings[0], meshes.ErrFileNotFound), test.ShouldBeTrue)
	test.That(t, errors.Is(warnings[1], meshes.ErrUnsupportedFormat), test.ShouldBeTrue)
	test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{Bodies: 3, Colliders: 1, Joints: 2, Articulations: 1})
	test.That(t, res.Instance.ColliderHandles("link1"), test.ShouldBeEmpty)

	opts := DefaultOptions()
	opts.OnMeshResolutionFailure = meshes.UseBoundingPrimitive
	world = physics.NewEngine(physics.DefaultEngineConfig())
	res, err = newImporter(t, opts).ImportFile(path, meshDir, world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, multierr.Errors(res.Warnings), test.ShouldHaveLength, 2)
	test.That(t, world.Counts().Colliders, test.ShouldEqual, 3)
	test.That(t, res.Instance.ColliderHandles("link2"), test.ShouldHaveLength, 1)

	// the mesh directory defaults to the directory of the file, where no meshes live
	world = physics.NewEngine(physics.DefaultEngineConfig())
	res, err = skip.ImportFile(path, "", world)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, multierr.Errors(res.Warnings), test.ShouldHaveLength, 6)
	test.That(t, world.Counts().Colliders, test.ShouldEqual, 0)

	_, err = skip.ImportFile(utils.ResolveFile("testfiles/robots/nope.urdf"), "", world)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestImportFailuresLeaveWorldUntouched(t *testing.T) {
	imp := newImporter(t, DefaultOptions())
	for _, tc := range []struct {
		name     string
		data     string
		expected error
	}{
		{"not xml", "robot", urdf.ErrMalformed},
		{"duplicate link", `<robot name="r"><link name="a"/><link name="a"/></robot>`, urdf.ErrDuplicateName},
		{
			"two roots",
			`<robot name="r"><link name="a"/><link name="b"/></robot>`,
			kinematics.ErrMultipleRoots,
		},
		{
			"cycle",
			`<robot name="r"><link name="a"/><link name="b"/>
			<joint name="ab" type="fixed"><parent link="a"/><child link="b"/></joint>
			<joint name="ba" type="fixed"><parent link="b"/><child link="a"/></joint></robot>`,
			kinematics.ErrCycle,
		},
		{
			"unsupported joint",
			`<robot name="r"><link name="a"/><link name="b"/>
			<joint name="ab" type="ball"><parent link="a"/><child link="b"/></joint></robot>`,
			articulation.ErrUnsupportedJointType,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			world := physics.NewEngine(physics.DefaultEngineConfig())
			_, err := imp.Import([]byte(tc.data), "", world)
			test.That(t, errors.Is(err, tc.expected), test.ShouldBeTrue)
			test.That(t, world.Counts(), test.ShouldResemble, physics.Counts{})
		})
	}
}

func TestPrepareConcurrently(t *testing.T) {
	imp := newImporter(t, DefaultOptions())
	path := utils.ResolveFile("testfiles/robots/mesh_arm.urdf")
	meshDir := utils.ResolveFile("testfiles")

	prepared := make([]*Prepared, 6)
	var group errgroup.Group
	for i := range prepared {
		group.Go(func() error {
			p, err := imp.PrepareFile(path, meshDir)
			prepared[i] = p
			return err
		})
	}
	test.That(t, group.Wait(), test.ShouldBeNil)
	// cube, tetrahedron and wedge are each decoded once
	test.That(t, imp.Resolver().CacheLen(), test.ShouldEqual, 3)

	world := physics.NewEngine(physics.DefaultEngineConfig())
	for _, p := range prepared {
		_, err := imp.Instantiate(p, world)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, world.Counts().Articulations, test.ShouldEqual, 6)
}

func TestOptions(t *testing.T) {
	opts := DefaultOptions()
	test.That(t, opts.Validate(), test.ShouldBeNil)

	raw := `{
		"name": "left_arm",
		"default_link_mass": 0.5,
		"on_mesh_resolution_failure": "use_bounding_primitive",
		"clamp_actuation_to_limits": false,
		"collision_groups": {"memberships": 2, "filter": 1},
		"base_pose": {"translation": {"x": 1, "z": 0.5}, "orientation": {"yaw": 1.5}}
	}`
	test.That(t, json.Unmarshal([]byte(raw), &opts), test.ShouldBeNil)
	test.That(t, opts.Validate(), test.ShouldBeNil)

	expected := DefaultOptions()
	expected.Name = "left_arm"
	expected.DefaultLinkMass = 0.5
	expected.OnMeshResolutionFailure = meshes.UseBoundingPrimitive
	expected.ClampActuationToLimits = false
	expected.CollisionGroups = &collision.Groups{Memberships: 2, Filter: 1}
	expected.BasePose = &PoseConfig{Translation: Translation{X: 1, Z: 0.5}, Orientation: RPY{Yaw: 1.5}}
	test.That(t, cmp.Diff(expected, opts), test.ShouldBeEmpty)

	converted := opts.articulation()
	test.That(t, converted.CollisionGroups, test.ShouldResemble, collision.Groups{Memberships: 2, Filter: 1})
	test.That(t, converted.DriveStiffness, test.ShouldEqual, 1000.)
	test.That(t, spatialmath.R3VectorAlmostEqual(converted.BasePose.Point(), r3.Vector{X: 1, Z: 0.5}, 1e-9), test.ShouldBeTrue)
	test.That(t, converted.BasePose.Orientation().EulerAngles().Yaw, test.ShouldAlmostEqual, 1.5)
	test.That(t, DefaultOptions().articulation().CollisionGroups, test.ShouldResemble, collision.AllGroups)

	for _, tc := range []struct {
		name     string
		modify   func(*Options)
		contains string
	}{
		{"zero mass", func(o *Options) { o.DefaultLinkMass = 0 }, "default_link_mass"},
		{"bad policy", func(o *Options) { o.OnMeshResolutionFailure = "retry" }, "on_mesh_resolution_failure"},
		{"negative stiffness", func(o *Options) { o.DriveStiffness = -1 }, "drive_stiffness"},
		{"negative damping", func(o *Options) { o.DriveDamping = -1 }, "drive_damping"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bad := DefaultOptions()
			tc.modify(&bad)
			_, err := New(bad, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}
}

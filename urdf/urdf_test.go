package urdf

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/urdfsim/spatialmath"
	"go.viam.com/urdfsim/utils"
)

func TestParseTwoLink(t *testing.T) {
	doc, err := ParseFile(utils.ResolveFile("testfiles/robots/two_link.urdf"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, doc.Name, test.ShouldEqual, "two_link")
	test.That(t, doc.Links, test.ShouldHaveLength, 2)
	test.That(t, doc.Joints, test.ShouldHaveLength, 1)

	base, ok := doc.Link("base")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, base.Inertial.Mass, test.ShouldEqual, 2.0)
	test.That(t, base.Inertial.Inertia.Izz, test.ShouldEqual, 0.0083)
	test.That(t, base.Visuals, test.ShouldHaveLength, 1)
	test.That(t, base.Visuals[0].Geometry, test.ShouldResemble, Box{Size: r3.Vector{X: 0.2, Y: 0.2, Z: 0.05}})
	// referenced by name, resolved against the robot level declaration
	test.That(t, base.Visuals[0].Material.Name, test.ShouldEqual, "grey")
	test.That(t, *base.Visuals[0].Material.Color, test.ShouldResemble, [4]float64{0.5, 0.5, 0.5, 1})

	arm, ok := doc.Link("arm")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, arm.Collisions[0].Geometry, test.ShouldResemble, Cylinder{Radius: 0.025, Length: 0.3})
	test.That(t, spatialmath.R3VectorAlmostEqual(arm.Collisions[0].Origin.Point(), r3.Vector{Z: 0.15}, 1e-12), test.ShouldBeTrue)

	joint, ok := doc.Joint("joint1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, joint.Type, test.ShouldEqual, RevoluteJoint)
	test.That(t, joint.Parent, test.ShouldEqual, "base")
	test.That(t, joint.Child, test.ShouldEqual, "arm")
	test.That(t, joint.Axis, test.ShouldResemble, r3.Vector{Y: 1})
	test.That(t, *joint.Limit, test.ShouldResemble, Limit{Lower: -1.57, Upper: 1.57, Velocity: 2, Effort: 10})
	test.That(t, joint.Limit.HasPositionLimits(), test.ShouldBeTrue)
	test.That(t, joint.Dynamics.Damping, test.ShouldEqual, 0.05)
	test.That(t, spatialmath.PoseAlmostEqual(joint.Origin, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.1})), test.ShouldBeTrue)

	idx, ok := doc.LinkIndex("arm")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idx, test.ShouldEqual, 1)
	_, ok = doc.JointIndex("nope")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestParseDefaults(t *testing.T) {
	doc, err := Parse([]byte(`<robot name="r">
		<link name="a"/>
		<link name="b">
			<collision><geometry><mesh filename="m.stl"/></geometry></collision>
		</link>
		<joint name="j" type="continuous">
			<parent link="a"/><child link="b"/>
			<axis xyz="0 0 2"/>
		</joint>
		<joint name="weird" type="ball">
			<parent link="a"/><child link="b"/>
			<origin rpy="0 0 1.5707963267948966"/>
			<mimic joint="j"/>
		</joint>
	</robot>`))
	test.That(t, err, test.ShouldBeNil)
	a, _ := doc.Link("a")
	test.That(t, a.Inertial, test.ShouldBeNil)
	test.That(t, a.Visuals, test.ShouldBeEmpty)

	b, _ := doc.Link("b")
	test.That(t, b.Collisions[0].Geometry, test.ShouldResemble, Mesh{Filename: "m.stl", Scale: r3.Vector{X: 1, Y: 1, Z: 1}})
	test.That(t, spatialmath.PoseAlmostEqual(b.Collisions[0].Origin, spatialmath.NewZeroPose()), test.ShouldBeTrue)

	j, _ := doc.Joint("j")
	test.That(t, j.Axis, test.ShouldResemble, r3.Vector{Z: 1})
	test.That(t, j.Limit, test.ShouldBeNil)
	test.That(t, j.Type.DoF(), test.ShouldEqual, 1)

	weird, _ := doc.Joint("weird")
	test.That(t, weird.Type, test.ShouldEqual, JointType("ball"))
	test.That(t, weird.Type.Known(), test.ShouldBeFalse)
	test.That(t, weird.Axis, test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, *weird.Mimic, test.ShouldResemble, Mimic{Joint: "j", Multiplier: 1})
	rotated := spatialmath.RotateVector(weird.Origin.Orientation(), r3.Vector{X: 1})
	test.That(t, spatialmath.R3VectorAlmostEqual(rotated, r3.Vector{Y: 1}, 1e-9), test.ShouldBeTrue)
}

func TestRPYConvention(t *testing.T) {
	// roll is applied first, then pitch, then yaw, all about fixed axes
	doc, err := Parse([]byte(`<robot name="r"><link name="a"/><link name="b"/>
		<joint name="j" type="fixed"><parent link="a"/><child link="b"/>
		<origin rpy="1.5707963267948966 0 1.5707963267948966"/></joint></robot>`))
	test.That(t, err, test.ShouldBeNil)
	o := doc.Joints[0].Origin.Orientation()
	// roll takes y to z, yaw leaves z alone
	test.That(t, spatialmath.R3VectorAlmostEqual(spatialmath.RotateVector(o, r3.Vector{Y: 1}), r3.Vector{Z: 1}, 1e-9), test.ShouldBeTrue)
	// roll leaves x alone, yaw takes x to y
	test.That(t, spatialmath.R3VectorAlmostEqual(spatialmath.RotateVector(o, r3.Vector{X: 1}), r3.Vector{Y: 1}, 1e-9), test.ShouldBeTrue)
}

func TestParseMalformed(t *testing.T) {
	const links = `<link name="a"/><link name="b"/>`
	cases := []struct {
		name     string
		document string
		contains string
	}{
		{"not xml", `<robot name="r"><link`, "failed to decode"},
		{"wrong root", `<model name="r"/>`, "failed to decode"},
		{"link without name", `<robot><link/></robot>`, "missing name"},
		{"joint without type", `<robot>` + links + `<joint name="j"><parent link="a"/><child link="b"/></joint></robot>`, "missing type"},
		{"joint without parent", `<robot>` + links + `<joint name="j" type="fixed"><child link="b"/></joint></robot>`, "missing parent"},
		{"joint without child", `<robot>` + links + `<joint name="j" type="fixed"><parent link="a"/></joint></robot>`, "missing child"},
		{"unknown parent", `<robot>` + links + `<joint name="j" type="fixed"><parent link="z"/><child link="b"/></joint></robot>`, `parent link "z"`},
		{"unknown child", `<robot>` + links + `<joint name="j" type="fixed"><parent link="a"/><child link="z"/></joint></robot>`, `child link "z"`},
		{"bad origin", `<robot>` + links + `<joint name="j" type="fixed"><parent link="a"/><child link="b"/>` +
			`<origin xyz="1 two 3"/></joint></robot>`, `"two" is not a number`},
		{"short origin", `<robot>` + links + `<joint name="j" type="fixed"><parent link="a"/><child link="b"/>` +
			`<origin xyz="1 2"/></joint></robot>`, "expected 3 values but got 2"},
		{"zero axis", `<robot>` + links + `<joint name="j" type="revolute"><parent link="a"/><child link="b"/>` +
			`<axis xyz="0 0 0"/></joint></robot>`, "non-zero axis"},
		{"bad limit", `<robot>` + links + `<joint name="j" type="revolute"><parent link="a"/><child link="b"/>` +
			`<limit lower="x"/></joint></robot>`, "limit"},
		{"empty geometry", `<robot><link name="a"><visual><geometry/></visual></link></robot>`, "missing geometry"},
		{"box without size", `<robot><link name="a"><collision><geometry><box/></geometry></collision></link></robot>`, "box size"},
		{"sphere without radius", `<robot><link name="a"><collision><geometry><sphere/></geometry></collision></link></robot>`,
			"sphere radius"},
		{"cylinder without length", `<robot><link name="a"><collision><geometry><cylinder radius="1"/></geometry></collision></link></robot>`,
			"cylinder length"},
		{"mesh without filename", `<robot><link name="a"><visual><geometry><mesh/></geometry></visual></link></robot>`,
			"mesh filename"},
		{"inertial without mass", `<robot><link name="a"><inertial><inertia ixx="1"/></inertial></link></robot>`,
			"inertial mass"},
		{"bad color", `<robot><material name="m"><color rgba="1 0 0"/></material><link name="a"/></robot>`,
			"expected 4 values"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc, err := Parse([]byte(c.document))
			test.That(t, doc, test.ShouldBeNil)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrMalformed), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, c.contains)
		})
	}
}

func TestParseDuplicateNames(t *testing.T) {
	_, err := Parse([]byte(`<robot><link name="a"/><link name="a"/></robot>`))
	test.That(t, errors.Is(err, ErrDuplicateName), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrMalformed), test.ShouldBeFalse)
	test.That(t, err.Error(), test.ShouldContainSubstring, `link "a"`)

	_, err = Parse([]byte(`<robot><link name="a"/><link name="b"/>
		<joint name="j" type="fixed"><parent link="a"/><child link="b"/></joint>
		<joint name="j" type="fixed"><parent link="a"/><child link="b"/></joint></robot>`))
	test.That(t, errors.Is(err, ErrDuplicateName), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `joint "j"`)
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, fixture := range []string{"two_link.urdf", "all_joints.urdf", "mesh_arm.urdf"} {
		t.Run(fixture, func(t *testing.T) {
			doc, err := ParseFile(utils.ResolveFile("testfiles/robots/" + fixture))
			test.That(t, err, test.ShouldBeNil)
			data, err := Marshal(doc)
			test.That(t, err, test.ShouldBeNil)
			reparsed, err := Parse(data)
			test.That(t, err, test.ShouldBeNil)

			opts := []cmp.Option{
				cmpopts.IgnoreUnexported(Document{}),
				cmp.Comparer(func(a, b spatialmath.Pose) bool { return spatialmath.PoseAlmostEqual(a, b) }),
				cmpopts.EquateEmpty(),
			}
			test.That(t, cmp.Diff(doc, reparsed, opts...), test.ShouldBeEmpty)
		})
	}
}

func TestCollapseFixedLeaves(t *testing.T) {
	doc, err := Parse([]byte(`<robot name="r">
		<link name="base"/><link name="link1"/><link name="flange"/><link name="tool0"/><link name="camera"/>
		<joint name="j1" type="revolute"><parent link="base"/><child link="link1"/></joint>
		<joint name="j_flange" type="fixed"><parent link="link1"/><child link="flange"/></joint>
		<joint name="j_tool" type="fixed"><parent link="flange"/><child link="tool0"/></joint>
		<joint name="j_camera" type="fixed"><parent link="base"/><child link="camera"/></joint>
	</robot>`))
	test.That(t, err, test.ShouldBeNil)

	collapsed, err := CollapseFixedLeaves(doc)
	test.That(t, err, test.ShouldBeNil)
	names := func(d *Document) []string {
		var out []string
		for _, l := range d.Links {
			out = append(out, l.Name)
		}
		return out
	}
	test.That(t, names(collapsed), test.ShouldResemble, []string{"base", "link1", "flange"})
	test.That(t, collapsed.Joints, test.ShouldHaveLength, 2)
	_, ok := collapsed.Joint("j_tool")
	test.That(t, ok, test.ShouldBeFalse)
	// the input is untouched
	test.That(t, doc.Links, test.ShouldHaveLength, 5)

	twice, err := CollapseFixedLeaves(collapsed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names(twice), test.ShouldResemble, []string{"base", "link1"})
	unchanged, err := CollapseFixedLeaves(twice)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, unchanged, test.ShouldEqual, twice)
}

func TestCollapseFixedLeavesInvalidDocument(t *testing.T) {
	// built by hand, so the dangling "ghost" reference was never checked
	doc := &Document{
		Name:  "r",
		Links: []Link{{Name: "base"}, {Name: "tool0"}},
		Joints: []Joint{
			{Name: "j_tool", Type: FixedJoint, Parent: "base", Child: "tool0"},
			{Name: "j_ghost", Type: RevoluteJoint, Parent: "base", Child: "ghost"},
		},
	}
	collapsed, err := CollapseFixedLeaves(doc)
	test.That(t, collapsed, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrMalformed), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `collapsing "r"`)
}

func TestGeometryStrings(t *testing.T) {
	test.That(t, Box{Size: r3.Vector{X: 1, Y: 2, Z: 3}}.String(), test.ShouldEqual, "box 1 2 3")
	test.That(t, Sphere{Radius: 0.5}.String(), test.ShouldEqual, "sphere r=0.5")
	test.That(t, Mesh{Filename: "a.stl"}.String(), test.ShouldEqual, "mesh a.stl")
	test.That(t, FloatingJoint.DoF(), test.ShouldEqual, 0)
	test.That(t, PlanarJoint.DoF(), test.ShouldEqual, 2)
}

// Package urdf decodes Unified Robot Description Format documents into a typed, index addressed model of links and
// joints. Decoding is purely structural: no mesh is loaded and no physics object is created.
package urdf

import (
	"github.com/golang/geo/r3"

	"go.viam.com/urdfsim/spatialmath"
)

// Extension is the file extension associated with URDF files.
const Extension string = "urdf"

// Document is a parsed URDF robot. Links and joints keep their declaration order and are addressed by index.
type Document struct {
	Name      string
	Links     []Link
	Joints    []Joint
	Materials []Material

	linkIndex  map[string]int
	jointIndex map[string]int
}

// Link is a rigid body segment of a robot.
type Link struct {
	Name       string
	Visuals    []Visual
	Collisions []Collision
	Inertial   *Inertial
}

// Visual is a geometry drawn for a link.
type Visual struct {
	Name     string
	Origin   spatialmath.Pose
	Geometry Geometry
	Material *Material
}

// Collision is a geometry used for contacts.
type Collision struct {
	Name     string
	Origin   spatialmath.Pose
	Geometry Geometry
}

// Material is a named color and texture. Visuals may reference materials declared at the robot level by name.
type Material struct {
	Name    string
	Color   *[4]float64
	Texture string
}

// Inertial holds the mass properties of a link. Origin places the center of mass and the principal frame of the
// inertia tensor relative to the link frame.
type Inertial struct {
	Mass    float64
	Origin  spatialmath.Pose
	Inertia Inertia
}

// Inertia is the symmetric inertia tensor of a link, about its center of mass.
type Inertia struct {
	Ixx, Ixy, Ixz, Iyy, Iyz, Izz float64
}

// JointType is the kind of a joint. Strings outside the known set are preserved as-is.
type JointType string

// The joint types defined by URDF.
const (
	FixedJoint      = JointType("fixed")
	RevoluteJoint   = JointType("revolute")
	ContinuousJoint = JointType("continuous")
	PrismaticJoint  = JointType("prismatic")
	FloatingJoint   = JointType("floating")
	PlanarJoint     = JointType("planar")
)

// Known returns whether the type is one of the URDF joint types.
func (t JointType) Known() bool {
	switch t {
	case FixedJoint, RevoluteJoint, ContinuousJoint, PrismaticJoint, FloatingJoint, PlanarJoint:
		return true
	default:
		return false
	}
}

// DoF returns the number of actuated degrees of freedom of the joint type.
func (t JointType) DoF() int {
	switch t {
	case RevoluteJoint, ContinuousJoint, PrismaticJoint:
		return 1
	case PlanarJoint:
		return 2
	case FixedJoint, FloatingJoint:
		return 0
	default:
		return 0
	}
}

// Joint connects a parent link to a child link. Origin is the pose of the child link frame in the parent link frame
// when the joint is at zero.
type Joint struct {
	Name     string
	Type     JointType
	Parent   string
	Child    string
	Origin   spatialmath.Pose
	Axis     r3.Vector
	Limit    *Limit
	Dynamics *Dynamics
	Mimic    *Mimic
}

// Limit bounds the motion of a joint. Lower and Upper are radians for rotational joints and meters for translational
// ones. A zero Velocity or Effort leaves that quantity unbounded.
type Limit struct {
	Lower    float64
	Upper    float64
	Velocity float64
	Effort   float64
}

// HasPositionLimits returns whether the limit constrains the joint position.
func (l *Limit) HasPositionLimits() bool {
	return l != nil && l.Lower < l.Upper
}

// Dynamics are the physical properties of a joint.
type Dynamics struct {
	Damping  float64
	Friction float64
}

// Mimic couples a joint to another joint: value = multiplier * other + offset.
type Mimic struct {
	Joint      string
	Multiplier float64
	Offset     float64
}

// LinkIndex returns the index of the named link.
func (d *Document) LinkIndex(name string) (int, bool) {
	idx, ok := d.linkIndex[name]
	return idx, ok
}

// JointIndex returns the index of the named joint.
func (d *Document) JointIndex(name string) (int, bool) {
	idx, ok := d.jointIndex[name]
	return idx, ok
}

// Link returns the named link.
func (d *Document) Link(name string) (*Link, bool) {
	idx, ok := d.linkIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Links[idx], true
}

// Joint returns the named joint.
func (d *Document) Joint(name string) (*Joint, bool) {
	idx, ok := d.jointIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Joints[idx], true
}

// NewDocument assembles a document from links and joints, checking that names are unique and that every joint
// references links of the document.
func NewDocument(name string, links []Link, joints []Joint) (*Document, error) {
	doc := &Document{
		Name:       name,
		Links:      links,
		Joints:     joints,
		linkIndex:  make(map[string]int, len(links)),
		jointIndex: make(map[string]int, len(joints)),
	}
	for i, link := range links {
		if link.Name == "" {
			return nil, newMalformedError("link", "", "missing name")
		}
		if _, ok := doc.linkIndex[link.Name]; ok {
			return nil, newDuplicateNameError("link", link.Name)
		}
		doc.linkIndex[link.Name] = i
	}
	for i, joint := range joints {
		if joint.Name == "" {
			return nil, newMalformedError("joint", "", "missing name")
		}
		if _, ok := doc.jointIndex[joint.Name]; ok {
			return nil, newDuplicateNameError("joint", joint.Name)
		}
		if _, ok := doc.linkIndex[joint.Parent]; !ok {
			return nil, newMalformedError("joint", joint.Name, "parent link %q does not exist", joint.Parent)
		}
		if _, ok := doc.linkIndex[joint.Child]; !ok {
			return nil, newMalformedError("joint", joint.Name, "child link %q does not exist", joint.Child)
		}
		doc.jointIndex[joint.Name] = i
	}
	return doc, nil
}
